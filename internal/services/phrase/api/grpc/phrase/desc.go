package phrase

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sheetphrase.phrase.v1.PhraseService"

const (
	computePhraseMethod = "/" + ServiceName + "/ComputePhrase"
	resolveSheetMethod  = "/" + ServiceName + "/ResolveSheet"
	rollDiceMethod      = "/" + ServiceName + "/RollDice"
)

// PhraseServiceServer is the server API. Requests and responses are JSON
// objects carried as google.protobuf.Struct; their shapes are the request
// and response types of this package.
type PhraseServiceServer interface {
	ComputePhrase(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveSheet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RollDice(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedPhraseServiceServer can be embedded for forward compatibility.
type UnimplementedPhraseServiceServer struct{}

func (UnimplementedPhraseServiceServer) ComputePhrase(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ComputePhrase not implemented")
}

func (UnimplementedPhraseServiceServer) ResolveSheet(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ResolveSheet not implemented")
}

func (UnimplementedPhraseServiceServer) RollDice(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method RollDice not implemented")
}

// RegisterPhraseServiceServer registers srv on s.
func RegisterPhraseServiceServer(s grpc.ServiceRegistrar, srv PhraseServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func unaryHandler(method string, call func(PhraseServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PhraseServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PhraseServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PhraseServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ComputePhrase", Handler: unaryHandler(computePhraseMethod, PhraseServiceServer.ComputePhrase)},
		{MethodName: "ResolveSheet", Handler: unaryHandler(resolveSheetMethod, PhraseServiceServer.ResolveSheet)},
		{MethodName: "RollDice", Handler: unaryHandler(rollDiceMethod, PhraseServiceServer.RollDice)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sheetphrase/phrase/v1/phrase.proto",
}

// PhraseServiceClient is the client API.
type PhraseServiceClient interface {
	ComputePhrase(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ResolveSheet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RollDice(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type phraseServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPhraseServiceClient returns a client over cc.
func NewPhraseServiceClient(cc grpc.ClientConnInterface) PhraseServiceClient {
	return &phraseServiceClient{cc: cc}
}

func (c *phraseServiceClient) ComputePhrase(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, computePhraseMethod, in, opts)
}

func (c *phraseServiceClient) ResolveSheet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, resolveSheetMethod, in, opts)
}

func (c *phraseServiceClient) RollDice(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, rollDiceMethod, in, opts)
}

func (c *phraseServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
