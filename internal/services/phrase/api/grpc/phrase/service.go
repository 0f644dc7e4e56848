// Package phrase exposes phrase computation, sheet resolution and dice rolls
// over gRPC.
package phrase

import (
	"context"
	"log"
	"sort"
	"strings"

	apperrors "github.com/louisbranch/sheetphrase/internal/platform/errors"
	"github.com/louisbranch/sheetphrase/internal/platform/i18n/catalog"
	"github.com/louisbranch/sheetphrase/internal/random"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/dice"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/directory"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/render"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/session"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/sheet"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var tracer = otel.Tracer("github.com/louisbranch/sheetphrase/internal/services/phrase")

// Service implements PhraseServiceServer.
type Service struct {
	UnimplementedPhraseServiceServer
	store   storage.Store
	scripts engine.ScriptRunner
	locale  string
	logger  *log.Logger
}

// NewService creates a phrase service. store may be nil, in which case
// entities, roll tables and prompt templates are unavailable; a nil scripts
// runner disables script blocks.
func NewService(store storage.Store, scripts engine.ScriptRunner, locale string) *Service {
	if strings.TrimSpace(locale) == "" {
		locale = catalog.BaseLocale
	}
	return &Service{store: store, scripts: scripts, locale: locale, logger: log.Default()}
}

// ComputePhrase computes one phrase.
func (s *Service) ComputePhrase(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ComputeRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "compute phrase: %v", err)
	}
	ctx, span := tracer.Start(ctx, "phrase.request", trace.WithAttributes(
		attribute.Bool("phrase.static", req.Static),
		attribute.Int("phrase.length", len(req.Text)),
	))
	defer span.End()
	locale := s.requestLocale(req.Locale)
	if strings.TrimSpace(req.Text) == "" {
		return nil, handleError(apperrors.New(apperrors.CodePhraseEmpty, "phrase text is required"), locale)
	}
	seed, err := random.ResolveSeed(req.Seed)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "resolve seed: %v", err)
	}
	span.SetAttributes(attribute.Int64("phrase.seed", seed))

	dir := &directory.Directory{Selected: req.SelectedID, Target: req.TargetID}
	answers := session.NewAnswers(req.Answers)
	notices := &session.Notices{}
	rt := s.runtime(seed, locale, notices)
	rt.Prompter = answers

	opts := engine.Options{
		Reference:     req.Reference,
		Default:       req.Default,
		AvailableKeys: req.AvailableKeys,
		LocalVars:     req.LocalVars,
		Explain:       req.Explain,
	}
	props := req.Props
	if s.store != nil {
		dir.Store = s.store
		rt.Entities = dir
		if req.EntityID != "" {
			trigger, err := dir.Load(ctx, req.EntityID)
			if err != nil {
				return nil, handleError(err, locale)
			}
			opts.Trigger = trigger
			if props == nil {
				props = trigger.Props()
			}
		}
		if req.LinkedID != "" {
			linked, err := dir.Load(ctx, req.LinkedID)
			if err != nil {
				return nil, handleError(err, locale)
			}
			opts.Linked = linked
		}
	} else if req.EntityID != "" || req.LinkedID != "" {
		return nil, handleError(apperrors.New(apperrors.CodeEntityNotFound, "entity store is not configured",
			apperrors.WithDetail("Entity", req.EntityID+req.LinkedID)), locale)
	}

	p := engine.NewPhrase(req.Text)
	if req.Static {
		err = p.ComputeStatic(ctx, rt, props, opts)
	} else {
		err = p.Compute(ctx, rt, props, opts)
	}
	if err != nil {
		s.logger.Printf("compute phrase: %v", err)
		span.RecordError(err)
		return nil, handleError(err, locale)
	}

	resp := ComputeResponse{
		Result:    p.Result(),
		Value:     jsonValue(p.Value()),
		LocalVars: jsonMap(p.LocalVars()),
		Notices:   notices.List(),
		Seed:      seed,
	}
	for _, entry := range p.Formulas() {
		resp.Formulas = append(resp.Formulas, formulaResult(entry))
	}
	for _, dialog := range answers.Requests() {
		resp.Dialogs = append(resp.Dialogs, DialogResult{Title: dialog.Title, Template: dialog.Template, Fields: dialog.Fields})
	}
	if req.HTML {
		html, err := render.HTML(ctx, render.Phrase(p))
		if err != nil {
			return nil, status.Errorf(codes.Internal, "render phrase: %v", err)
		}
		resp.HTML = html
	}
	return encodeResponse(resp)
}

// ResolveSheet resolves every formula of a sheet document.
func (s *Service) ResolveSheet(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ResolveRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "resolve sheet: %v", err)
	}
	locale := s.requestLocale(req.Locale)
	doc, err := sheet.Parse([]byte(req.Sheet))
	if err != nil {
		return nil, handleError(err, locale)
	}
	seed, err := random.ResolveSeed(req.Seed)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "resolve seed: %v", err)
	}

	notices := &session.Notices{}
	rt := &engine.Runtime{
		Roller:    dice.NewRoller(seed, doc.RollTables()),
		Templates: doc.PromptTemplates(),
		Notifier:  notices,
		Scripts:   s.scripts,
		Logger:    s.logger,
		Printer:   catalog.Printer(locale),
	}
	res, err := doc.Resolve(ctx, rt, engine.Options{})
	if err != nil {
		return nil, handleError(err, locale)
	}

	resp := ResolveResponse{
		Name:     doc.Name,
		Resolved: jsonMap(res.Resolved),
		Props:    jsonMap(res.Props),
		Stuck:    res.Stuck,
		Passes:   res.Passes,
		Notices:  notices.List(),
		Seed:     seed,
	}
	if len(res.Failed) > 0 {
		resp.Failed = make(map[string]string, len(res.Failed))
		keys := make([]string, 0, len(res.Failed))
		for key := range res.Failed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			resp.Failed[key] = res.Failed[key].Error()
			s.logger.Printf("resolve sheet %s: %s: %v", doc.Name, key, res.Failed[key])
		}
	}
	return encodeResponse(resp)
}

// RollDice rolls dice notation or draws from a stored roll table.
func (s *Service) RollDice(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RollRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "roll dice: %v", err)
	}
	locale := s.requestLocale(req.Locale)
	seed, err := random.ResolveSeed(req.Seed)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "resolve seed: %v", err)
	}
	roller := s.roller(seed)

	var roll engine.Roll
	switch {
	case strings.TrimSpace(req.Table) != "":
		roll, err = roller.DrawTable(ctx, strings.TrimSpace(req.Table), req.Selector)
	case strings.TrimSpace(req.Notation) != "":
		roll, err = roller.Roll(ctx, req.Notation)
	default:
		err = dice.ErrMissingDice
	}
	if err != nil {
		return nil, handleError(err, locale)
	}
	return encodeResponse(RollResponse{Roll: rollResult(roll), Seed: seed})
}

func (s *Service) runtime(seed int64, locale string, notices *session.Notices) *engine.Runtime {
	rt := &engine.Runtime{
		Roller:   s.roller(seed),
		Notifier: notices,
		Scripts:  s.scripts,
		Logger:   s.logger,
		Printer:  catalog.Printer(locale),
	}
	if s.store != nil {
		rt.Templates = storage.Templates{Store: s.store}
	}
	return rt
}

func (s *Service) roller(seed int64) *dice.Roller {
	if s.store == nil {
		return dice.NewRoller(seed, nil)
	}
	return dice.NewRoller(seed, storage.Tables{Store: s.store})
}

func (s *Service) requestLocale(locale string) string {
	if strings.TrimSpace(locale) != "" {
		return strings.TrimSpace(locale)
	}
	return s.locale
}

func encodeResponse(resp any) (*structpb.Struct, error) {
	out, err := Encode(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
