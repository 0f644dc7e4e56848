// Package mcp exposes the phrase service as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"strconv"

	"github.com/louisbranch/sheetphrase/internal/platform/timeouts"
	"github.com/louisbranch/sheetphrase/internal/random"
	phrasegrpc "github.com/louisbranch/sheetphrase/internal/services/phrase/api/grpc/phrase"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ComputePhraseInput represents the MCP tool input for computing a phrase.
type ComputePhraseInput struct {
	Text       string         `json:"text" jsonschema:"phrase text with ${formula}$ blocks"`
	Props      map[string]any `json:"props,omitempty" jsonschema:"properties the formulas read; defaults to the entity properties"`
	EntityID   string         `json:"entity_id,omitempty" jsonschema:"stored entity the phrase is computed for"`
	TargetID   string         `json:"target_id,omitempty" jsonschema:"stored entity bound to the target token"`
	SelectedID string         `json:"selected_id,omitempty" jsonschema:"stored entity bound to the selected token"`
	Answers    map[string]any `json:"answers,omitempty" jsonschema:"prompt answers keyed by field name"`
	Static     bool           `json:"static,omitempty" jsonschema:"fail instead of prompting or rolling"`
	Seed       string         `json:"seed,omitempty" jsonschema:"seed to replay rolls"`
	Locale     string         `json:"locale,omitempty" jsonschema:"locale for warnings"`
}

// FormulaSummary is one computed block.
type FormulaSummary struct {
	ID     string   `json:"id" jsonschema:"placeholder id"`
	Raw    string   `json:"raw" jsonschema:"block text as written"`
	Result any      `json:"result,omitempty" jsonschema:"computed value"`
	Rolls  []string `json:"rolls,omitempty" jsonschema:"rolls made, as formula = total"`
}

// Notice is a notification raised while computing.
type Notice struct {
	Severity string `json:"severity" jsonschema:"info, warn or error"`
	Message  string `json:"message" jsonschema:"notification text"`
}

// ComputePhraseResult represents the MCP tool output for a computed phrase.
type ComputePhraseResult struct {
	Result   string           `json:"result" jsonschema:"phrase text with every block replaced"`
	Value    any              `json:"value,omitempty" jsonschema:"typed value of a single-block phrase"`
	Formulas []FormulaSummary `json:"formulas,omitempty" jsonschema:"computed blocks"`
	Prompts  []string         `json:"prompts,omitempty" jsonschema:"prompt fields that were answered"`
	Notices  []Notice         `json:"notices,omitempty" jsonschema:"notifications raised"`
	Seed     string           `json:"seed" jsonschema:"seed used for rolls"`
}

// ResolveSheetInput represents the MCP tool input for resolving a sheet.
type ResolveSheetInput struct {
	Sheet string `json:"sheet" jsonschema:"YAML sheet document"`
	Seed  string `json:"seed,omitempty" jsonschema:"seed to replay rolls"`
}

// ResolveSheetResult represents the MCP tool output for a resolved sheet.
type ResolveSheetResult struct {
	Name     string            `json:"name" jsonschema:"sheet name"`
	Resolved map[string]any    `json:"resolved" jsonschema:"resolved formula values by key"`
	Stuck    []string          `json:"stuck,omitempty" jsonschema:"keys that never resolved, usually a cycle"`
	Failed   map[string]string `json:"failed,omitempty" jsonschema:"keys that failed with their error"`
	Passes   int               `json:"passes" jsonschema:"resolution passes run"`
	Seed     string            `json:"seed" jsonschema:"seed used for rolls"`
}

// RollDiceInput represents the MCP tool input for rolling dice.
type RollDiceInput struct {
	Notation string `json:"notation,omitempty" jsonschema:"dice notation such as 2d20kh1 + 3"`
	Table    string `json:"table,omitempty" jsonschema:"roll table to draw from instead"`
	Selector *int   `json:"selector,omitempty" jsonschema:"table entry to pick without rolling"`
	Seed     string `json:"seed,omitempty" jsonschema:"seed to replay the roll"`
}

// RollDiceDie is the faces rolled for one dice term.
type RollDiceDie struct {
	Sides   int   `json:"sides" jsonschema:"number of sides"`
	Results []int `json:"results" jsonschema:"faces rolled"`
	Kept    []int `json:"kept,omitempty" jsonschema:"faces kept"`
}

// RollDiceResult represents the MCP tool output for a roll.
type RollDiceResult struct {
	Formula string        `json:"formula" jsonschema:"notation or table rolled"`
	Total   float64       `json:"total" jsonschema:"roll total"`
	Dice    []RollDiceDie `json:"dice,omitempty" jsonschema:"faces per dice term"`
	Entries []string      `json:"entries,omitempty" jsonschema:"table entries drawn"`
	Seed    string        `json:"seed" jsonschema:"seed used"`
}

// ComputePhraseTool defines the MCP tool schema for computing phrases.
func ComputePhraseTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "compute_phrase",
		Description: "Computes a phrase with embedded formulas against character properties",
	}
}

// ResolveSheetTool defines the MCP tool schema for resolving sheets.
func ResolveSheetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "resolve_sheet",
		Description: "Resolves every formula of a YAML character sheet",
	}
}

// RollDiceTool defines the MCP tool schema for rolling dice.
func RollDiceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_dice",
		Description: "Rolls dice notation or draws from a roll table",
	}
}

// ComputePhraseHandler computes a phrase through the phrase service.
func ComputePhraseHandler(client phrasegrpc.PhraseServiceClient) mcp.ToolHandlerFor[ComputePhraseInput, ComputePhraseResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ComputePhraseInput) (*mcp.CallToolResult, ComputePhraseResult, error) {
		seed, err := random.ParseSeed(input.Seed)
		if err != nil {
			return nil, ComputePhraseResult{}, err
		}
		req, err := phrasegrpc.Encode(phrasegrpc.ComputeRequest{
			Text:       input.Text,
			Props:      input.Props,
			EntityID:   input.EntityID,
			TargetID:   input.TargetID,
			SelectedID: input.SelectedID,
			Answers:    input.Answers,
			Static:     input.Static,
			Seed:       seed,
			Locale:     input.Locale,
		})
		if err != nil {
			return nil, ComputePhraseResult{}, err
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.PhraseCall)
		defer cancel()
		out, err := client.ComputePhrase(runCtx, req)
		if err != nil {
			return nil, ComputePhraseResult{}, fmt.Errorf("compute phrase failed: %w", err)
		}
		var resp phrasegrpc.ComputeResponse
		if err := phrasegrpc.Decode(out, &resp); err != nil {
			return nil, ComputePhraseResult{}, fmt.Errorf("compute phrase response: %w", err)
		}

		result := ComputePhraseResult{
			Result: resp.Result,
			Value:  resp.Value,
			Seed:   strconv.FormatInt(resp.Seed, 10),
		}
		for _, f := range resp.Formulas {
			summary := FormulaSummary{ID: f.ID, Raw: f.Raw, Result: f.Result}
			for _, roll := range f.Rolls {
				summary.Rolls = append(summary.Rolls, fmt.Sprintf("%s = %s", roll.Formula, strconv.FormatFloat(roll.Total, 'f', -1, 64)))
			}
			result.Formulas = append(result.Formulas, summary)
		}
		for _, dialog := range resp.Dialogs {
			for _, field := range dialog.Fields {
				result.Prompts = append(result.Prompts, field.Name)
			}
		}
		for _, notice := range resp.Notices {
			result.Notices = append(result.Notices, Notice{Severity: string(notice.Severity), Message: notice.Message})
		}
		return &mcp.CallToolResult{}, result, nil
	}
}

// ResolveSheetHandler resolves a sheet through the phrase service.
func ResolveSheetHandler(client phrasegrpc.PhraseServiceClient) mcp.ToolHandlerFor[ResolveSheetInput, ResolveSheetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResolveSheetInput) (*mcp.CallToolResult, ResolveSheetResult, error) {
		seed, err := random.ParseSeed(input.Seed)
		if err != nil {
			return nil, ResolveSheetResult{}, err
		}
		req, err := phrasegrpc.Encode(phrasegrpc.ResolveRequest{Sheet: input.Sheet, Seed: seed})
		if err != nil {
			return nil, ResolveSheetResult{}, err
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.PhraseCall)
		defer cancel()
		out, err := client.ResolveSheet(runCtx, req)
		if err != nil {
			return nil, ResolveSheetResult{}, fmt.Errorf("resolve sheet failed: %w", err)
		}
		var resp phrasegrpc.ResolveResponse
		if err := phrasegrpc.Decode(out, &resp); err != nil {
			return nil, ResolveSheetResult{}, fmt.Errorf("resolve sheet response: %w", err)
		}
		return &mcp.CallToolResult{}, ResolveSheetResult{
			Name:     resp.Name,
			Resolved: resp.Resolved,
			Stuck:    resp.Stuck,
			Failed:   resp.Failed,
			Passes:   resp.Passes,
			Seed:     strconv.FormatInt(resp.Seed, 10),
		}, nil
	}
}

// RollDiceHandler rolls dice through the phrase service.
func RollDiceHandler(client phrasegrpc.PhraseServiceClient) mcp.ToolHandlerFor[RollDiceInput, RollDiceResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RollDiceInput) (*mcp.CallToolResult, RollDiceResult, error) {
		seed, err := random.ParseSeed(input.Seed)
		if err != nil {
			return nil, RollDiceResult{}, err
		}
		req, err := phrasegrpc.Encode(phrasegrpc.RollRequest{
			Notation: input.Notation,
			Table:    input.Table,
			Selector: input.Selector,
			Seed:     seed,
		})
		if err != nil {
			return nil, RollDiceResult{}, err
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.PhraseCall)
		defer cancel()
		out, err := client.RollDice(runCtx, req)
		if err != nil {
			return nil, RollDiceResult{}, fmt.Errorf("dice roll failed: %w", err)
		}
		var resp phrasegrpc.RollResponse
		if err := phrasegrpc.Decode(out, &resp); err != nil {
			return nil, RollDiceResult{}, fmt.Errorf("dice roll response: %w", err)
		}

		result := RollDiceResult{
			Formula: resp.Roll.Formula,
			Total:   resp.Roll.Total,
			Entries: resp.Roll.Entries,
			Seed:    strconv.FormatInt(resp.Seed, 10),
		}
		for _, die := range resp.Roll.Dice {
			result.Dice = append(result.Dice, RollDiceDie{Sides: die.Sides, Results: die.Results, Kept: die.Kept})
		}
		return &mcp.CallToolResult{}, result, nil
	}
}
