package phrase

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/session"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ComputeRequest asks for one phrase to be computed. EntityID names the
// stored entity the phrase is computed for; its properties are used unless
// Props is set. Answers supplies prompt values by field name. Seeds travel
// as strings so they survive JSON number precision.
type ComputeRequest struct {
	Text          string         `json:"text"`
	Props         map[string]any `json:"props,omitempty"`
	EntityID      string         `json:"entity_id,omitempty"`
	LinkedID      string         `json:"linked_id,omitempty"`
	SelectedID    string         `json:"selected_id,omitempty"`
	TargetID      string         `json:"target_id,omitempty"`
	Answers       map[string]any `json:"answers,omitempty"`
	LocalVars     map[string]any `json:"local_vars,omitempty"`
	Reference     string         `json:"reference,omitempty"`
	Default       any            `json:"default,omitempty"`
	AvailableKeys []string       `json:"available_keys,omitempty"`
	Explain       bool           `json:"explain,omitempty"`
	Static        bool           `json:"static,omitempty"`
	HTML          bool           `json:"html,omitempty"`
	Seed          *int64         `json:"seed,string,omitempty"`
	Locale        string         `json:"locale,omitempty"`
}

// ComputeResponse is a computed phrase.
type ComputeResponse struct {
	Result    string           `json:"result"`
	Value     any              `json:"value,omitempty"`
	Formulas  []FormulaResult  `json:"formulas,omitempty"`
	LocalVars map[string]any   `json:"local_vars,omitempty"`
	Dialogs   []DialogResult   `json:"dialogs,omitempty"`
	Notices   []session.Notice `json:"notices,omitempty"`
	HTML      string           `json:"html,omitempty"`
	Seed      int64            `json:"seed,string"`
}

// FormulaResult is one computed block of a phrase.
type FormulaResult struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	Raw     string         `json:"raw"`
	Parsed  string         `json:"parsed,omitempty"`
	Result  any            `json:"result,omitempty"`
	Hidden  bool           `json:"hidden,omitempty"`
	HasDice bool           `json:"has_dice,omitempty"`
	Tokens  []engine.Token `json:"tokens,omitempty"`
	Rolls   []RollResult   `json:"rolls,omitempty"`
}

// RollResult is one roll or roll-table draw.
type RollResult struct {
	Formula string      `json:"formula"`
	Total   float64     `json:"total"`
	Dice    []DieResult `json:"dice,omitempty"`
	Entries []string    `json:"entries,omitempty"`
}

// DieResult is the faces rolled for one dice term.
type DieResult struct {
	Sides   int   `json:"sides"`
	Results []int `json:"results"`
	Kept    []int `json:"kept,omitempty"`
}

// DialogResult is a dialog the computation showed.
type DialogResult struct {
	Title    string         `json:"title,omitempty"`
	Template string         `json:"template,omitempty"`
	Fields   []engine.Field `json:"fields"`
}

// ResolveRequest asks for a sheet document to be resolved.
type ResolveRequest struct {
	Sheet  string `json:"sheet"`
	Seed   *int64 `json:"seed,string,omitempty"`
	Locale string `json:"locale,omitempty"`
}

// ResolveResponse is a resolved sheet.
type ResolveResponse struct {
	Name     string            `json:"name"`
	Resolved map[string]any    `json:"resolved"`
	Props    map[string]any    `json:"props"`
	Stuck    []string          `json:"stuck,omitempty"`
	Failed   map[string]string `json:"failed,omitempty"`
	Passes   int               `json:"passes"`
	Notices  []session.Notice  `json:"notices,omitempty"`
	Seed     int64             `json:"seed,string"`
}

// RollRequest rolls dice notation, or draws from a stored roll table when
// Table is set. Selector picks a table entry without rolling.
type RollRequest struct {
	Notation string `json:"notation,omitempty"`
	Table    string `json:"table,omitempty"`
	Selector *int   `json:"selector,omitempty"`
	Seed     *int64 `json:"seed,string,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// RollResponse is the outcome of a roll.
type RollResponse struct {
	Roll RollResult `json:"roll"`
	Seed int64      `json:"seed,string"`
}

// Decode reads a Struct message into one of the request or response types.
func Decode(in *structpb.Struct, out any) error {
	if in == nil {
		return fmt.Errorf("message is required")
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// Encode writes one of the request or response types as a Struct message.
func Encode(in any) (*structpb.Struct, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return out, nil
}

func rollResult(roll engine.Roll) RollResult {
	out := RollResult{Formula: roll.Formula, Total: finite(roll.Total), Entries: roll.Entries}
	for _, die := range roll.Dice {
		out.Dice = append(out.Dice, DieResult{Sides: die.Sides, Results: die.Results, Kept: die.Kept})
	}
	return out
}

func formulaResult(entry engine.FormulaEntry) FormulaResult {
	f := entry.Formula
	out := FormulaResult{
		ID:      entry.ID,
		Kind:    entry.Kind.String(),
		Raw:     f.Raw(),
		Parsed:  f.Parsed(),
		Result:  jsonValue(f.Result()),
		Hidden:  f.Hidden(),
		HasDice: f.HasDice(),
		Tokens:  jsonTokens(f.Tokens()),
	}
	for _, record := range f.Rolls() {
		roll := rollResult(record.Roll)
		roll.Formula = record.Formula
		out.Rolls = append(out.Rolls, roll)
	}
	return out
}

// jsonValue replaces values JSON cannot carry, such as the infinity of a
// division by zero, with their display text.
func jsonValue(v any) any {
	switch value := v.(type) {
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return engine.FormatValue(value)
		}
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = jsonValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = jsonValue(item)
		}
		return out
	}
	return v
}

func jsonMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return jsonValue(m).(map[string]any)
}

func jsonTokens(tokens []engine.Token) []engine.Token {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]engine.Token, len(tokens))
	for i, token := range tokens {
		token.Value = jsonValue(token.Value)
		token.Children = jsonTokens(token.Children)
		out[i] = token
	}
	return out
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
