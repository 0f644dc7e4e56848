package engine

import "strings"

// BlockKind distinguishes the two delimiter families.
type BlockKind int

const (
	// BlockFormula is a ${...}$ math expression.
	BlockFormula BlockKind = iota
	// BlockScript is a %{...}% script snippet.
	BlockScript
)

func (k BlockKind) String() string {
	switch k {
	case BlockFormula:
		return "formula"
	case BlockScript:
		return "script"
	default:
		return "unknown"
	}
}

const (
	formulaOpen  = "${"
	formulaClose = "}$"
	scriptOpen   = "%{"
	scriptClose  = "}%"
)

// Block is one top-level delimited region of a phrase. Text includes the
// delimiters; Start and End are byte offsets into the scanned text.
type Block struct {
	Kind  BlockKind
	Start int
	End   int
	Text  string
}

// Inner returns the block content without its delimiters.
func (b Block) Inner() string {
	if len(b.Text) < 4 {
		return ""
	}
	return b.Text[2 : len(b.Text)-2]
}

// ExtractBlocks returns the top-level formula and script blocks of text in
// order of appearance. Each family keeps its own depth counter; a block only
// opens while no block of the other family is open, and nested blocks of the
// same family stay inside their outer block. Unbalanced input yields the
// blocks that did close.
func ExtractBlocks(text string) []Block {
	var (
		blocks       []Block
		formulaDepth int
		scriptDepth  int
		start        int
	)
	for i := 0; i < len(text)-1; {
		pair := text[i : i+2]
		switch {
		case pair == formulaOpen && scriptDepth == 0:
			if formulaDepth == 0 {
				start = i
			}
			formulaDepth++
			i += 2
		case pair == formulaClose && formulaDepth > 0:
			formulaDepth--
			i += 2
			if formulaDepth == 0 {
				blocks = append(blocks, Block{Kind: BlockFormula, Start: start, End: i, Text: text[start:i]})
			}
		case pair == scriptOpen && formulaDepth == 0:
			if scriptDepth == 0 {
				start = i
			}
			scriptDepth++
			i += 2
		case pair == scriptClose && scriptDepth > 0:
			scriptDepth--
			i += 2
			if scriptDepth == 0 {
				blocks = append(blocks, Block{Kind: BlockScript, Start: start, End: i, Text: text[start:i]})
			}
		default:
			i++
		}
	}
	return blocks
}

// hasBlocks reports whether text contains an opening delimiter of either family.
func hasBlocks(text string) bool {
	return strings.Contains(text, formulaOpen) || strings.Contains(text, scriptOpen)
}
