package engine

import (
	"strconv"
	"strings"
)

// literalPrefix names the placeholders that replace isolated text literals.
const literalPrefix = "_text"

// IsolateLiterals replaces every top-level single-quoted literal that contains
// an escaped quote (\') with a fresh placeholder identifier and records the
// unquoted content in vars. Literals without an inner quote are left alone,
// the evaluator parses those itself. Double-quoted strings are skipped.
//
// Existing entries in vars are never overwritten, so re-isolating already
// isolated text with its map is a no-op.
func IsolateLiterals(text string, vars map[string]string) (string, map[string]string) {
	if vars == nil {
		vars = map[string]string{}
	}
	if !strings.Contains(text, `\'`) {
		return text, vars
	}

	var b strings.Builder
	b.Grow(len(text))
	next := 0
	for i := 0; i < len(text); {
		switch text[i] {
		case '"':
			end := scanQuoted(text, i, '"')
			if end < 0 {
				b.WriteString(text[i:])
				return b.String(), vars
			}
			b.WriteString(text[i : end+1])
			i = end + 1
		case '\'':
			end := scanQuoted(text, i, '\'')
			if end < 0 {
				b.WriteString(text[i:])
				return b.String(), vars
			}
			content := text[i+1 : end]
			if !strings.Contains(content, `\'`) {
				b.WriteString(text[i : end+1])
				i = end + 1
				continue
			}
			name := freshLiteralName(vars, &next)
			vars[name] = unescapeLiteral(content)
			b.WriteString(name)
			i = end + 1
		default:
			b.WriteByte(text[i])
			i++
		}
	}
	return b.String(), vars
}

// scanQuoted returns the index of the quote closing the literal opened at
// start, honouring backslash escapes, or -1 when the literal never closes.
func scanQuoted(text string, start int, quote byte) int {
	for j := start + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return -1
}

func freshLiteralName(vars map[string]string, next *int) string {
	for {
		name := literalPrefix + strconv.Itoa(*next)
		*next++
		if _, taken := vars[name]; !taken {
			return name
		}
	}
}

func unescapeLiteral(content string) string {
	return strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(content)
}

// quoteLiteral renders value as a single-quoted literal the evaluator can
// parse back.
func quoteLiteral(value string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value) + "'"
}
