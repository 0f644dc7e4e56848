package dice

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidTable indicates a roll table with no entries or bad ranges.
var ErrInvalidTable = errors.New("invalid roll table")

// TableEntry is one result of a roll table, selected when the draw lands in
// [Low, High]. Wider ranges weigh the entry more.
type TableEntry struct {
	Low  int    `json:"low" yaml:"low"`
	High int    `json:"high" yaml:"high"`
	Text string `json:"text" yaml:"text"`
}

// Table is a named roll table. Formula is the dice notation used when a draw
// has no explicit selector; empty means one die spanning the entry ranges.
type Table struct {
	Name    string       `json:"name" yaml:"name"`
	Formula string       `json:"formula,omitempty" yaml:"formula,omitempty"`
	Entries []TableEntry `json:"entries" yaml:"entries"`
}

// Validate checks the table has entries whose ranges are ordered and do not
// overlap.
func (t Table) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTable)
	}
	if len(t.Entries) == 0 {
		return fmt.Errorf("%w: %s has no entries", ErrInvalidTable, t.Name)
	}
	entries := t.sorted()
	for i, entry := range entries {
		if entry.Low > entry.High {
			return fmt.Errorf("%w: %s entry %q has low %d above high %d", ErrInvalidTable, t.Name, entry.Text, entry.Low, entry.High)
		}
		if i > 0 && entry.Low <= entries[i-1].High {
			return fmt.Errorf("%w: %s entries %q and %q overlap", ErrInvalidTable, t.Name, entries[i-1].Text, entry.Text)
		}
	}
	if t.Formula != "" {
		if _, err := ParseNotation(t.Formula); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidTable, t.Name, err)
		}
	}
	return nil
}

// DrawFormula returns the notation rolled for a draw without a selector.
func (t Table) DrawFormula() string {
	if t.Formula != "" {
		return t.Formula
	}
	entries := t.sorted()
	low, high := entries[0].Low, entries[len(entries)-1].High
	span := high - low + 1
	if low == 1 {
		return fmt.Sprintf("1d%d", span)
	}
	return fmt.Sprintf("1d%d + %d", span, low-1)
}

// Lookup returns the entry whose range holds value. Values outside every
// range select the nearest end of the table.
func (t Table) Lookup(value int) TableEntry {
	entries := t.sorted()
	if value < entries[0].Low {
		return entries[0]
	}
	for _, entry := range entries {
		if value <= entry.High {
			return entry
		}
	}
	return entries[len(entries)-1]
}

func (t Table) sorted() []TableEntry {
	entries := append([]TableEntry(nil), t.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Low < entries[j].Low
	})
	return entries
}
