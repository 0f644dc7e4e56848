package dice

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
)

func lootTable() Table {
	return Table{
		Name: "Loot",
		Entries: []TableEntry{
			{Low: 5, High: 6, Text: "Sword"},
			{Low: 1, High: 4, Text: "Gold"},
		},
	}
}

func TestTableValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		wantErr bool
	}{
		{name: "valid", table: lootTable()},
		{name: "no name", table: Table{Entries: lootTable().Entries}, wantErr: true},
		{name: "no entries", table: Table{Name: "Empty"}, wantErr: true},
		{
			name: "overlap",
			table: Table{Name: "Bad", Entries: []TableEntry{
				{Low: 1, High: 3, Text: "a"},
				{Low: 3, High: 4, Text: "b"},
			}},
			wantErr: true,
		},
		{
			name:    "inverted range",
			table:   Table{Name: "Bad", Entries: []TableEntry{{Low: 4, High: 1, Text: "a"}}},
			wantErr: true,
		},
		{
			name:    "bad formula",
			table:   Table{Name: "Bad", Formula: "2d", Entries: []TableEntry{{Low: 1, High: 1, Text: "a"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTable) {
				t.Fatalf("Validate() error = %v, want ErrInvalidTable", err)
			}
		})
	}
}

func TestTableDrawFormula(t *testing.T) {
	if got := lootTable().DrawFormula(); got != "1d6" {
		t.Fatalf("DrawFormula() = %q, want 1d6", got)
	}
	offset := Table{Name: "Offset", Entries: []TableEntry{{Low: 3, High: 5, Text: "a"}}}
	if got := offset.DrawFormula(); got != "1d3 + 2" {
		t.Fatalf("DrawFormula() = %q, want 1d3 + 2", got)
	}
	custom := Table{Name: "Custom", Formula: "2d6", Entries: []TableEntry{{Low: 2, High: 12, Text: "a"}}}
	if got := custom.DrawFormula(); got != "2d6" {
		t.Fatalf("DrawFormula() = %q, want 2d6", got)
	}
}

func TestTableLookup(t *testing.T) {
	table := lootTable()
	tests := []struct {
		value int
		want  string
	}{
		{value: -3, want: "Gold"},
		{value: 1, want: "Gold"},
		{value: 4, want: "Gold"},
		{value: 5, want: "Sword"},
		{value: 40, want: "Sword"},
	}
	for _, tt := range tests {
		if got := table.Lookup(tt.value).Text; got != tt.want {
			t.Errorf("Lookup(%d) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestRollerRoll(t *testing.T) {
	r := NewRoller(1, nil)
	roll, err := r.Roll(context.Background(), "2d1 + 3")
	if err != nil {
		t.Fatalf("Roll() error = %v", err)
	}
	if roll.Total != 5 || roll.Formula != "2d1 + 3" {
		t.Fatalf("Roll() = %+v", roll)
	}
	if len(roll.Dice) != 1 || roll.Dice[0].Sides != 1 || len(roll.Dice[0].Results) != 2 {
		t.Fatalf("Dice = %+v", roll.Dice)
	}

	if _, err := r.Roll(context.Background(), "2d"); !errors.Is(err, ErrInvalidNotation) {
		t.Fatalf("Roll(2d) error = %v, want ErrInvalidNotation", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Roll(ctx, "1d6"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Roll() error = %v, want context.Canceled", err)
	}
}

func TestRollerDeterminism(t *testing.T) {
	a := NewRoller(42, nil)
	b := NewRoller(42, nil)
	for i := 0; i < 5; i++ {
		ra, err := a.Roll(context.Background(), "3d20")
		if err != nil {
			t.Fatalf("Roll() error = %v", err)
		}
		rb, err := b.Roll(context.Background(), "3d20")
		if err != nil {
			t.Fatalf("Roll() error = %v", err)
		}
		if ra.Total != rb.Total {
			t.Fatalf("roll %d: totals differ: %v vs %v", i, ra.Total, rb.Total)
		}
	}
}

func TestRollerDrawTable(t *testing.T) {
	tables := Tables{
		"Loot":  lootTable(),
		"Fixed": {Name: "Fixed", Formula: "1d1 + 4", Entries: lootTable().Entries},
	}
	r := NewRoller(3, tables)
	ctx := context.Background()

	five := 5
	roll, err := r.DrawTable(ctx, "Loot", &five)
	if err != nil {
		t.Fatalf("DrawTable() error = %v", err)
	}
	if len(roll.Entries) != 1 || roll.Entries[0] != "Sword" {
		t.Fatalf("Entries = %v, want [Sword]", roll.Entries)
	}

	roll, err = r.DrawTable(ctx, "Fixed", nil)
	if err != nil {
		t.Fatalf("DrawTable() error = %v", err)
	}
	if roll.Total != 5 || roll.Entries[0] != "Sword" {
		t.Fatalf("DrawTable(Fixed) = %+v", roll)
	}

	roll, err = r.DrawTable(ctx, "Loot", nil)
	if err != nil {
		t.Fatalf("DrawTable() error = %v", err)
	}
	if roll.Total < 1 || roll.Total > 6 {
		t.Fatalf("Total = %v, out of range", roll.Total)
	}

	if _, err := r.DrawTable(ctx, "Lot", nil); !errors.Is(err, engine.ErrTableNotFound) {
		t.Fatalf("DrawTable(Lot) error = %v, want ErrTableNotFound", err)
	}
	names, err := r.TableNames(ctx)
	if err != nil || len(names) != 2 || names[0] != "Fixed" {
		t.Fatalf("TableNames() = %v, %v", names, err)
	}
}

func TestRollerWithoutTables(t *testing.T) {
	r := NewRoller(1, nil)
	if _, err := r.DrawTable(context.Background(), "Loot", nil); !errors.Is(err, engine.ErrTableNotFound) {
		t.Fatalf("DrawTable() error = %v, want ErrTableNotFound", err)
	}
	if names, err := r.TableNames(context.Background()); err != nil || names != nil {
		t.Fatalf("TableNames() = %v, %v", names, err)
	}
}

func TestRollerDrivesPhrase(t *testing.T) {
	rt := &engine.Runtime{Roller: NewRoller(5, Tables{"Loot": lootTable()})}
	p := engine.NewPhrase("You deal ${[2d1kh1] + 2}$ damage and find ${[#Loot|2]}$")
	if err := p.Compute(context.Background(), rt, nil, engine.Options{}); err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if got := p.Result(); got != "You deal 3 damage and find Gold" {
		t.Fatalf("Result() = %q", got)
	}
	if !p.HasDice() {
		t.Fatal("HasDice() = false, want true")
	}
}
