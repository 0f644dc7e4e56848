package dice

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
)

// TableSource serves roll tables by name. Unknown names return an error
// wrapping engine.ErrTableNotFound.
type TableSource interface {
	RollTable(ctx context.Context, name string) (Table, error)
	RollTableNames(ctx context.Context) ([]string, error)
}

// Tables is an in-memory TableSource.
type Tables map[string]Table

// RollTable returns the named table.
func (t Tables) RollTable(_ context.Context, name string) (Table, error) {
	table, ok := t[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", engine.ErrTableNotFound, name)
	}
	return table, nil
}

// RollTableNames returns the table names in order.
func (t Tables) RollTableNames(context.Context) ([]string, error) {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Roller rolls dice notation and draws from roll tables with one seeded
// random source. It is safe for concurrent use; the sequence of results is
// reproducible for a given seed and call order.
type Roller struct {
	mu     sync.Mutex
	rng    *rand.Rand
	tables TableSource
}

// NewRoller creates a roller seeded with seed. tables may be nil.
func NewRoller(seed int64, tables TableSource) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed)), tables: tables}
}

// Roll rolls dice notation.
func (r *Roller) Roll(ctx context.Context, formula string) (engine.Roll, error) {
	if err := ctx.Err(); err != nil {
		return engine.Roll{}, err
	}
	notation, err := ParseNotation(formula)
	if err != nil {
		return engine.Roll{}, err
	}
	return r.roll(notation)
}

// DrawTable draws one entry of the named table. A selector picks the entry
// directly; otherwise the table's draw formula is rolled.
func (r *Roller) DrawTable(ctx context.Context, name string, selector *int) (engine.Roll, error) {
	if r.tables == nil {
		return engine.Roll{}, fmt.Errorf("%w: %s", engine.ErrTableNotFound, name)
	}
	table, err := r.tables.RollTable(ctx, name)
	if err != nil {
		return engine.Roll{}, err
	}
	if err := table.Validate(); err != nil {
		return engine.Roll{}, err
	}

	if selector != nil {
		entry := table.Lookup(*selector)
		return engine.Roll{
			Formula: table.Name,
			Total:   float64(*selector),
			Entries: []string{entry.Text},
		}, nil
	}

	notation, err := ParseNotation(table.DrawFormula())
	if err != nil {
		return engine.Roll{}, err
	}
	roll, err := r.roll(notation)
	if err != nil {
		return engine.Roll{}, err
	}
	roll.Entries = []string{table.Lookup(int(roll.Total)).Text}
	return roll, nil
}

// TableNames lists the roll tables known to the roller.
func (r *Roller) TableNames(ctx context.Context) ([]string, error) {
	if r.tables == nil {
		return nil, nil
	}
	return r.tables.RollTableNames(ctx)
}

func (r *Roller) roll(notation *Notation) (engine.Roll, error) {
	r.mu.Lock()
	outcome, err := notation.Roll(r.rng)
	r.mu.Unlock()
	if err != nil {
		return engine.Roll{}, err
	}

	dice := make([]engine.DieResult, 0, len(outcome.Rolls))
	for _, roll := range outcome.Rolls {
		dice = append(dice, engine.DieResult{
			Sides:   roll.Sides,
			Results: roll.Results,
			Kept:    roll.Kept,
		})
	}
	return engine.Roll{
		Formula: notation.Source,
		Total:   outcome.Total,
		Dice:    dice,
	}, nil
}
