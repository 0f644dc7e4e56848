// Package dice rolls dice notation and draws from roll tables for phrase
// computations.
package dice

import (
	"errors"
	"math/rand"
	"sort"
)

// maxDice bounds the number of dice one term may roll.
const maxDice = 1000

var (
	// ErrMissingDice indicates a roll request had no dice specified.
	ErrMissingDice = errors.New("at least one die must be provided")

	// ErrInvalidDiceSpec indicates a die specification has invalid fields.
	ErrInvalidDiceSpec = errors.New("dice must have positive sides and count")
)

// Spec describes a die to roll and how many times to roll it. Keep, when
// positive, keeps only that many of the highest results, or of the lowest
// when KeepLowest is set.
type Spec struct {
	Sides      int
	Count      int
	Keep       int
	KeepLowest bool
}

// Roll captures every face rolled for one Spec. Total sums the kept faces.
type Roll struct {
	Sides   int
	Results []int
	Kept    []int
	Total   int
}

// Request describes a request to roll one or more dice.
type Request struct {
	Dice []Spec
	Seed int64
}

// Result captures the results from rolling multiple dice.
type Result struct {
	Rolls []Roll
	Total int
}

// RollDice rolls request.Dice in order with a source seeded by
// request.Seed, so equal requests produce equal results. It fails with
// ErrMissingDice for an empty request and ErrInvalidDiceSpec for a spec
// outside 0 < Count <= 1000, Sides > 0 and 0 <= Keep <= Count.
func RollDice(request Request) (Result, error) {
	return RollWithRng(rand.New(rand.NewSource(request.Seed)), request.Dice)
}

// RollWithRng is RollDice over an existing source; a Roller threads one
// source through every roll of a phrase.
func RollWithRng(rng *rand.Rand, specs []Spec) (Result, error) {
	if len(specs) == 0 {
		return Result{}, ErrMissingDice
	}
	for _, spec := range specs {
		if err := spec.validate(); err != nil {
			return Result{}, err
		}
	}

	rolls := make([]Roll, 0, len(specs))
	total := 0
	for _, spec := range specs {
		roll := rollSpec(rng, spec)
		rolls = append(rolls, roll)
		total += roll.Total
	}

	return Result{
		Rolls: rolls,
		Total: total,
	}, nil
}

func (s Spec) validate() error {
	if s.Sides <= 0 || s.Count <= 0 || s.Count > maxDice {
		return ErrInvalidDiceSpec
	}
	if s.Keep < 0 || s.Keep > s.Count {
		return ErrInvalidDiceSpec
	}
	return nil
}

func rollSpec(rng *rand.Rand, spec Spec) Roll {
	results := make([]int, spec.Count)
	for i := range results {
		results[i] = rollDie(rng, spec.Sides)
	}
	kept := keep(results, spec)

	total := 0
	for _, value := range kept {
		total += value
	}
	return Roll{
		Sides:   spec.Sides,
		Results: results,
		Kept:    kept,
		Total:   total,
	}
}

// keep returns the kept faces in roll order.
func keep(results []int, spec Spec) []int {
	if spec.Keep == 0 || spec.Keep == len(results) {
		return append([]int(nil), results...)
	}
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if spec.KeepLowest {
			return results[order[a]] < results[order[b]]
		}
		return results[order[a]] > results[order[b]]
	})
	chosen := order[:spec.Keep]
	sort.Ints(chosen)

	kept := make([]int, 0, spec.Keep)
	for _, i := range chosen {
		kept = append(kept, results[i])
	}
	return kept
}

func rollDie(rng *rand.Rand, sides int) int {
	return rng.Intn(sides) + 1
}
