package dice

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrInvalidNotation indicates dice notation that does not parse.
var ErrInvalidNotation = errors.New("invalid dice notation")

// diceTerm matches NdM, dM, Nd% and the keep suffixes khK, klK and kK.
var diceTerm = regexp.MustCompile(`(?i)\b(\d*)d(\d+|%)(?:(kh|kl|k)(\d+))?`)

// arithmetic builtins allowed around dice terms.
var notationBuiltins = []string{"abs", "ceil", "floor", "max", "min", "round"}

// Notation is a parsed dice expression such as "2d20kh1 + 5" or
// "floor(3d6 / 2)". Dice terms are rolled on every Roll; the arithmetic
// around them is compiled once.
type Notation struct {
	Source  string
	Terms   []Spec
	program *vm.Program
}

// Outcome is the result of rolling a Notation.
type Outcome struct {
	Rolls []Roll
	Total float64
}

// ParseNotation compiles dice notation.
func ParseNotation(text string) (*Notation, error) {
	source := strings.TrimSpace(text)
	if source == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidNotation)
	}

	var (
		terms   []Spec
		termErr error
	)
	rewritten := diceTerm.ReplaceAllStringFunc(source, func(term string) string {
		spec, err := parseTerm(diceTerm.FindStringSubmatch(term))
		if err != nil && termErr == nil {
			termErr = fmt.Errorf("%w: %s: %w", ErrInvalidNotation, term, err)
		}
		terms = append(terms, spec)
		return termName(len(terms) - 1)
	})
	if termErr != nil {
		return nil, termErr
	}

	program, err := expr.Compile(rewritten, notationOptions(len(terms))...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidNotation, source, err)
	}
	return &Notation{Source: source, Terms: terms, program: program}, nil
}

// Roll rolls every dice term and evaluates the arithmetic.
func (n *Notation) Roll(rng *rand.Rand) (Outcome, error) {
	env := make(map[string]any, len(n.Terms))
	rolls := make([]Roll, 0, len(n.Terms))
	for i, spec := range n.Terms {
		roll := rollSpec(rng, spec)
		rolls = append(rolls, roll)
		env[termName(i)] = float64(roll.Total)
	}
	out, err := expr.Run(n.program, env)
	if err != nil {
		return Outcome{}, fmt.Errorf("evaluate %s: %w", n.Source, err)
	}
	total, ok := out.(float64)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s does not produce a number", ErrInvalidNotation, n.Source)
	}
	return Outcome{Rolls: rolls, Total: total}, nil
}

func notationOptions(terms int) []expr.Option {
	env := make(map[string]any, terms)
	for i := 0; i < terms; i++ {
		env[termName(i)] = float64(0)
	}
	options := []expr.Option{expr.Env(env), expr.AsFloat64(), expr.DisableAllBuiltins()}
	for _, name := range notationBuiltins {
		options = append(options, expr.EnableBuiltin(name))
	}
	return options
}

func parseTerm(match []string) (Spec, error) {
	spec := Spec{Count: 1}
	if match[1] != "" {
		count, err := strconv.Atoi(match[1])
		if err != nil {
			return spec, err
		}
		spec.Count = count
	}
	if match[2] == "%" {
		spec.Sides = 100
	} else {
		sides, err := strconv.Atoi(match[2])
		if err != nil {
			return spec, err
		}
		spec.Sides = sides
	}
	if match[4] != "" {
		keep, err := strconv.Atoi(match[4])
		if err != nil {
			return spec, err
		}
		if keep < 1 {
			return spec, ErrInvalidDiceSpec
		}
		spec.Keep = keep
		spec.KeepLowest = strings.EqualFold(match[3], "kl")
	}
	return spec, spec.validate()
}

func termName(i int) string {
	return "_d" + strconv.Itoa(i)
}
