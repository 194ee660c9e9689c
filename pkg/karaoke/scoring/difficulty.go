package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Difficulty names a preset for tolerance strictness and octave folding.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Normal Difficulty = "normal"
	Hard   Difficulty = "hard"
)

// DefaultDifficulty and DefaultToleranceCents are the documented call defaults.
const (
	DefaultDifficulty     = Easy
	DefaultToleranceCents = 200.0
)

type preset struct {
	tolerance float64
	fold      bool
}

var presets = map[Difficulty]preset{
	Easy:   {tolerance: 200, fold: true},
	Normal: {tolerance: 100, fold: true},
	Hard:   {tolerance: 50, fold: false},
}

// IsValid reports whether d is a known difficulty.
func (d Difficulty) IsValid() bool {
	_, ok := presets[d]
	return ok
}

// ParseDifficulty accepts a case-insensitive mode name. Empty selects the default.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultDifficulty, nil
	}
	d := Difficulty(s)
	if !d.IsValid() {
		return "", fmt.Errorf("%w: %q (valid: easy, normal, hard)", ErrInvalidDifficulty, s)
	}
	return d, nil
}

// Policy is the resolved per-call scoring policy.
type Policy struct {
	Difficulty           Difficulty `json:"difficulty"`
	ToleranceCents       float64    `json:"tolerance_cents"`
	FoldOctaves          bool       `json:"fold_octaves"`
	UnvoicedPenaltyCents float64    `json:"unvoiced_penalty_cents"`
}

// ResolvePolicy applies the difficulty table. A non-nil tolerance overrides the mode default.
func ResolvePolicy(d Difficulty, tolerance *float64) (Policy, error) {
	if d == "" {
		d = DefaultDifficulty
	}
	p, ok := presets[d]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrInvalidDifficulty, d)
	}
	policy := Policy{
		Difficulty:           d,
		ToleranceCents:       p.tolerance,
		FoldOctaves:          p.fold,
		UnvoicedPenaltyCents: DefaultUnvoicedPenaltyCents,
	}
	if tolerance != nil {
		if math.IsNaN(*tolerance) || *tolerance < 0 {
			return Policy{}, fmt.Errorf("%w: %v", ErrInvalidTolerance, *tolerance)
		}
		policy.ToleranceCents = *tolerance
	}
	return policy, nil
}
