// Package scoring aligns a sung pitch contour against a reference melody and reduces the
// alignment to accuracy, DTW, and composite scores.
//
// Every call is independent: the pipeline normalizes both contours, aligns them with a
// banded DTW, classifies voiced pairs against the tolerance, aggregates, and assembles a
// Result. Nothing is cached between calls, so callers may score concurrently.
package scoring

import "errors"

// Options configures one scoring call. The zero value scores on easy with defaults.
type Options struct {
	Difficulty           Difficulty
	ToleranceCents       *float64 // nil uses the difficulty default
	UnvoicedPenaltyCents float64
	Normalize            NormalizeOptions
	Align                AlignOptions
}

// Evaluation is the full outcome of a successful call, including intermediate products.
type Evaluation struct {
	Policy    Policy
	User      Contour
	Reference Contour
	Alignment *Alignment
	Stats     PathStats
	Metrics   Metrics
}

// Score runs the pipeline and always returns a Result; errors become the failure shape.
func Score(user, ref []Sample, opts Options) Result {
	ev, err := Evaluate(user, ref, opts)
	if err != nil {
		return Fail(err)
	}
	return Success(ev.Metrics)
}

// Evaluate runs the pipeline and returns the intermediate products alongside the metrics.
func Evaluate(user, ref []Sample, opts Options) (*Evaluation, error) {
	policy, err := ResolvePolicy(opts.Difficulty, opts.ToleranceCents)
	if err != nil {
		return nil, WithStage(StageInput, err)
	}
	if opts.UnvoicedPenaltyCents > 0 {
		policy.UnvoicedPenaltyCents = opts.UnvoicedPenaltyCents
	}

	nopts := opts.Normalize
	if nopts == (NormalizeOptions{}) {
		nopts = DefaultNormalizeOptions()
	}
	userContour, err := normalizeNamed("user", user, nopts)
	if err != nil {
		return nil, err
	}
	refContour, err := normalizeNamed("reference", ref, nopts)
	if err != nil {
		return nil, err
	}

	return EvaluateContours(userContour, refContour, policy, opts.Align)
}

// EvaluateContours aligns and scores two already-normalized contours.
func EvaluateContours(user, ref Contour, policy Policy, alignOpts AlignOptions) (*Evaluation, error) {
	al, err := AlignContours(user, ref, policy, alignOpts)
	if err != nil {
		return nil, WithStage(stageOr(err, StageAlignment), err)
	}

	stats, err := EvaluatePath(user, ref, al.Path, policy)
	if err != nil {
		return nil, WithStage(StageScoring, err)
	}

	duration := max(user.Duration(), ref.Duration())
	return &Evaluation{
		Policy:    policy,
		User:      user,
		Reference: ref,
		Alignment: al,
		Stats:     stats,
		Metrics:   Aggregate(al, stats, duration),
	}, nil
}

func normalizeNamed(name string, samples []Sample, opts NormalizeOptions) (Contour, error) {
	c, err := Normalize(samples, opts)
	if err != nil {
		var (
			ece *EmptyContourError
			tle *ContourTooLongError
		)
		if errors.As(err, &ece) {
			ece.Contour = name
		}
		if errors.As(err, &tle) {
			tle.Contour = name
		}
		return c, WithStage(stageOr(err, StageExtraction), err)
	}
	return c, nil
}
