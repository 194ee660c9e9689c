package scoring

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDifficulty = errors.New("scoring: invalid difficulty")
	ErrInvalidTolerance  = errors.New("scoring: invalid tolerance")
)

// Stage identifies the pipeline step an error came from.
type Stage string

const (
	StageInput      Stage = "input"
	StageExtraction Stage = "extraction"
	StageAlignment  Stage = "alignment"
	StageScoring    Stage = "scoring"
	StageInternal   Stage = "internal"
)

// StageError tags an error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// WithStage wraps err with a stage tag. A nil err stays nil.
func WithStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// EmptyContourError means a contour had no voiced frame after normalization.
type EmptyContourError struct {
	Contour string // "user" or "reference" when known
	Samples int
}

func (e *EmptyContourError) Error() string {
	name := "contour"
	if e.Contour != "" {
		name = e.Contour + " contour"
	}
	return fmt.Sprintf("%s has no voiced frames (%d raw samples)", name, e.Samples)
}

// AlignmentUnreachableError means the band could not connect (0,0) to (N-1,M-1).
type AlignmentUnreachableError struct {
	UserFrames int
	RefFrames  int
	Radius     int
}

func (e *AlignmentUnreachableError) Error() string {
	return fmt.Sprintf("no alignment path for %dx%d frames within band radius %d",
		e.UserFrames, e.RefFrames, e.Radius)
}

// ContourTooLongError means a contour's time span needs more grid frames than allowed.
type ContourTooLongError struct {
	Contour   string
	Seconds   float64
	Frames    float64
	MaxFrames int
}

func (e *ContourTooLongError) Error() string {
	name := "contour"
	if e.Contour != "" {
		name = e.Contour + " contour"
	}
	return fmt.Sprintf("%s spans %.6gs, which needs %.6g frames (maximum %d)",
		name, e.Seconds, e.Frames, e.MaxFrames)
}

// AlignmentTooLargeError means the DTW band would hold more cells than allowed.
type AlignmentTooLargeError struct {
	UserFrames int
	RefFrames  int
	Radius     int
	Cells      int64
	MaxCells   int64
}

func (e *AlignmentTooLargeError) Error() string {
	return fmt.Sprintf("alignment of %dx%d frames at band radius %d needs %d cells (maximum %d)",
		e.UserFrames, e.RefFrames, e.Radius, e.Cells, e.MaxCells)
}

// NoVoicedOverlapError means no aligned pair had both frames voiced.
type NoVoicedOverlapError struct {
	PathLength int
}

func (e *NoVoicedOverlapError) Error() string {
	return fmt.Sprintf("no voiced overlap along %d aligned pairs", e.PathLength)
}

// StageOf reports which stage err belongs to.
func StageOf(err error) Stage {
	var (
		se  *StageError
		ece *EmptyContourError
		tle *ContourTooLongError
		ate *AlignmentTooLargeError
		aue *AlignmentUnreachableError
		nvo *NoVoicedOverlapError
	)
	switch {
	case errors.As(err, &se):
		return se.Stage
	case errors.As(err, &ece):
		return StageExtraction
	case errors.As(err, &tle), errors.As(err, &ate):
		return StageInput
	case errors.As(err, &aue):
		return StageAlignment
	case errors.As(err, &nvo):
		return StageScoring
	case errors.Is(err, ErrInvalidDifficulty), errors.Is(err, ErrInvalidTolerance):
		return StageInput
	}
	return StageInternal
}

// stageOr is StageOf(err), falling back when err carries no known stage.
func stageOr(err error, fallback Stage) Stage {
	if s := StageOf(err); s != StageInternal {
		return s
	}
	return fallback
}
