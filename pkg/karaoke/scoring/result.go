package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Metrics is the success payload of a scoring call.
type Metrics struct {
	FinalScore  float64 `json:"final_score"`
	Accuracy    float64 `json:"accuracy"`
	DTWScore    float64 `json:"dtw_score"`
	DTWDistance float64 `json:"dtw_distance"`
	MAECents    float64 `json:"mae_cents"`
	Duration    float64 `json:"duration"`
}

// Failure is the error payload of a scoring call.
type Failure struct {
	Stage   Stage
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Result holds exactly one of Metrics or Failure.
type Result struct {
	metrics *Metrics
	failure *Failure
}

// Success builds a successful result. Values are rounded to two decimals.
func Success(m Metrics) Result {
	m = Metrics{
		FinalScore:  round2(m.FinalScore),
		Accuracy:    round2(m.Accuracy),
		DTWScore:    round2(m.DTWScore),
		DTWDistance: round2(m.DTWDistance),
		MAECents:    round2(m.MAECents),
		Duration:    round2(m.Duration),
	}
	return Result{metrics: &m}
}

// Fail converts any pipeline error into a failed result whose message names the stage.
func Fail(err error) Result {
	if err == nil {
		err = errors.New("unknown failure")
	}
	stage := StageOf(err)
	msg := err.Error()
	var se *StageError
	if !errors.As(err, &se) || !strings.HasPrefix(msg, string(se.Stage)+":") {
		msg = fmt.Sprintf("%s: %s", stage, msg)
	}
	return Result{failure: &Failure{Stage: stage, Message: msg}}
}

// OK reports whether the result carries metrics.
func (r Result) OK() bool { return r.metrics != nil }

// Metrics returns the metrics, or zeros and false on failure.
func (r Result) Metrics() (Metrics, bool) {
	if r.metrics == nil {
		return Metrics{}, false
	}
	return *r.metrics, true
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.metrics != nil {
		return nil
	}
	if r.failure == nil {
		return &Failure{Stage: StageInternal, Message: "internal: empty result"}
	}
	return r.failure
}

// Failure returns the failure payload, or false on success.
func (r Result) Failure() (Failure, bool) {
	if r.metrics != nil {
		return Failure{}, false
	}
	var f *Failure
	errors.As(r.Err(), &f)
	return *f, true
}

// MarshalJSON emits either the six metric fields or a lone "error" field.
func (r Result) MarshalJSON() ([]byte, error) {
	if m, ok := r.Metrics(); ok {
		return json.Marshal(m)
	}
	return json.Marshal(struct {
		Error string `json:"error"`
	}{Error: r.Err().Error()})
}

// UnmarshalJSON decodes either shape, discriminated by the presence of "error".
func (r *Result) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("decoding error field: %w", err)
		}
		*r = Result{failure: &Failure{Stage: stageFromMessage(msg), Message: msg}}
		return nil
	}
	var m Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = Result{metrics: &m}
	return nil
}

func stageFromMessage(msg string) Stage {
	head, _, ok := strings.Cut(msg, ":")
	if !ok {
		return StageInternal
	}
	switch s := Stage(head); s {
	case StageInput, StageExtraction, StageAlignment, StageScoring:
		return s
	}
	return StageInternal
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
