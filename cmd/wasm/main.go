//go:build js && wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/audio"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/extract"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorScoring
	ErrorNoPitch
	ErrorEncoding
)

// scoreContours scores two contours given as {time, frequency, confidence} arrays.
// Optional third argument: {difficulty, tolerance, advice}.
// Returns: {error: number, data: object | string}
func scoreContours(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected at least 2 arguments: user, reference")
	}

	user, err := contourFromJS(args[0])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, "user: "+err.Error())
	}
	ref, err := contourFromJS(args[1])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, "reference: "+err.Error())
	}

	var opts scoring.Options
	advice := false
	if len(args) > 2 && args[2].Type() == js.TypeObject {
		o := args[2]
		if d := o.Get("difficulty"); d.Type() == js.TypeString {
			diff, err := scoring.ParseDifficulty(d.String())
			if err != nil {
				return makeErrorResponse(ErrorInvalidArgs, err.Error())
			}
			opts.Difficulty = diff
		}
		if t := o.Get("tolerance"); t.Type() == js.TypeNumber {
			tol := t.Float()
			opts.ToleranceCents = &tol
		}
		advice = o.Get("advice").Truthy()
	}

	ev, err := scoring.Evaluate(user, ref, opts)
	if err != nil {
		return makeErrorResponse(ErrorScoring, scoring.Fail(err).Err().Error())
	}

	out := struct {
		scoring.Metrics
		Policy   scoring.Policy    `json:"policy"`
		Feedback *scoring.Feedback `json:"feedback,omitempty"`
	}{Metrics: mustMetrics(scoring.Success(ev.Metrics)), Policy: ev.Policy}
	if advice {
		fb := scoring.Advise(ev)
		out.Feedback = &fb
	}
	return makeJSONResponse(out)
}

// detectPitch runs YIN over raw PCM samples.
// Arguments: audioArray, sampleRate, channels. Returns {error, data: {time, frequency, confidence}}.
func detectPitch(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels")
	}
	if args[0].Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray must be an Array or Float32Array")
	}
	if args[1].Type() != js.TypeNumber || args[2].Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate and channels must be numbers")
	}

	sampleRate := args[1].Int()
	channels := args[2].Int()
	if sampleRate <= 0 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sample rate: %d", sampleRate))
	}
	if channels < 1 || channels > 2 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels))
	}

	samples, err := floatsFromJS(args[0])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray: "+err.Error())
	}
	if len(samples) == 0 {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray is empty")
	}
	if channels == 2 {
		samples = stereoToMono(samples)
	}

	params := extract.DefaultYINParams()
	params.HopSize = sampleRate / 100
	contour := extract.DetectPitch(&audio.PCM{Samples: samples, SampleRate: sampleRate}, params)

	voiced := 0
	for _, s := range contour {
		if s.Frequency > 0 {
			voiced++
		}
	}
	if voiced == 0 {
		return makeErrorResponse(ErrorNoPitch, "No pitched frames found (audio may be silent or too short)")
	}

	data := struct {
		Time       []float64 `json:"time"`
		Frequency  []float64 `json:"frequency"`
		Confidence []float64 `json:"confidence"`
	}{}
	for _, s := range contour {
		data.Time = append(data.Time, s.Time)
		data.Frequency = append(data.Frequency, s.Frequency)
		data.Confidence = append(data.Confidence, s.Confidence)
	}
	return makeJSONResponse(data)
}

func contourFromJS(v js.Value) ([]scoring.Sample, error) {
	if v.Type() != js.TypeObject {
		return nil, fmt.Errorf("expected an object with time, frequency and confidence arrays")
	}
	times, err := floatsFromJS(v.Get("time"))
	if err != nil {
		return nil, fmt.Errorf("time: %w", err)
	}
	freqs, err := floatsFromJS(v.Get("frequency"))
	if err != nil {
		return nil, fmt.Errorf("frequency: %w", err)
	}
	confs, err := floatsFromJS(v.Get("confidence"))
	if err != nil {
		return nil, fmt.Errorf("confidence: %w", err)
	}
	if len(times) != len(freqs) || len(times) != len(confs) {
		return nil, fmt.Errorf("array lengths differ: %d/%d/%d", len(times), len(freqs), len(confs))
	}

	out := make([]scoring.Sample, len(times))
	for i := range out {
		out[i] = scoring.Sample{Time: times[i], Frequency: freqs[i], Confidence: confs[i]}
	}
	return out, nil
}

func floatsFromJS(v js.Value) ([]float64, error) {
	if v.Type() != js.TypeObject {
		return nil, fmt.Errorf("not an array")
	}
	n := v.Length()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		el := v.Index(i)
		if el.Type() != js.TypeNumber {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out[i] = el.Float()
	}
	return out, nil
}

func stereoToMono(stereo []float64) []float64 {
	if len(stereo)%2 != 0 {
		stereo = stereo[:len(stereo)-1]
	}
	mono := make([]float64, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) / 2.0
	}
	return mono
}

func mustMetrics(r scoring.Result) scoring.Metrics {
	m, _ := r.Metrics()
	return m
}

func makeJSONResponse(v any) js.Value {
	raw, err := json.Marshal(v)
	if err != nil {
		return makeErrorResponse(ErrorEncoding, err.Error())
	}
	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", js.Global().Get("JSON").Call("parse", string(raw)))
	return result
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, msg string) {
		if !console.IsUndefined() {
			console.Call(method, msg)
		}
	}
	logf("log", "🔧 KaraokeScore WASM module initializing...")

	js.Global().Set("karaokeScoreContours", js.FuncOf(scoreContours))
	js.Global().Set("karaokeDetectPitch", js.FuncOf(detectPitch))

	window := js.Global().Get("window")
	if window.IsUndefined() {
		logf("error", "❌ window object is undefined!")
	} else {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	}

	logf("log", "✅ KaraokeScore WASM module loaded and ready")
	select {}
}
