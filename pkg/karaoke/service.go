// Package karaoke is the scoring service: it validates inputs, extracts the user and
// reference pitch contours, scores them, and keeps a history of runs.
package karaoke

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/KaraokeScore/internal/observe"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/audio"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/extract"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
	"github.com/himanishpuri/KaraokeScore/pkg/logger"
	"github.com/himanishpuri/KaraokeScore/pkg/utils"
)

// karaokeService is the default implementation of the Service interface.
type karaokeService struct {
	storage Storage
	log     Logger
	metrics *observe.Metrics
	config  *Config

	mu          sync.Mutex
	runtime     *extract.Runtime
	ownsRuntime bool
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().With("karaoke")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &karaokeService{
		storage: stor,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		config:  cfg,
		runtime: cfg.Runtime,
	}, nil
}

func (s *karaokeService) Score(ctx context.Context, req ScoreRequest) scoring.Result {
	return s.Analyze(ctx, req).Result
}

func (s *karaokeService) Analyze(ctx context.Context, req ScoreRequest) *Report {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "karaoke.score")
	s.metrics.ActiveScorings.Add(ctx, 1)
	defer s.metrics.ActiveScorings.Add(ctx, -1)

	s.log.Infof("Scoring %s against %s", filepath.Base(req.UserPath), filepath.Base(req.ReferencePath))

	rep := &Report{}
	ev, err := s.evaluate(ctx, req, rep)
	if err != nil {
		rep.Result = scoring.Fail(err)
	} else {
		rep.Evaluation = ev
		rep.Result = scoring.Success(ev.Metrics)
		if req.Advice {
			fb := scoring.Advise(ev)
			rep.Feedback = &fb
		}
	}

	s.persist(req, rep)
	s.observeResult(ctx, rep.Result, time.Since(start))
	observe.EndSpan(span, rep.Result.Err())
	return rep
}

func (s *karaokeService) evaluate(ctx context.Context, req ScoreRequest, rep *Report) (*scoring.Evaluation, error) {
	name := req.Method
	if name == "" {
		name = string(s.config.DefaultMethod)
	}
	method, err := extract.ParseMethod(name)
	if err != nil {
		return nil, scoring.WithStage(scoring.StageInput, err)
	}
	rep.Method = method

	opts, err := s.scoringOptions(req.Difficulty, req.Tolerance)
	if err != nil {
		return nil, err
	}
	policy, err := scoring.ResolvePolicy(opts.Difficulty, opts.ToleranceCents)
	if err != nil {
		return nil, scoring.WithStage(scoring.StageInput, err)
	}
	if opts.UnvoicedPenaltyCents > 0 {
		policy.UnvoicedPenaltyCents = opts.UnvoicedPenaltyCents
	}
	rep.Policy = &policy

	if err := audio.ValidateInput(req.UserPath, false); err != nil {
		return nil, scoring.WithStage(scoring.StageInput, fmt.Errorf("user audio: %w", err))
	}
	if err := audio.ValidateInput(req.ReferencePath, true); err != nil {
		return nil, scoring.WithStage(scoring.StageInput, fmt.Errorf("reference: %w", err))
	}

	ex, err := s.extractor(method)
	if err != nil {
		return nil, scoring.WithStage(scoring.StageExtraction, err)
	}

	user, ref, err := s.extractPair(ctx, ex, req)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("Extracted %d user and %d reference samples with %s", len(user), len(ref), method)

	_, span := observe.StartSpan(ctx, "karaoke.evaluate")
	ev, err := scoring.Evaluate(user, ref, opts)
	observe.EndSpan(span, err)
	return ev, err
}

// extractPair extracts both contours concurrently. The first failure cancels the other.
func (s *karaokeService) extractPair(ctx context.Context, ex extract.Extractor, req ScoreRequest) ([]scoring.Sample, []scoring.Sample, error) {
	midiOpts := s.config.MIDI
	if req.TrackFilter != "" {
		midiOpts.TrackFilter = req.TrackFilter
	}

	var user, ref []scoring.Sample
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		samples, err := s.timedExtract(gctx, "user", string(ex.Method()), func(ctx context.Context) ([]scoring.Sample, error) {
			return ex.Extract(ctx, req.UserPath)
		})
		if err != nil {
			return scoring.WithStage(scoring.StageExtraction, fmt.Errorf("user audio: %w", err))
		}
		user = samples
		return nil
	})

	g.Go(func() error {
		method := string(ex.Method())
		if audio.IsMIDI(req.ReferencePath) {
			method = "midi"
		}
		samples, err := s.timedExtract(gctx, "reference", method, func(ctx context.Context) ([]scoring.Sample, error) {
			return extract.LoadReference(ctx, req.ReferencePath, ex, midiOpts)
		})
		if err != nil {
			stage := scoring.StageExtraction
			if audio.IsMIDI(req.ReferencePath) && !errors.Is(err, context.Canceled) {
				stage = scoring.StageInput
			}
			return scoring.WithStage(stage, fmt.Errorf("reference: %w", err))
		}
		ref = samples
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return user, ref, nil
}

func (s *karaokeService) timedExtract(
	ctx context.Context,
	role, method string,
	fn func(context.Context) ([]scoring.Sample, error),
) ([]scoring.Sample, error) {
	ctx, span := observe.StartSpan(ctx, "karaoke.extract."+role)
	start := time.Now()
	samples, err := fn(ctx)
	s.metrics.RecordExtraction(ctx, method, role, time.Since(start).Seconds())
	observe.EndSpan(span, err)
	return samples, err
}

// extractor returns the injected extractor for method or builds the built-in one,
// starting the shared runtime on first use.
func (s *karaokeService) extractor(method extract.Method) (extract.Extractor, error) {
	if ex, ok := s.config.Extractors[method]; ok {
		return ex, nil
	}

	var rt *extract.Runtime
	if method.NeedsRuntime() {
		var err error
		if rt, err = s.acquireRuntime(); err != nil {
			return nil, err
		}
	}
	return extract.New(method, extract.Options{
		Runtime:    rt,
		TempDir:    s.config.TempDir,
		SampleRate: s.config.SampleRate,
		FFmpegPath: s.config.FFmpegPath,
	})
}

func (s *karaokeService) acquireRuntime() (*extract.Runtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runtime != nil {
		return s.runtime, nil
	}

	rc := s.config.RuntimeConfig
	if rc.WorkDir == "" {
		rc.WorkDir = s.config.TempDir
	}
	if err := utils.MakeDir(rc.WorkDir); err != nil {
		return nil, fmt.Errorf("preparing runtime dir: %w", err)
	}
	rt, err := extract.NewRuntime(rc)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Started extraction runtime in %s", rt.Dir())
	s.runtime = rt
	s.ownsRuntime = true
	return rt, nil
}

func (s *karaokeService) scoringOptions(difficulty string, tolerance *float64) (scoring.Options, error) {
	opts := s.config.Scoring
	if difficulty != "" {
		d, err := scoring.ParseDifficulty(difficulty)
		if err != nil {
			return opts, scoring.WithStage(scoring.StageInput, err)
		}
		opts.Difficulty = d
	}
	if tolerance != nil {
		opts.ToleranceCents = tolerance
	}
	return opts, nil
}

// ScoreContours scores pre-extracted contours. Nothing is persisted.
func (s *karaokeService) ScoreContours(ctx context.Context, req ContourRequest) scoring.Result {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "karaoke.score_contours")

	var res scoring.Result
	if opts, err := s.scoringOptions(req.Difficulty, req.Tolerance); err != nil {
		res = scoring.Fail(err)
	} else {
		res = scoring.Score(req.User, req.Reference, opts)
	}

	s.observeResult(ctx, res, time.Since(start))
	observe.EndSpan(span, res.Err())
	return res
}

func (s *karaokeService) persist(req ScoreRequest, rep *Report) {
	sess := &Session{
		UserFile:      filepath.Base(req.UserPath),
		ReferenceFile: filepath.Base(req.ReferencePath),
		Method:        string(rep.Method),
		Difficulty:    req.Difficulty,
	}
	if req.Tolerance != nil {
		sess.ToleranceCents = *req.Tolerance
	}
	if rep.Policy != nil {
		sess.Difficulty = string(rep.Policy.Difficulty)
		sess.ToleranceCents = rep.Policy.ToleranceCents
	}

	if m, ok := rep.Result.Metrics(); ok {
		sess.FinalScore = m.FinalScore
		sess.Accuracy = m.Accuracy
		sess.DTWScore = m.DTWScore
		sess.DTWDistance = m.DTWDistance
		sess.MAECents = m.MAECents
		sess.Duration = m.Duration
	} else if f, ok := rep.Result.Failure(); ok {
		sess.Stage = string(f.Stage)
		sess.Error = f.Message
	}

	id, err := s.storage.SaveSession(sess)
	if err != nil {
		s.log.Warnf("Failed to save session: %v", err)
		return
	}
	rep.SessionID = id
}

func (s *karaokeService) observeResult(ctx context.Context, res scoring.Result, elapsed time.Duration) {
	s.metrics.ScoreDuration.Record(ctx, elapsed.Seconds())
	if m, ok := res.Metrics(); ok {
		s.metrics.RecordResult(ctx, observe.StatusSuccess, "")
		s.metrics.FinalScore.Record(ctx, m.FinalScore)
		s.log.Infof("Scored %.2f (accuracy %.2f%%) in %s", m.FinalScore, m.Accuracy, elapsed.Round(time.Millisecond))
		return
	}
	f, _ := res.Failure()
	s.metrics.RecordResult(ctx, observe.StatusError, string(f.Stage))
	s.log.Warnf("Scoring failed: %s", f.Message)
}

// Inspect reports container metadata for audio files and the track list for MIDI files.
func (s *karaokeService) Inspect(ctx context.Context, path string) (*Inspection, error) {
	if err := audio.ValidateInput(path, true); err != nil {
		return nil, err
	}

	if audio.IsMIDI(path) {
		tracks, err := extract.InspectMIDI(path)
		if err != nil {
			return nil, err
		}
		return &Inspection{Path: path, Kind: "midi", Tracks: tracks}, nil
	}

	var (
		meta *audio.Metadata
		err  error
	)
	if audio.IsWAV(path) {
		meta, err = audio.ProbeWAV(path)
	}
	if meta == nil {
		meta, err = audio.Probe(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", filepath.Base(path), err)
	}
	return &Inspection{Path: path, Kind: "audio", Audio: meta}, nil
}

func (s *karaokeService) GetSession(id string) (*Session, error) {
	return s.storage.GetSession(id)
}

func (s *karaokeService) ListSessions(limit, offset int) ([]Session, error) {
	return s.storage.ListSessions(limit, offset)
}

func (s *karaokeService) DeleteSession(id string) error {
	return s.storage.DeleteSession(id)
}

// Close releases the storage and any runtime the service started itself.
func (s *karaokeService) Close() error {
	var errs []error
	s.mu.Lock()
	if s.ownsRuntime && s.runtime != nil {
		errs = append(errs, s.runtime.Close())
		s.runtime = nil
	}
	s.mu.Unlock()
	errs = append(errs, s.storage.Close())
	return errors.Join(errs...)
}
