package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/KaraokeScore/internal/config"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
	"github.com/himanishpuri/KaraokeScore/pkg/logger"
)

// Global flags
var (
	configPath string
	dbPath     string
	tempDir    string
	sampleRate int
	python     string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&dbPath, "db", "", "Path to the SQLite session database (env: KARAOKE_DB_PATH)")
	flag.StringVar(&tempDir, "temp", "", "Directory for temporary audio files (env: KARAOKE_TEMP_DIR)")
	flag.IntVar(&sampleRate, "rate", 0, "Sample rate used for pitch extraction")
	flag.StringVar(&python, "python", "", "Python interpreter with the pitch models installed (env: KARAOKE_PYTHON)")
}

// loadConfig merges defaults, the config file, the environment and the global flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	config.ApplyEnv(cfg)

	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if tempDir != "" {
		cfg.Audio.TempDir = tempDir
	}
	if sampleRate > 0 {
		cfg.Audio.SampleRate = sampleRate
	}
	if python != "" {
		cfg.Extraction.Python = python
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if os.Getenv(logger.EnvLevel) == "" {
		if lvl, ok := logger.ParseLevel(string(cfg.LogLevel)); ok {
			logger.SetLevel(lvl)
		}
	}
	return cfg, nil
}

func createService(cfg *config.Config) karaoke.Service {
	log := logger.GetLogger()
	svc, err := karaoke.NewService(cfg.ServiceOptions()...)
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	return svc
}

func main() {
	log := logger.GetLogger()
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	log.Debugf("Executing command: %s", command)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code int
	switch command {
	case "score":
		code = handleScore(ctx, cfg, args)
	case "contours":
		code = handleContours(ctx, cfg, args)
	case "inspect":
		code = handleInspect(ctx, cfg, args)
	case "history":
		code = handleHistory(cfg, args)
	case "show":
		code = handleShow(cfg, args)
	case "delete":
		code = handleDelete(cfg, args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		code = 1
	}
	stop()
	os.Exit(code)
}

// parseInterspersed parses fs while allowing positional arguments between flags.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func handleScore(ctx context.Context, cfg *config.Config, args []string) int {
	log := logger.GetLogger()

	fs := flag.NewFlagSet("score", flag.ExitOnError)
	method := fs.String("method", cfg.Extraction.Method, "Pitch extraction method: crepe, basic_pitch or yin")
	difficulty := fs.String("difficulty", cfg.Scoring.Difficulty, "Difficulty: easy, normal or hard")
	tolerance := fs.Float64("tolerance", 0, "Tolerance in cents (default: set by difficulty)")
	track := fs.String("track", "", "Reference MIDI track: auto, all, an index or a name")
	advice := fs.Bool("advice", false, "Print coaching feedback")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	timeout := fs.Duration("timeout", 15*time.Minute, "Give up after this long")

	positional, err := parseInterspersed(fs, args)
	if err != nil || len(positional) != 2 {
		fmt.Println("Usage: karaoke score <user_audio> <reference_audio_or_midi> [--method m] [--difficulty d] [--tolerance cents] [--track t] [--advice] [--json]")
		return 1
	}

	req := karaoke.ScoreRequest{
		UserPath:      positional[0],
		ReferencePath: positional[1],
		Method:        *method,
		Difficulty:    *difficulty,
		TrackFilter:   *track,
		Advice:        *advice,
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "tolerance" {
			req.Tolerance = tolerance
		}
	})

	svc := createService(cfg)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if !*asJSON {
		fmt.Printf("🎤 Scoring %s against %s\n", filepath.Base(req.UserPath), filepath.Base(req.ReferencePath))
		fmt.Println("   Pitch extraction may take a while for long recordings")
	}

	rep := svc.Analyze(ctx, req)
	if *asJSON {
		if err := printJSON(rep); err != nil {
			log.Errorf("Encoding report failed: %v", err)
			return 1
		}
		if !rep.Result.OK() {
			return 2
		}
		return 0
	}

	f, failed := rep.Result.Failure()
	if failed {
		fmt.Printf("\n❌ Scoring failed at the %s stage\n   %s\n", f.Stage, f.Message)
		return 2
	}

	m, _ := rep.Result.Metrics()
	fmt.Println()
	printMetrics(m)
	if rep.Policy != nil {
		fmt.Printf("   Difficulty:   %s (±%.0f cents)\n", rep.Policy.Difficulty, rep.Policy.ToleranceCents)
	}
	if rep.SessionID != "" {
		fmt.Printf("   Session:      %s\n", rep.SessionID)
	}
	if rep.Feedback != nil {
		printFeedback(rep.Feedback)
	}
	return 0
}

func handleContours(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("contours", flag.ExitOnError)
	difficulty := fs.String("difficulty", "", "Difficulty override")
	positional, err := parseInterspersed(fs, args)
	if err != nil || len(positional) != 1 {
		fmt.Println("Usage: karaoke contours <request.json> [--difficulty d]")
		fmt.Println(`   request.json: {"user":[{"time":0,"frequency":440,"confidence":0.9}, ...], "reference":[...]}`)
		return 1
	}

	data, err := os.ReadFile(positional[0])
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return 1
	}
	var req karaoke.ContourRequest
	if err := json.Unmarshal(data, &req); err != nil {
		fmt.Printf("❌ Invalid contour request: %v\n", err)
		return 1
	}
	if *difficulty != "" {
		req.Difficulty = *difficulty
	}

	svc := createService(cfg)
	defer svc.Close()

	res := svc.ScoreContours(ctx, req)
	if err := printJSON(res); err != nil {
		return 1
	}
	if !res.OK() {
		return 2
	}
	return 0
}

func handleInspect(ctx context.Context, cfg *config.Config, args []string) int {
	log := logger.GetLogger()
	if len(args) < 1 {
		fmt.Println("Usage: karaoke inspect <file>")
		return 1
	}

	svc := createService(cfg)
	defer svc.Close()

	info, err := svc.Inspect(ctx, args[0])
	if err != nil {
		fmt.Printf("❌ Failed to inspect %s: %v\n", args[0], err)
		log.Errorf("Inspect failed: %v", err)
		return 1
	}

	fmt.Printf("\n📄 %s (%s)\n", filepath.Base(info.Path), info.Kind)
	if a := info.Audio; a != nil {
		fmt.Printf("   Format:      %s / %s\n", a.Format, a.Codec)
		fmt.Printf("   Sample rate: %d Hz, %d channel(s)\n", a.SampleRate, a.Channels)
		fmt.Printf("   Duration:    %s\n", formatDuration(a.DurationSec))
	}
	for _, t := range info.Tracks {
		name := t.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("   %2d. %-24s %-8s %4d notes", t.Index, name, t.Kind, t.Notes)
		if t.Notes > 0 {
			fmt.Printf("  keys %d-%d", t.LowKey, t.HighKey)
		}
		fmt.Println()
	}
	return 0
}

func handleHistory(cfg *config.Config, args []string) int {
	log := logger.GetLogger()
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum sessions to show")
	offset := fs.Int("offset", 0, "Sessions to skip")
	asJSON := fs.Bool("json", false, "Print as JSON")
	fs.Parse(args)

	svc := createService(cfg)
	defer svc.Close()

	sessions, err := svc.ListSessions(*limit, *offset)
	if err != nil {
		fmt.Printf("❌ Failed to list sessions: %v\n", err)
		log.Errorf("ListSessions failed: %v", err)
		return 1
	}
	if *asJSON {
		if err := printJSON(sessions); err != nil {
			return 1
		}
		return 0
	}

	if len(sessions) == 0 {
		fmt.Println("\n📭 No scoring sessions yet")
		return 0
	}

	fmt.Printf("\n📚 %d session(s):\n\n", len(sessions))
	for _, s := range sessions {
		status := fmt.Sprintf("%6.2f", s.FinalScore)
		if s.Error != "" {
			status = "failed"
		}
		fmt.Printf("%s  %s  %-6s  %s vs %s  [%s, %s]\n",
			s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), status,
			s.UserFile, s.ReferenceFile, s.Method, s.Difficulty)
	}
	return 0
}

func handleShow(cfg *config.Config, args []string) int {
	if len(args) < 1 {
		fmt.Println("Usage: karaoke show <session_id>")
		return 1
	}

	svc := createService(cfg)
	defer svc.Close()

	sess, err := svc.GetSession(args[0])
	if err != nil {
		fmt.Printf("❌ Session not found (ID: %s)\n", args[0])
		logger.GetLogger().Warnf("Session %s not found: %v", args[0], err)
		return 1
	}

	fmt.Printf("\n🎤 %s vs %s\n", sess.UserFile, sess.ReferenceFile)
	fmt.Printf("   When:         %s\n", sess.CreatedAt.Local().Format(time.RFC1123))
	fmt.Printf("   Method:       %s\n", sess.Method)
	fmt.Printf("   Difficulty:   %s (±%.0f cents)\n", sess.Difficulty, sess.ToleranceCents)

	res := sess.Result()
	if f, failed := res.Failure(); failed {
		fmt.Printf("   Failed:       %s\n", f.Message)
		return 0
	}
	m, _ := res.Metrics()
	printMetrics(m)
	return 0
}

func handleDelete(cfg *config.Config, args []string) int {
	log := logger.GetLogger()
	if len(args) < 1 {
		fmt.Println("Usage: karaoke delete <session_id>")
		return 1
	}

	svc := createService(cfg)
	defer svc.Close()

	if err := svc.DeleteSession(args[0]); err != nil {
		fmt.Printf("❌ Failed to delete session: %v\n", err)
		log.Errorf("DeleteSession failed: %v", err)
		return 1
	}
	fmt.Printf("✅ Deleted session %s\n", args[0])
	log.Infof("Deleted session %s", args[0])
	return 0
}

func printMetrics(m scoring.Metrics) {
	fmt.Printf("✅ Final score:  %.2f / 100\n", m.FinalScore)
	fmt.Printf("   Accuracy:     %.2f%%\n", m.Accuracy)
	fmt.Printf("   Pitch score:  %.2f\n", scoring.PitchScore(m.MAECents))
	fmt.Printf("   DTW score:    %.2f (distance %.2f)\n", m.DTWScore, m.DTWDistance)
	fmt.Printf("   Mean error:   %.2f cents\n", m.MAECents)
	fmt.Printf("   Duration:     %s\n", formatDuration(m.Duration))
}

func printFeedback(fb *scoring.Feedback) {
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Printf("\n%s\n", title)
		for _, l := range lines {
			fmt.Printf("   • %s\n", l)
		}
	}
	section("💪 Strengths", fb.Strengths)
	section("⚠️  Issues", fb.Issues)
	section("💬 Advice", fb.Advice)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(100 * time.Millisecond)
	if d >= time.Minute {
		return fmt.Sprintf("%d:%04.1f", int(d.Minutes()), (d % time.Minute).Seconds())
	}
	return d.String()
}

func printUsage() {
	var b strings.Builder
	b.WriteString("KaraokeScore - pitch contour scoring for sung performances\n")
	b.WriteString("\nGlobal Options:\n")
	b.WriteString("  --config <file>    YAML config file\n")
	b.WriteString("  --db <path>        SQLite session database (env: KARAOKE_DB_PATH, default: karaoke.sqlite3)\n")
	b.WriteString("  --temp <dir>       Temporary directory (env: KARAOKE_TEMP_DIR, default: /tmp/karaoke)\n")
	b.WriteString("  --rate <hz>        Extraction sample rate (default: 16000)\n")
	b.WriteString("  --python <path>    Python interpreter for crepe and basic_pitch (env: KARAOKE_PYTHON)\n")
	b.WriteString("\nUsage:\n")
	b.WriteString("  karaoke [global-options] score <user_audio> <reference> [--method m] [--difficulty d] [--tolerance cents] [--track t] [--advice] [--json]\n")
	b.WriteString("  karaoke [global-options] contours <request.json>\n")
	b.WriteString("  karaoke [global-options] inspect <file>\n")
	b.WriteString("  karaoke [global-options] history [--limit n] [--offset n] [--json]\n")
	b.WriteString("  karaoke [global-options] show <session_id>\n")
	b.WriteString("  karaoke [global-options] delete <session_id>\n")
	b.WriteString("\nExamples:\n")
	b.WriteString("  # Score a take against the original recording\n")
	b.WriteString("  karaoke score take.wav original.mp3 --difficulty normal --advice\n\n")
	b.WriteString("  # Score against a MIDI melody without the Python models\n")
	b.WriteString("  karaoke score take.wav melody.mid --method yin --track vocal\n")
	fmt.Print(b.String())
}
