package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Config{Level: level, Output: &buf})
	return l, &buf
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	l, buf := newTestLogger(WARN)

	l.Infof("hidden %d", 1)
	l.Debugf("hidden too")
	l.Warnf("shown %s", "warn")
	l.Errorf("shown %s", "error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn")
	assert.Contains(t, out, "[ERROR] shown error")
}

func TestLogger_WithSharesOutputAndLevel(t *testing.T) {
	l, buf := newTestLogger(INFO)
	child := l.With("[dtw]").With("[user]")

	child.Infof("aligned %d frames", 42)
	l.SetLevel(ERROR)
	child.Infof("suppressed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[dtw] [user] aligned 42 frames")
}

func TestLogger_FatalExits(t *testing.T) {
	l, buf := newTestLogger(INFO)
	code := -1
	l.sink.exit = func(c int) { code = c }

	l.Fatalf("cannot continue")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "[FATAL] cannot continue")
}

func TestLogger_ColorizeAndCaller(t *testing.T) {
	l, buf := newTestLogger(DEBUG)
	l.SetColorize(true)
	l.SetShowCaller(true)

	l.Debugf("colored")

	out := buf.String()
	assert.Contains(t, out, colorGray+"[DEBUG]"+colorReset)
	assert.Contains(t, out, "logger_test.go:")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"debug": DEBUG, " Info ": INFO, "warning": WARN, "ERROR": ERROR, "fatal": FATAL} {
		got, ok := ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseLevel("verbose")
	assert.False(t, ok)
}
