package util

import (
	"bytes"
	"regexp"
	"strings"
	"sync"
	"testing"
)

func newTestLogger(verbosity int) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(verbosity)
	l.SetOutput(&buf)
	l.SetTimestamps(false)
	return l, &buf
}

func logAll(l *Logger) {
	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Verbose("v")
	l.Debug("d")
}

// TestLogger_Verbosity checks which tags each -v count lets through.
func TestLogger_Verbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		want      []string
	}{
		{0, []string{"[ERR] e"}},
		{1, []string{"[ERR] e", "[WRN] w", "[INF] i"}},
		{2, []string{"[ERR] e", "[WRN] w", "[INF] i", "[VRB] v"}},
		{3, []string{"[ERR] e", "[WRN] w", "[INF] i", "[VRB] v", "[DBG] d"}},
	}

	for _, tt := range tests {
		l, buf := newTestLogger(tt.verbosity)
		logAll(l)

		got := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("verbosity %d: got %q, want %q", tt.verbosity, got, tt.want)
		}
		if l.Level() != LogLevel(tt.verbosity) {
			t.Errorf("Level() = %d", l.Level())
		}
	}
}

func TestLogger_Timestamps(t *testing.T) {
	l, buf := newTestLogger(1)
	l.SetTimestamps(true)

	l.Info("session opened")

	re := regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{3} \[INF\] session opened\n$`)
	if !re.MatchString(buf.String()) {
		t.Errorf("unexpected line %q", buf.String())
	}
}

func TestLogger_DebugEnablesTimestamps(t *testing.T) {
	l := NewLogger(3)
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.Debug("x")
	if strings.HasPrefix(buf.String(), "[DBG]") {
		t.Errorf("debug output should be timestamped: %q", buf.String())
	}
}

func TestLogger_Named(t *testing.T) {
	l, buf := newTestLogger(1)

	l.Named("127.0.0.1:4000").Named("fortune").Info("hello")

	if got := strings.TrimSpace(buf.String()); got != "[INF] 127.0.0.1:4000 fortune: hello" {
		t.Errorf("got %q", got)
	}
}

// TestLogger_NamedSharesSink verifies a child follows output changes
// made on its parent, so tests can redirect after loggers are handed
// out.
func TestLogger_NamedSharesSink(t *testing.T) {
	l := NewLogger(1)
	child := l.Named("peer")

	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	child.Warn("write failed")
	if got := strings.TrimSpace(buf.String()); got != "[WRN] peer: write failed" {
		t.Errorf("got %q", got)
	}
}

func TestLogger_ConcurrentLinesIntact(t *testing.T) {
	l, buf := newTestLogger(1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			named := l.Named("conn")
			for j := 0; j < 50; j++ {
				named.Info("line")
			}
		}()
	}
	wg.Wait()

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line != "[INF] conn: line" {
			t.Fatalf("interleaved output: %q", line)
		}
	}
}
