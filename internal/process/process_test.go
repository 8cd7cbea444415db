package process

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestProcess creates a Process with short timeouts for testing.
func newTestProcess(command string) *Process {
	p := New("test", command, testLogger())
	p.SetTimeouts(100*time.Millisecond, 100*time.Millisecond)
	return p
}

// waitDone waits for the process to finish, failing the test on timeout.
func waitDone(t *testing.T, p *Process, timeout time.Duration) int {
	t.Helper()
	select {
	case <-p.Done():
		return p.Wait()
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func TestPipeRoundTrip(t *testing.T) {
	p := newTestProcess("cat")

	var mu sync.Mutex
	var out bytes.Buffer
	err := p.Start(context.Background(), func(r io.Reader) error {
		buf := make([]byte, 4)
		for {
			n, err := r.Read(buf)
			mu.Lock()
			out.Write(buf[:n])
			mu.Unlock()
			if err != nil {
				return err
			}
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, chunk := range []string{"hello ", "coprocess"} {
		if _, err := p.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.CloseInput(); err != nil {
		t.Fatal(err)
	}

	if code := waitDone(t, p, time.Second); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	mu.Lock()
	defer mu.Unlock()
	if out.String() != "hello coprocess" {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestWriteAfterExit(t *testing.T) {
	p := newTestProcess("true")
	if err := p.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	waitDone(t, p, time.Second)

	if _, err := p.Write([]byte("x")); err != ErrNotRunning {
		t.Errorf("Write() error = %v, want ErrNotRunning", err)
	}
}

func TestGracefulShutdown(t *testing.T) {
	// Process that handles SIGINT
	p := newTestProcess(`sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	p.SetTimeouts(500*time.Millisecond, 100*time.Millisecond)

	if err := p.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if code := p.Stop(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	if info := p.Info(); info.State != StateIdle {
		t.Errorf("state after graceful stop = %s, want idle", info.State)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	// Process that ignores SIGINT
	p := newTestProcess(`sh -c "trap '' INT; sleep 10"`)
	p.SetTimeouts(50*time.Millisecond, 200*time.Millisecond)

	if err := p.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	// Process was killed, expect 137 (128 + 9 for SIGKILL)
	if code := p.Stop(); code != 137 {
		t.Errorf("expected exit code 137, got %d", code)
	}
}

func TestContextCancellation(t *testing.T) {
	p := newTestProcess("sleep 10")
	ctx, cancel := context.WithCancel(context.Background())

	if err := p.Start(ctx, nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	cancel()
	waitDone(t, p, 500*time.Millisecond)

	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("shutdown took too long: %v", elapsed)
	}
}

func TestProcessAlreadyExited(t *testing.T) {
	p := newTestProcess("true")
	if err := p.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if code := waitDone(t, p, 500*time.Millisecond); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}

	// Stop after the process has already exited - should not block or panic
	if code := p.Stop(); code != 0 {
		t.Errorf("Stop() after exit = %d, want 0", code)
	}
}

func TestStartTwice(t *testing.T) {
	p := newTestProcess("true")
	if err := p.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(context.Background(), nil); err == nil {
		t.Error("expected error starting twice")
	}
	waitDone(t, p, time.Second)
}

func TestStartErrors(t *testing.T) {
	tests := []struct {
		name    string
		command string
	}{
		{"unclosed quote", `echo "unclosed`},
		{"empty command", ""},
		{"nonexistent binary", "/nonexistent/command/that/does/not/exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcess(tt.command)
			if err := p.Start(context.Background(), nil); err == nil {
				t.Fatal("expected error")
			}
			info := p.Info()
			if info.State != StateError || info.LastError == nil {
				t.Errorf("unexpected info %+v", info)
			}
			// Done must be closed so waiters never hang
			waitDone(t, p, 100*time.Millisecond)
		})
	}
}

func TestProcessExitWithError(t *testing.T) {
	p := newTestProcess("sh -c 'exit 42'")
	if err := p.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if code := waitDone(t, p, time.Second); code != 42 {
		t.Errorf("expected exit code 42, got %d", code)
	}
	if info := p.Info(); info.State != StateError || info.ExitCode != 42 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestStopBeforeStart(t *testing.T) {
	p := newTestProcess("sleep 10")
	done := make(chan int, 1)
	go func() { done <- p.Stop() }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop before Start blocked")
	}
	if err := p.Start(context.Background(), nil); err == nil {
		t.Error("expected error starting a stopped process")
	}
}

func TestParseCommandWithEscapes(t *testing.T) {
	args, err := parseCommand(`echo hello\ world`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 || args[1] != "hello world" {
		t.Errorf("expected ['echo', 'hello world'], got %v", args)
	}
}

func TestParseCommandQuotes(t *testing.T) {
	args, err := parseCommand(`ffmpeg -vf "format=nv12,hwupload" -metadata title='it"s'`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ffmpeg", "-vf", "format=nv12,hwupload", "-metadata", `title=it"s`}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Errorf("parseCommand() = %q, want %q", args, want)
	}
}

func TestStreamOutputLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cmd := `echo "[error] error message" >&2 && echo "[warning] warn message" >&2 && echo "plain message" >&2`
	p := newTestProcess("sh -c '" + cmd + "'")
	p.SetLogParser(logger, func(line string) (string, string) {
		if strings.HasPrefix(line, "[") {
			level, msg, _ := strings.Cut(line[1:], "] ")
			return level, msg
		}
		return "info", line
	})

	if err := p.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if code := waitDone(t, p, time.Second); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}

	out := buf.String()
	for _, want := range []string{
		`level=ERROR msg="error message"`,
		`level=WARN msg="warn message"`,
		`level=INFO msg="plain message"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestTailHandler(t *testing.T) {
	tail := NewTail(2)
	p := NewWithOutput("test", `sh -c "echo line1 >&2; echo line2 >&2; echo line3 >&2"`, testLogger(), tail)
	p.SetTimeouts(100*time.Millisecond, 100*time.Millisecond)

	if err := p.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	waitDone(t, p, time.Second)

	if got := tail.String(); got != "line2\nline3" {
		t.Errorf("tail = %q, want last two lines", got)
	}
}

func TestOutput(t *testing.T) {
	out, err := Output(context.Background(), `sh -c "printf hello"`)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello" {
		t.Errorf("Output() = %q", out)
	}

	if _, err := Output(context.Background(), "sh -c 'exit 3'"); err == nil {
		t.Error("expected error for non-zero exit")
	}
}
