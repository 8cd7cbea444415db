package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/hwcodec/internal/logging"
)

// ErrNotRunning is returned when writing to a process that is not running.
var ErrNotRunning = errors.New("process not running")

// OutputHandler receives stderr lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// StdoutConsumer reads the subprocess stdout until EOF or error.
// Whatever it leaves unread is discarded.
type StdoutConsumer func(r io.Reader) error

// exitCodeKilled is reported when the process had to be killed.
const exitCodeKilled = 137

// Process runs one subprocess with piped stdin and stdout.
// A Process is started once; create a new one to run again.
type Process struct {
	id              string
	command         string
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // parses process output for log level (nil = no parsing)
	outputHandler   OutputHandler
	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after Kill() before giving up

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	state     State
	startedAt time.Time
	lastError error
	exitCode  int
	killed    bool
	done      chan struct{}
	doneOnce  sync.Once
	stopOnce  sync.Once
}

// New creates a process for a command line. The command is split with
// shell-like quoting but is not run through a shell.
func New(id, command string, logger logging.Logger) *Process {
	return NewWithOutput(id, command, logger, nil)
}

// NewWithOutput creates a process whose stderr lines are also passed to handler.
func NewWithOutput(id, command string, logger logging.Logger, handler OutputHandler) *Process {
	return &Process{
		id:              id,
		command:         command,
		logger:          logger,
		outputHandler:   handler,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		state:           StateIdle,
		done:            make(chan struct{}),
	}
}

// Command returns the command line.
func (p *Process) Command() string {
	return p.command
}

// SetLogParser sets the logger and parser used for stderr lines.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetTimeouts overrides the graceful shutdown and kill timeouts.
func (p *Process) SetTimeouts(graceful, kill time.Duration) {
	p.gracefulTimeout = graceful
	p.killTimeout = kill
}

// Start launches the subprocess. stdout is consumed by consumer in its own
// goroutine; a nil consumer logs stdout lines like stderr. Cancelling ctx
// stops the process.
func (p *Process) Start(ctx context.Context, consumer StdoutConsumer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil || p.state != StateIdle || p.isDone() {
		return fmt.Errorf("process %s already started", p.id)
	}
	p.state = StateStarting

	args, err := parseCommand(p.command)
	if err != nil {
		return p.failStart("Failed to parse command", err)
	}
	if len(args) == 0 {
		return p.failStart("Empty command", errors.New("empty command"))
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return p.failStart("Failed to create stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return p.failStart("Failed to create stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return p.failStart("Failed to create stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		p.logger.Error("Failed to start process", "error", err, "command", p.command)
		return p.failStart("", err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.state = StateRunning
	p.startedAt = time.Now()
	p.logger.Debug("Process started", "id", p.id, "pid", cmd.Process.Pid, "command", p.command)

	outputDone := make(chan struct{}, 2)
	go func() {
		if consumer == nil {
			p.streamOutput(stdout, "stdout")
		} else {
			if err := consumer(stdout); err != nil && !errors.Is(err, io.EOF) {
				p.logger.Warn("Stdout consumer failed", "id", p.id, "error", err)
			}
			// drain so the child never blocks on a full pipe
			_, _ = io.Copy(io.Discard, stdout)
		}
		outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderr, "stderr")
		outputDone <- struct{}{}
	}()

	go func() {
		<-outputDone
		<-outputDone
		p.handleProcessExit(cmd.Wait())
	}()

	go func() {
		select {
		case <-ctx.Done():
			p.logger.Debug("Context cancelled, stopping process", "id", p.id)
			p.Stop()
		case <-p.done:
		}
	}()

	return nil
}

func (p *Process) failStart(msg string, err error) error {
	if msg != "" {
		p.logger.Error(msg, "error", err)
	}
	p.state = StateError
	p.lastError = err
	p.markDone()
	return err
}

func (p *Process) markDone() {
	p.doneOnce.Do(func() { close(p.done) })
}

func (p *Process) isDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Write sends bytes to the subprocess stdin.
func (p *Process) Write(b []byte) (int, error) {
	p.mu.Lock()
	stdin := p.stdin
	state := p.state
	p.mu.Unlock()

	if stdin == nil || state != StateRunning {
		return 0, ErrNotRunning
	}
	return stdin.Write(b)
}

// CloseInput closes stdin, signalling end of input.
func (p *Process) CloseInput() error {
	p.mu.Lock()
	stdin := p.stdin
	p.stdin = nil
	p.mu.Unlock()

	if stdin == nil {
		return nil
	}
	return stdin.Close()
}

// Done is closed once the process has exited and its output is consumed.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its exit code.
func (p *Process) Wait() int {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Stop closes stdin and sends SIGINT, force-killing the process if it has
// not exited within the graceful timeout. Returns the exit code; 137 means
// the process was killed.
func (p *Process) Stop() int {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		if p.cmd == nil {
			// never started
			p.mu.Unlock()
			p.markDone()
			return
		}
		if p.state == StateRunning {
			p.state = StateStopping
		}
		p.mu.Unlock()

		_ = p.CloseInput()
		p.sendStopSignal()
		p.waitForExit(p.gracefulTimeout)
	})
	return p.Wait()
}

// Info returns a snapshot of the process state.
func (p *Process) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := Info{
		ID:        p.id,
		State:     p.state,
		StartedAt: p.startedAt,
		LastError: p.lastError,
		ExitCode:  p.exitCode,
	}
	if p.cmd != nil && p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	return info
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError (128+signal when
// signalled), or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}

func (p *Process) handleProcessExit(processErr error) {
	exitCode := exitCodeFromError(processErr)

	p.mu.Lock()
	if p.killed {
		exitCode = exitCodeKilled
	}
	if processErr != nil && exitCode == 1 {
		p.logger.Error("Process exited with error", "id", p.id, "error", processErr)
	}
	switch {
	case p.state == StateStopping || exitCode == 0:
		p.state = StateIdle
	default:
		p.state = StateError
		p.lastError = processErr
	}
	p.exitCode = exitCode
	p.stdin = nil
	p.mu.Unlock()

	p.logger.Debug("Process exited", "id", p.id, "exit_code", exitCode)
	p.markDone()
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal() {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	if p.isDone() {
		return
	}
	p.logger.Debug("Sending SIGINT to process", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Process) waitForExit(timeout time.Duration) {
	select {
	case <-p.done:
		return
	case <-time.After(timeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", timeout)
	p.mu.Lock()
	cmd := p.cmd
	p.killed = true
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		// the whole group, so children holding our pipes die too
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.logger.Error("Failed to kill process", "error", err)
			}
		}
	}

	select {
	case <-p.done:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal", "id", p.id)
	}
}

// streamOutput logs each line of a subprocess stream at the level the
// configured LogParser extracts.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg, "id", p.id)
		case "warning":
			logger.Warn(msg, "id", p.id)
		case "debug", "trace":
			logger.Debug(msg, "id", p.id)
		default:
			logger.Info(msg, "id", p.id)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}

// Output runs a command to completion and returns its stdout.
func Output(ctx context.Context, command string) ([]byte, error) {
	args, err := parseCommand(command)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return exec.CommandContext(ctx, args[0], args[1:]...).Output()
}

// parseCommand parses a command string into arguments
// Handles quoted strings and basic escaping.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	command = strings.TrimSpace(command)
	runes := []rune(command)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++ // Skip the backslash
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	return args, nil
}
