package integrations

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Command is one external process invocation.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Env   []string // extra KEY=VALUE pairs appended to the parent environment
	Stdin []byte
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the captured output of a finished command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError reports a command that ran but failed.
type ExitError struct {
	Command string
	Err     error
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// Run starts cmd and waits for it, capturing stdout and stderr.
func (ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		return res, &ExitError{Command: c.String(), Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return res, nil
}

// RecordingRunner records commands instead of running them. Commands whose
// rendered form starts with a key of Fail return that error; Outputs maps
// rendered prefixes to canned stdout.
type RecordingRunner struct {
	mu       sync.Mutex
	Commands []Command
	Fail     map[string]error
	Outputs  map[string]string
}

// NewRecordingRunner returns an empty recorder.
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{Fail: map[string]error{}, Outputs: map[string]string{}}
}

// Run records c and returns the configured outcome.
func (r *RecordingRunner) Run(_ context.Context, c Command) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = append(r.Commands, c)
	line := c.String()
	for prefix, err := range r.Fail {
		if strings.HasPrefix(line, prefix) {
			return Result{}, &ExitError{Command: line, Err: err}
		}
	}
	for prefix, out := range r.Outputs {
		if strings.HasPrefix(line, prefix) {
			return Result{Stdout: []byte(out)}, nil
		}
	}
	return Result{}, nil
}

// Lines returns every recorded command rendered as a string.
func (r *RecordingRunner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		out[i] = c.String()
	}
	return out
}

// Reset forgets recorded commands.
func (r *RecordingRunner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = nil
}
