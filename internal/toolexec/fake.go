package toolexec

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// Handler scripts the behaviour of one fake tool.
type Handler func(ctx context.Context, args []string) (Result, error)

// Call records one invocation made against a Fake.
type Call struct {
	Tool string
	Args []string
}

// Fake is an in-memory Runner. Tools are matched by the base name of the
// command, so "/usr/bin/ffmpeg" and "ffmpeg" resolve to the same handler.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

// NewFake returns a Fake with no tools registered.
func NewFake() *Fake {
	return &Fake{handlers: make(map[string]Handler)}
}

// On registers the handler for tool.
func (f *Fake) On(tool string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[filepath.Base(tool)] = h
	return f
}

// Fail makes tool exit with the given status and stderr.
func (f *Fake) Fail(tool string, exitCode int, stderr string) *Fake {
	return f.On(tool, func(ctx context.Context, args []string) (Result, error) {
		return Result{ExitCode: exitCode, Stderr: stderr}, nil
	})
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, name string, args ...string) (Result, error) {
	tool := filepath.Base(name)

	f.mu.Lock()
	f.calls = append(f.calls, Call{Tool: tool, Args: append([]string(nil), args...)})
	h, ok := f.handlers[tool]
	f.mu.Unlock()

	if !ok {
		return Result{Command: name, Args: args, ExitCode: 127}, &ToolError{
			Tool:     name,
			Args:     args,
			ExitCode: 127,
			Err:      fmt.Errorf("%s: command not found", tool),
		}
	}

	res, err := h(ctx, args)
	res.Command = name
	res.Args = args
	if err == nil && res.ExitCode != 0 {
		err = &ToolError{
			Tool:     name,
			Args:     args,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return res, err
}

// Calls returns every invocation so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the invocations of a single tool.
func (f *Fake) CallsTo(tool string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Tool == filepath.Base(tool) {
			out = append(out, c)
		}
	}
	return out
}

var _ Runner = (*Fake)(nil)
var _ Runner = ExecRunner{}
