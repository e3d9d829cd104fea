// Package capture runs one command at a time through the shell and hands
// back its output and exit code once the shell reports completion.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrPending is returned by Submit while another captured command has not
// finished.
var ErrPending = errors.New("capture: a captured command is already pending")

const (
	pasteStart = "\x1b[200~"
	pasteEnd   = "\x1b[201~"
)

// Result is the outcome of a captured command.
type Result struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exitCode"`
}

// Resetter clears per-command decoder state before a captured run.
type Resetter interface {
	ResetTransient()
}

// Pending is the handle for one submitted command.
type Pending struct {
	Command string

	done chan struct{}
	res  Result
}

// Done is closed once the command has been resolved.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result returns the resolved result. ok is false until Done is closed.
func (p *Pending) Result() (Result, bool) {
	select {
	case <-p.done:
		return p.res, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the command resolves or ctx is done. Giving up does not
// release the pending slot.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Coordinator owns the single pending-capture slot.
type Coordinator struct {
	mu      sync.Mutex
	w       io.Writer
	reset   Resetter
	pending *Pending
}

// New returns a coordinator writing commands to w. reset may be nil.
func New(w io.Writer, reset Resetter) *Coordinator {
	return &Coordinator{w: w, reset: reset}
}

// Frame returns the bytes written to the shell for command. Multi-line
// commands are sent as one bracketed paste.
func Frame(command string) []byte {
	if strings.Contains(command, "\n") {
		command = pasteStart + command + pasteEnd
	}
	return []byte(command + "\n")
}

// Submit sends command to the shell and returns a handle that resolves on
// the next command completion. It fails with ErrPending if a capture is
// already outstanding. A failed write clears the slot.
func (c *Coordinator) Submit(command string) (*Pending, error) {
	p, err := c.Reserve(command)
	if err != nil {
		return nil, err
	}
	if err := c.Send(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Reserve claims the slot for command and resets the decoder without
// writing anything. Callers follow up with Send.
func (c *Coordinator) Reserve(command string) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return nil, ErrPending
	}
	if c.reset != nil {
		c.reset.ResetTransient()
	}
	p := &Pending{Command: command, done: make(chan struct{})}
	c.pending = p
	return p, nil
}

// Send writes a reserved command to the shell. A failed write clears the
// slot if p still holds it.
func (c *Coordinator) Send(p *Pending) error {
	if _, err := c.w.Write(Frame(p.Command)); err != nil {
		c.mu.Lock()
		if c.pending == p {
			c.pending = nil
		}
		c.mu.Unlock()
		return fmt.Errorf("capture: submit: %w", err)
	}
	return nil
}

// Pending reports whether a capture is outstanding.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Current returns the outstanding capture, or nil.
func (c *Coordinator) Current() *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Resolve completes the outstanding capture with output and exitCode. It
// reports false when nothing was pending.
func (c *Coordinator) Resolve(output string, exitCode int) bool {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.mu.Unlock()
	if p == nil {
		return false
	}
	p.res = Result{Output: output, ExitCode: exitCode}
	close(p.done)
	return true
}
