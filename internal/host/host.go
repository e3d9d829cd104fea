// Package host runs the user's shell on a pseudo-terminal and exposes
// non-blocking reads for a frame-driven loop.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/charmbracelet/x/xpty"
	clog "github.com/charmbracelet/log"

	"cookterm/internal/system"
)

// Host is the pseudo-terminal collaborator.
type Host interface {
	CreateShell(ctx context.Context) error
	Write(p []byte) (int, error)
	// Read returns whatever output is ready without blocking. It returns
	// nil, nil when nothing is available.
	Read() ([]byte, error)
	Resize(cols, rows int) error
	Close() error
}

var (
	// ErrNotStarted is returned before CreateShell succeeds.
	ErrNotStarted = errors.New("host: shell not started")
	// ErrClosed is returned once the shell's output has ended.
	ErrClosed = errors.New("host: shell exited")
)

const (
	readChunk = 4096
	// maxRead bounds the bytes returned by a single Read.
	maxRead = 64 * 1024
)

// Options configures a PTY host.
type Options struct {
	// Shell overrides $SHELL.
	Shell string
	Cols  int
	Rows  int
	Dir   string
	// NoIntegration starts the shell without integration scripts.
	NoIntegration bool
	Logger        *clog.Logger
	// OnExit is called once the shell process has exited.
	OnExit func(err error)
}

// PTY is a Host backed by an xpty pseudo-terminal.
type PTY struct {
	opts Options
	log  *clog.Logger

	mu      sync.Mutex
	pty     xpty.Pty
	cmd     *exec.Cmd
	cleanup func()

	out     chan []byte
	done    chan struct{}
	readErr error
	errMu   sync.Mutex
}

// NewPTY returns a host that has not started its shell yet.
func NewPTY(opts Options) *PTY {
	if opts.Cols <= 0 {
		opts.Cols = 80
	}
	if opts.Rows <= 0 {
		opts.Rows = 24
	}
	return &PTY{opts: opts, log: system.Or(opts.Logger).WithPrefix("host")}
}

// DefaultShell returns the shell to launch: override, $SHELL, /bin/bash,
// then /bin/sh.
func DefaultShell(override string) string {
	if override != "" {
		return override
	}
	if runtime.GOOS == "windows" {
		if c := os.Getenv("COMSPEC"); c != "" {
			return c
		}
		return "powershell.exe"
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	return "/bin/sh"
}

// CreateShell starts the shell. Calling it again once started is a no-op.
func (p *PTY) CreateShell(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pty != nil {
		return nil
	}

	shell := DefaultShell(p.opts.Shell)
	launch := Launch{Path: shell, Env: os.Environ(), Cleanup: func() {}}
	if !p.opts.NoIntegration {
		l, err := Prepare(shell, os.Environ())
		if err != nil {
			return err
		}
		launch = l
		if !l.Integrated {
			p.log.Warn("no shell integration for shell; prompts and commands will not be tracked", "shell", shell)
		}
	}

	pt, err := xpty.NewPty(p.opts.Cols, p.opts.Rows)
	if err != nil {
		launch.Cleanup()
		return fmt.Errorf("host: open pty: %w", err)
	}
	cmd := exec.Command(launch.Path, launch.Args...)
	cmd.Env = launch.Env
	cmd.Dir = p.opts.Dir
	if err := pt.Start(cmd); err != nil {
		_ = pt.Close()
		launch.Cleanup()
		return fmt.Errorf("host: start %s: %w", shell, err)
	}
	p.log.Info("shell started", "shell", shell, "pid", cmd.Process.Pid, "integration", launch.Integrated)

	p.pty = pt
	p.cmd = cmd
	p.cleanup = launch.Cleanup
	p.out = make(chan []byte, 256)
	p.done = make(chan struct{})

	go p.pump(pt, p.out, p.done)
	go func() {
		err := xpty.WaitProcess(ctx, cmd)
		p.log.Info("shell exited", "err", err)
		if p.opts.OnExit != nil {
			p.opts.OnExit(err)
		}
	}()
	return nil
}

func (p *PTY) pump(r io.Reader, out chan<- []byte, done <-chan struct{}) {
	defer close(out)
	buf := make([]byte, readChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case out <- append([]byte(nil), buf[:n]...):
			case <-done:
				return
			}
		}
		if err != nil {
			p.errMu.Lock()
			p.readErr = err
			p.errMu.Unlock()
			return
		}
	}
}

// Read drains the output that has arrived since the last call.
func (p *PTY) Read() ([]byte, error) {
	p.mu.Lock()
	out := p.out
	p.mu.Unlock()
	if out == nil {
		return nil, ErrNotStarted
	}

	var data []byte
	for len(data) < maxRead {
		select {
		case b, ok := <-out:
			if !ok {
				if len(data) > 0 {
					return data, nil
				}
				return nil, p.closedErr()
			}
			data = append(data, b...)
		default:
			return data, nil
		}
	}
	return data, nil
}

func (p *PTY) closedErr() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.readErr == nil || errors.Is(p.readErr, io.EOF) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrClosed, p.readErr)
}

// Write sends input to the shell.
func (p *PTY) Write(b []byte) (int, error) {
	p.mu.Lock()
	pt := p.pty
	p.mu.Unlock()
	if pt == nil {
		return 0, ErrNotStarted
	}
	n, err := pt.Write(b)
	if err != nil {
		return n, fmt.Errorf("host: write: %w", err)
	}
	return n, nil
}

// Resize changes the pseudo-terminal size.
func (p *PTY) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.Cols, p.opts.Rows = cols, rows
	if p.pty == nil {
		return nil
	}
	if err := p.pty.Resize(cols, rows); err != nil {
		return fmt.Errorf("host: resize: %w", err)
	}
	return nil
}

// Close terminates the shell and removes temporary integration files.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pty == nil {
		return nil
	}
	close(p.done)
	err := p.pty.Close()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	if p.cleanup != nil {
		p.cleanup()
	}
	p.pty = nil
	if err != nil {
		return fmt.Errorf("host: close: %w", err)
	}
	return nil
}
