// Package session wires a shell host, the terminal buffer, the
// shell-integration decoder, the capture coordinator and the history store
// into one serialized unit.
package session

import (
	"context"
	"io"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"

	"cookterm/internal/capture"
	"cookterm/internal/history"
	"cookterm/internal/host"
	"cookterm/internal/sanitize"
	"cookterm/internal/shellint"
	"cookterm/internal/system"
	"cookterm/internal/termbuf"
)

// Options configures a Session. Zero values select defaults.
type Options struct {
	Cols                int
	Rows                int
	Scrollback          int
	PromptFinalizeDelay time.Duration
	Scheduler           shellint.Scheduler
	Now                 func() time.Time
	History             *history.Store
	Logger              *clog.Logger
}

// Session serializes every entry point (output feed, keystrokes, captured
// submissions and the prompt timer) behind one mutex. Writes to the shell
// happen outside it, ordered by wmu, so a slow PTY never stalls Feed.
type Session struct {
	mu  sync.Mutex
	wmu sync.Mutex

	host    host.Host
	buf     *termbuf.Buffer
	dec     *shellint.Decoder
	capture *capture.Coordinator
	hist    *history.Store
	hub     *Hub
	log     *clog.Logger

	last *capture.Result
	// outbox collects keystrokes emitted by buf.Input under mu.
	outbox []byte
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	Prompt  string `json:"prompt"`
	Cwd     string `json:"cwd"`
	State   string `json:"state"`
	Pending bool   `json:"pending"`
	Cols    int    `json:"cols"`
	Rows    int    `json:"rows"`
}

// New builds a session around h. The shell is not started until Start.
func New(h host.Host, opts Options) *Session {
	if opts.Cols <= 0 {
		opts.Cols = 80
	}
	if opts.Rows <= 0 {
		opts.Rows = 24
	}
	if opts.Scrollback <= 0 {
		opts.Scrollback = 1000
	}
	log := system.Or(opts.Logger)
	s := &Session{
		host: h,
		buf:  termbuf.New(opts.Cols, opts.Rows, opts.Scrollback),
		hist: opts.History,
		log:  log.WithPrefix("session"),
	}
	if s.hist == nil {
		s.hist = history.NewStore()
	}
	s.hub = newHub(s.log)
	s.buf.SetLogger(log)

	s.dec = shellint.New(s.buf, shellint.Options{
		PromptFinalizeDelay: opts.PromptFinalizeDelay,
		Scheduler:           opts.Scheduler,
		Now:                 opts.Now,
		Sink:                s.onEvent,
		Serialize:           s.locked,
		Logger:              log,
	})
	s.capture = capture.New(h, s.dec)
	s.dec.SetCapture(s.capture)

	s.buf.OnData(func(p []byte) {
		s.outbox = append(s.outbox, p...)
	})
	return s
}

func (s *Session) locked(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f()
}

// Start launches the shell and syncs its size with the buffer.
func (s *Session) Start(ctx context.Context) error {
	if err := s.host.CreateShell(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	cols, rows := s.buf.Cols(), s.buf.Rows()
	s.mu.Unlock()
	return s.host.Resize(cols, rows)
}

// Close shuts the shell down.
func (s *Session) Close() error { return s.host.Close() }

// Tick performs one non-blocking read from the host and feeds any output to
// the decoder. Host errors are returned; the session stays usable.
func (s *Session) Tick() error {
	data, err := s.host.Read()
	if len(data) > 0 {
		s.Feed(data)
	}
	return err
}

// Feed processes shell output.
func (s *Session) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dec.Feed(p)
	s.hub.publish(Message{Type: MessageOutput, Output: append([]byte(nil), p...)})
}

// Input forwards user keystrokes to the shell.
func (s *Session) Input(p []byte) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	s.buf.Input(p)
	out := s.outbox
	s.outbox = nil
	s.mu.Unlock()

	if len(out) == 0 {
		return
	}
	if _, err := s.host.Write(out); err != nil {
		s.log.Warn("keystroke write failed", "err", err)
	}
}

// Submit sends command as a captured run. It fails with capture.ErrPending
// while another captured run is outstanding.
func (s *Session) Submit(command string) (*capture.Pending, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	p, err := s.capture.Reserve(command)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := s.capture.Send(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Run submits command and waits for its result.
func (s *Session) Run(ctx context.Context, command string) (capture.Result, error) {
	p, err := s.Submit(command)
	if err != nil {
		return capture.Result{}, err
	}
	return p.Wait(ctx)
}

// Send runs command without capturing its result.
func (s *Session) Send(command string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.host.Write(capture.Frame(command))
	return err
}

// Paste types text at the prompt without running it.
func (s *Session) Paste(text string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.host.Write([]byte(text))
	return err
}

// Resize resizes the buffer and the pseudo-terminal.
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	s.buf.Resize(cols, rows)
	cols, rows = s.buf.Cols(), s.buf.Rows()
	s.mu.Unlock()
	return s.host.Resize(cols, rows)
}

// SetDisplay mirrors raw shell output to w (e.g. a terminal emulator that
// renders it).
func (s *Session) SetDisplay(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.SetDisplay(w)
}

// Subscribe streams decoded events and raw output.
func (s *Session) Subscribe() (<-chan Message, func()) { return s.hub.Subscribe() }

// History returns the session's history store.
func (s *Session) History() *history.Store { return s.hist }

// Pending reports whether a captured run is outstanding.
func (s *Session) Pending() bool { return s.capture.Pending() }

// Cwd returns the last reported working directory.
func (s *Session) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dec.Cwd()
}

// CurrentPrompt returns the raw prompt text.
func (s *Session) CurrentPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dec.Prompt().Text
}

// CurrentPromptClean returns the prompt with escape sequences removed.
func (s *Session) CurrentPromptClean() string {
	return sanitize.Strip(s.CurrentPrompt())
}

// LastCommandClean returns the sanitized result of the last finished
// command, or nil before any command finished.
func (s *Session) LastCommandClean() *capture.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// Snapshot returns the current prompt, cwd and decoder state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Prompt:  sanitize.Strip(s.dec.Prompt().Text),
		Cwd:     s.dec.Cwd(),
		State:   s.dec.State().String(),
		Pending: s.capture.Pending(),
		Cols:    s.buf.Cols(),
		Rows:    s.buf.Rows(),
	}
}

// Screen returns the visible rows of the terminal buffer.
func (s *Session) Screen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Lines()
}

// onEvent runs under s.mu, from inside the decoder.
func (s *Session) onEvent(e shellint.Event) {
	e.Prompt = sanitize.Strip(e.Prompt)
	e.Output = sanitize.Strip(e.Output)

	switch e.Kind {
	case shellint.PromptChanged:
		s.hist.SetLatestPrompt(e.Prompt)
	case shellint.CommandStarted:
		s.hist.StartCommand(e.Prompt, e.Command, e.StartedAt)
	case shellint.CommandFinished:
		s.hist.RecordRun(history.Entry{
			Prompt:     e.Prompt,
			Command:    e.Command,
			Output:     e.Output,
			ExitCode:   e.ExitCode,
			StartedAt:  e.StartedAt,
			FinishedAt: e.FinishedAt,
		})
		s.last = &capture.Result{Output: e.Output, ExitCode: e.ExitCode}
	case shellint.CwdChanged:
		s.log.Debug("cwd changed", "cwd", e.Cwd)
	}
	s.hub.publish(Message{Type: MessageEvent, Event: &e})
}
