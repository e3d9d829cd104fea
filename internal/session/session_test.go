package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cookterm/internal/capture"
	"cookterm/internal/shellint"
)

type fakeHost struct {
	mu      sync.Mutex
	started bool
	written []string
	out     [][]byte
	readErr error
	cols    int
	rows    int
	// onWrite lets a test script the shell's reply to what was typed.
	onWrite func(p []byte)
}

func (h *fakeHost) CreateShell(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = true
	return nil
}

func (h *fakeHost) Write(p []byte) (int, error) {
	h.mu.Lock()
	h.written = append(h.written, string(p))
	fn := h.onWrite
	h.mu.Unlock()
	if fn != nil {
		fn(p)
	}
	return len(p), nil
}

func (h *fakeHost) Read() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.out) == 0 {
		return nil, h.readErr
	}
	b := h.out[0]
	h.out = h.out[1:]
	return b, nil
}

func (h *fakeHost) Resize(cols, rows int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cols, h.rows = cols, rows
	return nil
}

func (h *fakeHost) Close() error { return nil }

func (h *fakeHost) emit(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.out = append(h.out, []byte(s))
}

func (h *fakeHost) writes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.written...)
}

const (
	oscA = "\x1b]133;A\a"
	oscB = "\x1b]133;B\a"
	oscC = "\x1b]133;C\a"
)

var testNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestSession(t *testing.T, h *fakeHost) *Session {
	t.Helper()
	s := New(h, Options{Cols: 80, Rows: 24, Now: func() time.Time { return testNow }})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	return s
}

func drain(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; i < 10; i++ {
		if err := s.Tick(); err != nil {
			t.Fatalf("Tick error: %v", err)
		}
	}
}

func TestSession_StartSyncsSize(t *testing.T) {
	h := &fakeHost{}
	s := New(h, Options{Cols: 100, Rows: 30})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if !h.started || h.cols != 100 || h.rows != 30 {
		t.Fatalf("host = started:%v %dx%d", h.started, h.cols, h.rows)
	}
	if err := s.Resize(120, 40); err != nil {
		t.Fatalf("Resize error: %v", err)
	}
	if h.cols != 120 || h.rows != 40 {
		t.Fatalf("after resize host = %dx%d", h.cols, h.rows)
	}
	if snap := s.Snapshot(); snap.Cols != 120 || snap.Rows != 40 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestSession_CapturedRunResolvesThroughTick(t *testing.T) {
	h := &fakeHost{}
	s := newTestSession(t, h)
	h.emit(oscA + "\x1b[32m~\x1b[0m $ " + oscB)
	drain(t, s)
	if got := s.CurrentPromptClean(); got != "~ $" {
		t.Fatalf("clean prompt = %q", got)
	}

	h.onWrite = func(p []byte) {
		if string(p) != "ls\n" {
			return
		}
		h.emit("ls\r\n" + oscC + "\x1b[1ma.txt\x1b[0m\r\nb.txt\r\n")
		h.emit("\x1b]133;D;2\a")
	}
	p, err := s.Submit("ls")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if _, err := s.Submit("pwd"); !errors.Is(err, capture.ErrPending) {
		t.Fatalf("second submit err = %v", err)
	}
	if !s.Pending() {
		t.Fatalf("expected pending capture")
	}
	drain(t, s)

	res, ok := p.Result()
	if !ok {
		t.Fatalf("capture not resolved; state = %s", s.Snapshot().State)
	}
	if res.ExitCode != 2 || res.Output != "a.txt\nb.txt" {
		t.Fatalf("result = %+v", res)
	}
	if s.Pending() {
		t.Fatalf("slot still pending")
	}

	entries := s.History().Entries()
	if len(entries) != 1 {
		t.Fatalf("history = %+v", entries)
	}
	e := entries[0]
	if e.Command != "ls" || e.Output != "a.txt\nb.txt" || e.Prompt != "~ $" || e.ExitCode != 2 || e.ID == "" {
		t.Fatalf("entry = %+v", e)
	}
	if last := s.LastCommandClean(); last == nil || last.Output != "a.txt\nb.txt" {
		t.Fatalf("last = %+v", last)
	}
	if s.History().LatestPrompt() != "~ $" {
		t.Fatalf("latest prompt = %q", s.History().LatestPrompt())
	}
}

func TestSession_RunWaits(t *testing.T) {
	h := &fakeHost{}
	s := newTestSession(t, h)
	h.onWrite = func(p []byte) {
		if string(p) == "true\n" {
			h.emit(oscA + "$ " + oscB + "true\r\n" + oscC + "\x1b]133;D;0\a")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = Loop(ctx, s, time.Millisecond, nil) }()

	rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
	defer rcancel()
	res, err := s.Run(rctx, "true")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.ExitCode != 0 || res.Output != "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestSession_SubscribeSeesEventsAndOutput(t *testing.T) {
	h := &fakeHost{}
	s := newTestSession(t, h)
	ch, cancel := s.Subscribe()
	defer cancel()

	h.emit(oscA + "user@host$ " + oscB)
	h.emit("\x1b]7;file://host/tmp/a%20b\a")
	drain(t, s)

	var kinds []shellint.EventKind
	var sawOutput bool
	for len(ch) > 0 {
		m := <-ch
		switch m.Type {
		case MessageOutput:
			sawOutput = sawOutput || len(m.Output) > 0
		case MessageEvent:
			kinds = append(kinds, m.Event.Kind)
		}
	}
	if !sawOutput {
		t.Fatalf("no output messages")
	}
	if len(kinds) != 2 || kinds[0] != shellint.PromptChanged || kinds[1] != shellint.CwdChanged {
		t.Fatalf("event kinds = %v", kinds)
	}
	if s.Cwd() != "/tmp/a b" {
		t.Fatalf("cwd = %q", s.Cwd())
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed after cancel")
	}
}

func TestSession_InputReachesHost(t *testing.T) {
	h := &fakeHost{}
	s := newTestSession(t, h)
	s.Input([]byte("l"))
	s.Input([]byte("s\r"))
	if err := s.Paste("echo x"); err != nil {
		t.Fatalf("Paste error: %v", err)
	}
	if err := s.Send("a\nb"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	got := strings.Join(h.writes(), "|")
	want := "l|s\r|echo x|\x1b[200~a\nb\x1b[201~\n"
	if got != want {
		t.Fatalf("writes = %q, want %q", got, want)
	}
}

func TestSession_WritesDoNotHoldScreenLock(t *testing.T) {
	h := &fakeHost{}
	s := newTestSession(t, h)
	// A shell that echoes synchronously would deadlock if Feed waited on
	// the write in progress.
	h.onWrite = func(p []byte) {
		s.Feed(p)
		_ = s.Snapshot()
	}

	done := make(chan error, 1)
	go func() {
		s.Input([]byte("x"))
		_, err := s.Submit("ls")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Submit error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("write blocked on the session lock")
	}
	if got := strings.Join(h.writes(), "|"); got != "x|ls\n" {
		t.Fatalf("writes = %q", got)
	}
	if !s.Pending() {
		t.Fatalf("expected pending capture")
	}
}

func TestSession_TickReturnsHostError(t *testing.T) {
	h := &fakeHost{readErr: errors.New("boom")}
	s := newTestSession(t, h)
	h.emit("hello")
	if err := s.Tick(); err != nil {
		t.Fatalf("first Tick error = %v", err)
	}
	if err := s.Tick(); err == nil || err.Error() != "boom" {
		t.Fatalf("second Tick error = %v", err)
	}
	if lines := s.Screen(); lines[0] != "hello" {
		t.Fatalf("screen[0] = %q", lines[0])
	}
}

type countingTicker struct {
	n    atomic.Int32
	errs []error
}

func (c *countingTicker) Tick() error {
	i := int(c.n.Add(1)) - 1
	if i < len(c.errs) {
		return c.errs[i]
	}
	return nil
}

func TestLoop_ReportsDistinctErrorsAndContinues(t *testing.T) {
	a, b := errors.New("a"), errors.New("b")
	tk := &countingTicker{errs: []error{a, a, a, b, nil, a}}
	var mu sync.Mutex
	var reported []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Loop(ctx, tk, time.Millisecond, func(err error) {
			mu.Lock()
			reported = append(reported, err.Error())
			mu.Unlock()
		})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for tk.n.Load() < 8 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Loop returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got := strings.Join(reported, ","); got != "a,b,a" {
		t.Fatalf("reported = %q", got)
	}
}
