package shellint

import (
	"strings"
	"testing"
	"time"

	"cookterm/internal/termbuf"
)

type manualTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type manualScheduler struct {
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) Stopper {
	t := &manualTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

// fire runs every timer that has not been stopped.
func (s *manualScheduler) fire() {
	for _, t := range s.timers {
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.f()
	}
}

type fakeSlot struct {
	pending bool
	outputs []string
	codes   []int
}

func (f *fakeSlot) Pending() bool { return f.pending }

func (f *fakeSlot) Resolve(output string, exitCode int) bool {
	if !f.pending {
		return false
	}
	f.pending = false
	f.outputs = append(f.outputs, output)
	f.codes = append(f.codes, exitCode)
	return true
}

type harness struct {
	buf    *termbuf.Buffer
	dec    *Decoder
	sched  *manualScheduler
	events []Event
}

var testNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newHarness(t *testing.T, cols, rows, scrollback int) *harness {
	t.Helper()
	h := &harness{buf: termbuf.New(cols, rows, scrollback), sched: &manualScheduler{}}
	h.dec = New(h.buf, Options{
		Scheduler: h.sched,
		Now:       func() time.Time { return testNow },
		Sink:      func(e Event) { h.events = append(h.events, e) },
	})
	return h
}

func (h *harness) feed(s string) { h.dec.Feed([]byte(s)) }

func (h *harness) kinds() []EventKind {
	out := make([]EventKind, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Kind)
	}
	return out
}

const (
	oscA = "\x1b]133;A\a"
	oscB = "\x1b]133;B\a"
	oscC = "\x1b]133;C\a"
)

func oscD(code string) string { return "\x1b]133;D;" + code + "\a" }

func TestEndToEnd_EchoHi(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed(oscA + oscB)
	h.feed("echo hi\r\n")
	h.feed(oscC)
	h.feed("hi\r\n")
	h.feed(oscD("0"))

	kinds := h.kinds()
	if len(kinds) != 2 || kinds[0] != CommandStarted || kinds[1] != CommandFinished {
		t.Fatalf("events = %v", kinds)
	}
	if h.events[0].Command != "echo hi" {
		t.Fatalf("started command = %q", h.events[0].Command)
	}
	fin := h.events[1]
	if fin.Command != "echo hi" || fin.Output != "hi" || fin.ExitCode != 0 {
		t.Fatalf("finished = %+v", fin)
	}
	if !fin.StartedAt.Equal(testNow) || !fin.FinishedAt.Equal(testNow) {
		t.Fatalf("timestamps = %v / %v", fin.StartedAt, fin.FinishedAt)
	}
	if h.dec.State() != Idle {
		t.Fatalf("state = %v", h.dec.State())
	}
}

func TestPrompt_FromMarkers(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed(oscA + "user@host:~$ " + oscB)
	if got := h.dec.Prompt().Text; got != "user@host:~$" {
		t.Fatalf("prompt = %q", got)
	}
	if h.dec.State() != AwaitingCommand {
		t.Fatalf("state = %v", h.dec.State())
	}
	h.feed("ls   -la\r\n" + oscC)
	if got := h.dec.Command(); got != "ls   -la" {
		t.Fatalf("command = %q", got)
	}
	last := h.events[len(h.events)-1]
	if last.Kind != CommandStarted || last.Prompt != "user@host:~$" {
		t.Fatalf("last event = %+v", last)
	}
}

func TestPrompt_MultiLine(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed(oscA + "\x1b[1m~/proj\x1b[0m\r\n> " + oscB)
	p := h.dec.Prompt()
	if p.Text != "~/proj\n>" || p.LastLine != ">" {
		t.Fatalf("prompt = %+v", p)
	}
	h.feed("make test\r\n" + oscC)
	if got := h.dec.Command(); got != "make test" {
		t.Fatalf("command = %q", got)
	}
}

func TestPrompt_TimerFallback(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed(oscA + "bash-5.2$ ")
	if h.dec.State() != CollectingPrompt {
		t.Fatalf("state = %v", h.dec.State())
	}
	h.sched.fire()
	if got := h.dec.Prompt().Text; got != "bash-5.2$" {
		t.Fatalf("prompt = %q", got)
	}
	if h.dec.State() != AwaitingCommand {
		t.Fatalf("state = %v", h.dec.State())
	}
	if len(h.events) != 1 || h.events[0].Kind != PromptChanged {
		t.Fatalf("events = %v", h.kinds())
	}
}

func TestPrompt_StaleTimerIgnored(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed(oscA + "p1$ " + oscB)
	if len(h.sched.timers) != 1 || !h.sched.timers[0].stopped {
		t.Fatalf("timer not cancelled by B")
	}
	// a callback that slipped past Stop must be a no-op
	h.feed(oscA + "junk")
	h.sched.timers[0].f()
	if got := h.dec.Prompt().Text; got != "p1$" {
		t.Fatalf("prompt = %q", got)
	}
	if h.dec.State() != CollectingPrompt {
		t.Fatalf("state = %v", h.dec.State())
	}
}

func TestPrompt_RejectsEmptyAndContinuation(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed(oscA + "$ " + oscB)
	h.feed("\r\n" + oscA + ">> " + oscB)
	if got := h.dec.Prompt().Text; got != "$" {
		t.Fatalf("prompt overwritten by continuation: %q", got)
	}
	h.feed("\r\n" + oscA + "   " + oscB)
	if got := h.dec.Prompt().Text; got != "$" {
		t.Fatalf("prompt overwritten by blank: %q", got)
	}
	h.feed("\r\n" + oscA + ">>")
	h.sched.fire()
	if got := h.dec.Prompt().Text; got != "$" {
		t.Fatalf("prompt overwritten via timer: %q", got)
	}
	n := 0
	for _, e := range h.events {
		if e.Kind == PromptChanged {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("prompt events = %d, want 1", n)
	}
}

func TestCapture_ResolvesWithExitCode(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	slot := &fakeSlot{}
	h.dec.SetCapture(slot)
	h.feed(oscA + "$ " + oscB)

	slot.pending = true
	h.dec.ResetTransient()
	h.feed("false\r\n" + oscC + oscD("1"))

	if len(slot.codes) != 1 || slot.codes[0] != 1 || slot.outputs[0] != "" {
		t.Fatalf("resolutions = %v %q", slot.codes, slot.outputs)
	}
	last := h.events[len(h.events)-1]
	if last.Kind != CommandFinished || last.Command != "false" || last.ExitCode != 1 {
		t.Fatalf("finished = %+v", last)
	}
}

func TestCapture_MultiLineOutput(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	slot := &fakeSlot{pending: true}
	h.dec.SetCapture(slot)
	h.feed(oscA + "$ " + oscB + "printf 'a\\nb\\n'\r\n" + oscC + "a\r\nb\r\n" + oscD("0"))
	if len(slot.outputs) != 1 || slot.outputs[0] != "a\nb" {
		t.Fatalf("output = %q", slot.outputs)
	}
}

func TestFinish_WithoutStart(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed(oscD("0"))
	if len(h.events) != 0 {
		t.Fatalf("stray D emitted %v", h.kinds())
	}

	slot := &fakeSlot{pending: true}
	h.dec.SetCapture(slot)
	h.feed(oscD("2"))
	if len(slot.codes) != 1 || slot.codes[0] != 2 {
		t.Fatalf("pending capture not resolved: %v", slot.codes)
	}
	if len(h.events) != 1 || h.events[0].Kind != CommandFinished {
		t.Fatalf("events = %v", h.kinds())
	}
}

func TestFinish_BlankEnterRecordsNothing(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed(oscA + "$ " + oscB)
	h.events = nil

	h.feed("\r\n\x1b[?2004l\r" + oscC + oscD("0") + oscA + "$ " + oscB)
	for _, e := range h.events {
		if e.Kind == CommandStarted || e.Kind == CommandFinished {
			t.Fatalf("blank line produced %v", h.kinds())
		}
	}

	slot := &fakeSlot{pending: true}
	h.dec.SetCapture(slot)
	h.feed("\r\n" + oscC + oscD("1"))
	if len(slot.codes) != 1 || slot.codes[0] != 1 {
		t.Fatalf("pending capture not resolved: %v", slot.codes)
	}
}

func TestFinish_OutputScrolledAway(t *testing.T) {
	h := newHarness(t, 40, 2, 0)
	h.feed(oscA + "$ " + oscB + "seq 5\r\n" + oscC)
	h.feed("1\r\n2\r\n3\r\n4\r\n5\r\n" + oscD("0"))
	last := h.events[len(h.events)-1]
	if last.Kind != CommandFinished || last.Output != "" || last.Command != "seq 5" {
		t.Fatalf("finished = %+v", last)
	}
}

func TestEmptyCommandLine_NoStartEvent(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed(oscA + "$ " + oscB + "\r\n" + oscC)
	for _, e := range h.events {
		if e.Kind == CommandStarted {
			t.Fatalf("unexpected start event %+v", e)
		}
	}
	if h.dec.State() != CollectingOutput {
		t.Fatalf("state = %v", h.dec.State())
	}
}

func TestCwd(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed("\x1b]7;file://host/home/user/project\x1b\\")
	if got := h.dec.Cwd(); got != "/home/user/project" {
		t.Fatalf("cwd = %q", got)
	}
	h.feed("\x1b]7;file://host/tmp/a%20b\a")
	if got := h.dec.Cwd(); got != "/tmp/a b" {
		t.Fatalf("cwd = %q", got)
	}
	h.feed("\x1b]7;file://host\a")
	if got := h.dec.Cwd(); got != "/tmp/a b" {
		t.Fatalf("empty path changed cwd to %q", got)
	}
	n := 0
	for _, e := range h.events {
		if e.Kind == CwdChanged {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("cwd events = %d", n)
	}
}

func TestResetTransient(t *testing.T) {
	h := newHarness(t, 80, 24, 100)
	h.feed(oscA + "$ " + oscB + "ls\r\n" + oscC)
	h.dec.ResetTransient()
	if h.dec.Command() != "ls" {
		t.Fatalf("reset during output cleared command")
	}
	h.feed(oscD("0"))
	h.dec.ResetTransient()
	if h.dec.Command() != "" {
		t.Fatalf("command = %q after reset", h.dec.Command())
	}
}

func TestParseMark(t *testing.T) {
	cases := []struct {
		in   string
		ok   bool
		code byte
		exit int
	}{
		{"A", true, 'A', 0},
		{"B;aid=1", true, 'B', 0},
		{"C", true, 'C', 0},
		{"D;0", true, 'D', 0},
		{"D;127", true, 'D', 127},
		{"D;1;aid=3", true, 'D', 1},
		{"D", true, 'D', 0},
		{"D;x", true, 'D', 0},
		{"", false, 0, 0},
		{"E", false, 0, 0},
		{"AB", false, 0, 0},
	}
	for _, c := range cases {
		m, ok := parseMark(c.in)
		if ok != c.ok || m.code != c.code || m.exitCode != c.exit {
			t.Errorf("parseMark(%q) = %+v,%v", c.in, m, ok)
		}
	}
}

func TestExtractCommand(t *testing.T) {
	cases := []struct{ line, prompt, want string }{
		{"user@host:~$ git status", "user@host:~$", "git status"},
		{"  bare command  ", "", "bare command"},
		{"other> ls", "$", "other> ls"},
		{"", "$", ""},
	}
	for _, c := range cases {
		if got := extractCommand(c.line, c.prompt); got != c.want {
			t.Errorf("extractCommand(%q,%q) = %q, want %q", c.line, c.prompt, got, c.want)
		}
	}
}

func TestStateString(t *testing.T) {
	names := []string{Idle.String(), CollectingPrompt.String(), AwaitingCommand.String(), CollectingOutput.String()}
	if strings.Join(names, ",") != "idle,collecting-prompt,awaiting-command,collecting-output" {
		t.Fatalf("names = %v", names)
	}
}
