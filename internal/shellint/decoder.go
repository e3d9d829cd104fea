package shellint

import (
	"strings"
	"time"
	"unicode"

	clog "github.com/charmbracelet/log"

	"cookterm/internal/system"
	"cookterm/internal/termbuf"
)

// DefaultPromptFinalizeDelay is how long the decoder waits for B after A
// before finalizing the prompt from streamed text.
const DefaultPromptFinalizeDelay = 200 * time.Millisecond

// Options configures a Decoder. Zero values select the defaults.
type Options struct {
	PromptFinalizeDelay time.Duration
	Scheduler           Scheduler
	Now                 func() time.Time
	// Sink receives every event, synchronously.
	Sink func(Event)
	// Serialize wraps the prompt timer callback so it runs under the same
	// lock as Feed. Defaults to calling the function directly.
	Serialize func(func())
	Logger    *clog.Logger
}

// Decoder is the shell-integration state machine. It registers OSC 133 and
// OSC 7 handlers on the line buffer and observes the plain text written to
// it. It is not safe for concurrent use; callers serialize Feed, the
// capture calls and the timer callback (see Options.Serialize).
type Decoder struct {
	buf       LineBuffer
	lines     lines
	sched     Scheduler
	now       func() time.Time
	sink      func(Event)
	serialize func(func())
	delay     time.Duration
	capture   CaptureSlot
	log       *clog.Logger

	state  State
	prompt PromptCapture
	raw    strings.Builder
	cwd    string

	promptStart *termbuf.Marker
	outputStart *termbuf.Marker
	timer       Stopper
	gen         uint64

	// per command cycle
	command   string
	startedAt time.Time
	cycleOpen bool
}

// New attaches a decoder to buf.
func New(buf LineBuffer, opts Options) *Decoder {
	d := &Decoder{
		buf:       buf,
		sched:     opts.Scheduler,
		now:       opts.Now,
		sink:      opts.Sink,
		serialize: opts.Serialize,
		delay:     opts.PromptFinalizeDelay,
		log:       system.Or(opts.Logger).WithPrefix("shellint"),
	}
	if d.sched == nil {
		d.sched = TimeScheduler{}
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.sink == nil {
		d.sink = func(Event) {}
	}
	if d.serialize == nil {
		d.serialize = func(f func()) { f() }
	}
	if d.delay <= 0 {
		d.delay = DefaultPromptFinalizeDelay
	}
	d.lines = lines{buf: buf, log: d.log}

	buf.RegisterOscHandler(OscShellIntegration, d.handleMark)
	buf.RegisterOscHandler(OscCwd, d.handleCwd)
	buf.SetTextObserver(d.observe)
	return d
}

// SetCapture installs the pending-capture slot consulted on D.
func (d *Decoder) SetCapture(c CaptureSlot) { d.capture = c }

// Feed writes shell output through the line buffer, which dispatches any
// markers back to the decoder in stream order.
func (d *Decoder) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	if _, err := d.buf.Write(p); err != nil {
		d.log.Warn("line buffer write failed", "err", err)
	}
}

// State returns the current cycle state.
func (d *Decoder) State() State { return d.state }

// Prompt returns the last accepted prompt.
func (d *Decoder) Prompt() PromptCapture { return d.prompt }

// Cwd returns the last directory reported through OSC 7.
func (d *Decoder) Cwd() string { return d.cwd }

// Command returns the command text recovered at the last C.
func (d *Decoder) Command() string { return d.command }

// ResetTransient clears per-cycle command state ahead of a captured run. A
// cycle that is still collecting output is left alone.
func (d *Decoder) ResetTransient() {
	if d.state == CollectingOutput {
		return
	}
	d.command = ""
	d.startedAt = time.Time{}
	d.cycleOpen = false
}

func (d *Decoder) observe(s string) {
	if d.state == CollectingPrompt {
		d.raw.WriteString(s)
	}
}

func (d *Decoder) handleMark(payload string) bool {
	m, ok := parseMark(payload)
	if !ok {
		d.log.Debug("ignoring unknown OSC 133 payload", "payload", payload)
		return true
	}
	switch m.code {
	case 'A':
		d.promptStarted()
	case 'B':
		d.promptEnded()
	case 'C':
		d.commandExecuted()
	case 'D':
		d.commandFinished(m.exitCode)
	}
	return true
}

func (d *Decoder) handleCwd(payload string) bool {
	path := parseCwd(payload)
	if path == "" {
		return true
	}
	d.cwd = path
	d.sink(Event{Kind: CwdChanged, Cwd: path})
	return true
}

func (d *Decoder) promptStarted() {
	release(&d.promptStart)
	d.promptStart = d.lines.mark(0, "prompt-start")
	d.state = CollectingPrompt
	d.raw.Reset()
	d.armTimer()
}

func (d *Decoder) armTimer() {
	d.stopTimer()
	gen := d.gen
	d.timer = d.sched.AfterFunc(d.delay, func() {
		d.serialize(func() { d.promptTimedOut(gen) })
	})
}

// stopTimer cancels the prompt timer. Bumping gen discards a callback that
// already fired but has not acquired the lock yet.
func (d *Decoder) stopTimer() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Decoder) promptTimedOut(gen uint64) {
	if gen != d.gen || d.state != CollectingPrompt {
		return
	}
	d.timer = nil
	d.acceptPrompt(trimRight(d.raw.String()), "timer")
	release(&d.promptStart)
	d.state = AwaitingCommand
}

func (d *Decoder) promptEnded() {
	d.stopTimer()
	end := d.lines.mark(0, "prompt-end")
	text, ok := d.lines.between(d.promptStart, end, 0)
	if !ok {
		if d.promptStart != nil && end != nil {
			d.log.Warn("prompt markers out of range, using streamed text")
		}
		text = d.raw.String()
	}
	release(&end)
	d.acceptPrompt(trimRight(text), "markers")
	release(&d.promptStart)
	d.state = AwaitingCommand
}

// acceptPrompt stores text as the current prompt unless it is empty or a
// ">>" continuation prompt.
func (d *Decoder) acceptPrompt(text, source string) bool {
	if text == "" || text == ">>" {
		d.log.Warn("ignoring invalid or empty prompt", "prompt", text, "source", source)
		return false
	}
	d.prompt = newPromptCapture(text)
	d.sink(Event{Kind: PromptChanged, Prompt: text})
	return true
}

func (d *Decoder) commandExecuted() {
	known := d.prompt.LastLine
	line, _ := d.lines.textAt(-1)
	if line != "" && known != "" && !strings.Contains(line, known) {
		// The command line may still be the cursor line when the shell
		// emits C before moving on. Only take it when the prompt matches.
		if cur, ok := d.lines.textAt(0); ok && strings.Contains(cur, known) {
			line = cur
		}
	}

	d.command = extractCommand(line, known)
	release(&d.outputStart)
	d.outputStart = d.lines.mark(-1, "output-start")
	d.startedAt = d.now()
	d.cycleOpen = true
	d.state = CollectingOutput

	if d.command != "" {
		d.sink(Event{
			Kind:      CommandStarted,
			Prompt:    d.prompt.Text,
			Command:   d.command,
			StartedAt: d.startedAt,
		})
	}
}

// extractCommand returns the text after the prompt's last line, or the whole
// line when the prompt is unknown or absent.
func extractCommand(line, promptLine string) string {
	if promptLine != "" {
		if i := strings.Index(line, promptLine); i >= 0 {
			return strings.TrimSpace(line[i+len(promptLine):])
		}
	}
	return strings.TrimSpace(line)
}

// commandFinished closes the cycle opened by C. A D with no open cycle and
// no pending capture emits nothing, so a shell that reports D after every
// prompt cannot repeat the previous record. A cycle with no command text
// and no output is dropped the same way. A pending capture always resolves.
func (d *Decoder) commandFinished(exitCode int) {
	end := d.lines.mark(-1, "output-end")
	output, ok := d.lines.between(d.outputStart, end, 1)
	if !ok {
		if d.outputStart != nil && end != nil {
			d.log.Warn("output markers out of range, dropping output")
		}
		output = ""
	}
	release(&end)
	release(&d.outputStart)

	pending := d.capture != nil && d.capture.Pending()
	blank := d.command == "" && output == ""
	if pending || (d.cycleOpen && !blank) {
		startedAt := d.startedAt
		if startedAt.IsZero() {
			startedAt = d.now()
		}
		d.sink(Event{
			Kind:       CommandFinished,
			Prompt:     d.prompt.Text,
			Command:    d.command,
			Output:     output,
			ExitCode:   exitCode,
			StartedAt:  startedAt,
			FinishedAt: d.now(),
		})
	} else if d.cycleOpen {
		d.log.Debug("dropping empty command cycle", "exit", exitCode)
	} else {
		d.log.Debug("command finished without a start marker", "exit", exitCode)
	}
	if pending {
		d.capture.Resolve(output, exitCode)
	}

	d.cycleOpen = false
	d.state = Idle
}

func trimRight(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
