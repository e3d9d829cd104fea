// Package shellint decodes shell-integration markers (OSC 133 prompt and
// command boundaries, OSC 7 working directory) from a terminal stream into
// prompt and command events.
package shellint

import (
	"strings"
	"time"
)

// State is the decoder's position in a prompt/command cycle.
type State int

const (
	Idle State = iota
	CollectingPrompt
	AwaitingCommand
	CollectingOutput
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CollectingPrompt:
		return "collecting-prompt"
	case AwaitingCommand:
		return "awaiting-command"
	case CollectingOutput:
		return "collecting-output"
	default:
		return "unknown"
	}
}

// EventKind identifies what an Event reports.
type EventKind int

const (
	PromptChanged EventKind = iota + 1
	CommandStarted
	CommandFinished
	CwdChanged
)

func (k EventKind) String() string {
	switch k {
	case PromptChanged:
		return "prompt_changed"
	case CommandStarted:
		return "command_started"
	case CommandFinished:
		return "command_finished"
	case CwdChanged:
		return "cwd_changed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is emitted by the decoder. Which fields are set depends on Kind:
//
//	PromptChanged:   Prompt
//	CommandStarted:  Prompt, Command, StartedAt
//	CommandFinished: Prompt, Command, Output, ExitCode, StartedAt, FinishedAt
//	CwdChanged:      Cwd
type Event struct {
	Kind       EventKind `json:"kind"`
	Prompt     string    `json:"prompt,omitempty"`
	Command    string    `json:"command,omitempty"`
	Output     string    `json:"output,omitempty"`
	ExitCode   int       `json:"exitCode"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
	Cwd        string    `json:"cwd,omitempty"`
}

// PromptCapture is the best-known text of the last shell prompt.
type PromptCapture struct {
	Text string
	// LastLine is the final line of Text, used to locate the prompt on the
	// command line.
	LastLine string
}

func newPromptCapture(text string) PromptCapture {
	last := text
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		last = text[i+1:]
	}
	return PromptCapture{Text: text, LastLine: last}
}

// Stopper cancels a scheduled callback.
type Stopper interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

// TimeScheduler schedules with time.AfterFunc.
type TimeScheduler struct{}

func (TimeScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// CaptureSlot is the single pending captured command, if any.
type CaptureSlot interface {
	Pending() bool
	// Resolve completes the pending capture. It reports false when nothing
	// was pending.
	Resolve(output string, exitCode int) bool
}
