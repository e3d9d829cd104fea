// Package history keeps the in-memory terminal history: completed command
// entries, commands still running, and the latest prompt.
package history

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a completed command. Entries are never modified once recorded.
type Entry struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Command    string    `json:"command"`
	Output     string    `json:"output"`
	ExitCode   int       `json:"exitCode"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration is the time between start and finish.
func (e Entry) Duration() time.Duration { return e.FinishedAt.Sub(e.StartedAt) }

// Running is a command that has started but not finished.
type Running struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"startedAt"`
}

// ExecutionResult describes the latest execution of a command.
type ExecutionResult struct {
	ID        string        `json:"id"`
	Output    string        `json:"output"`
	ExitCode  int           `json:"exitCode"` // -1 while running
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	IsRunning bool          `json:"isRunning"`
}

// Normalize trims command and collapses internal whitespace runs to a single
// space. Running and completed commands are matched by this key.
func Normalize(command string) string {
	return strings.Join(strings.Fields(command), " ")
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	running []Running
	prompt  string

	subs    map[int]func()
	nextSub int

	now   func() time.Time
	newID func() string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		subs:  make(map[int]func()),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Subscribe registers fn to be called after every change. The returned
// function cancels the subscription.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// StartCommand records command as running, replacing any running command
// with the same normalized text.
func (s *Store) StartCommand(prompt, command string, startedAt time.Time) Running {
	r := Running{ID: s.newID(), Prompt: prompt, Command: command, StartedAt: startedAt}
	key := Normalize(command)
	s.mu.Lock()
	s.running = dropRunning(s.running, key)
	s.running = append(s.running, r)
	s.mu.Unlock()
	s.notify()
	return r
}

// RecordRun appends a completed entry, removes the matching running command
// and makes the entry's prompt the latest prompt.
func (s *Store) RecordRun(e Entry) Entry {
	e.ID = s.newID()
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.running = dropRunning(s.running, Normalize(e.Command))
	s.prompt = e.Prompt
	s.mu.Unlock()
	s.notify()
	return e
}

func dropRunning(in []Running, key string) []Running {
	out := in[:0]
	for _, r := range in {
		if Normalize(r.Command) != key {
			out = append(out, r)
		}
	}
	return out
}

// SetLatestPrompt updates the latest prompt.
func (s *Store) SetLatestPrompt(prompt string) {
	s.mu.Lock()
	s.prompt = prompt
	s.mu.Unlock()
	s.notify()
}

// LatestPrompt returns the latest prompt.
func (s *Store) LatestPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompt
}

// Dismiss removes the entry with id. It reports whether one was removed.
func (s *Store) Dismiss(id string) bool {
	s.mu.Lock()
	removed := false
	out := s.entries[:0]
	for _, e := range s.entries {
		if e.ID == id {
			removed = true
			continue
		}
		out = append(out, e)
	}
	s.entries = out
	s.mu.Unlock()
	if removed {
		s.notify()
	}
	return removed
}

// Clear drops every entry, running command and the latest prompt.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.running = nil
	s.prompt = ""
	s.mu.Unlock()
	s.notify()
}

// Entries returns a copy of the completed entries, oldest first.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Running returns a copy of the running commands, oldest first.
func (s *Store) Running() []Running {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Running(nil), s.running...)
}

// MostRecent returns the latest execution of command, matched by normalized
// text. A running command takes precedence over completed entries. It
// returns nil when the command never ran.
func (s *Store) MostRecent(command string) *ExecutionResult {
	key := Normalize(command)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.running {
		if Normalize(r.Command) == key {
			return &ExecutionResult{
				ID:        r.ID,
				ExitCode:  -1,
				Timestamp: r.StartedAt,
				Duration:  s.now().Sub(r.StartedAt),
				IsRunning: true,
			}
		}
	}

	var best *Entry
	for i := range s.entries {
		e := &s.entries[i]
		if Normalize(e.Command) != key {
			continue
		}
		if best == nil || !e.FinishedAt.Before(best.FinishedAt) {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	return &ExecutionResult{
		ID:        best.ID,
		Output:    best.Output,
		ExitCode:  best.ExitCode,
		Timestamp: best.FinishedAt,
		Duration:  best.Duration(),
	}
}
