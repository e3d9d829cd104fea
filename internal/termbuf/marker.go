package termbuf

// Marker is a revocable handle bound to one absolute line of the primary
// buffer. It is invalidated when its line is trimmed from scrollback, when the
// scrollback is cleared, on a full reset, or by Dispose.
type Marker struct {
	id       int
	line     int
	disposed bool
}

// ID returns a buffer-unique identifier for the marker.
func (m *Marker) ID() int {
	if m == nil {
		return 0
	}
	return m.id
}

// Line returns the absolute line the marker is bound to. ok is false once the
// marker has been invalidated (or when m is nil).
func (m *Marker) Line() (line int, ok bool) {
	if m == nil || m.disposed {
		return 0, false
	}
	return m.line, true
}

// Dispose releases the marker. Subsequent Line calls report it as invalid.
func (m *Marker) Dispose() {
	if m != nil {
		m.disposed = true
	}
}

// IsDisposed reports whether the marker can no longer be resolved.
func (m *Marker) IsDisposed() bool { return m == nil || m.disposed }
