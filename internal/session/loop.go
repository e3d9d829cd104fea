package session

import (
	"context"
	"time"
)

// DefaultFrameInterval is the polling period of Loop, roughly one frame at
// 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Ticker is anything that does one unit of I/O work per frame.
type Ticker interface {
	Tick() error
}

// Loop calls t.Tick every interval until ctx is done. A failing tick is
// reported through onErr and the loop keeps going; the same error text is
// reported only once until a tick succeeds.
func Loop(ctx context.Context, t Ticker, interval time.Duration, onErr func(error)) error {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
		}
		err := t.Tick()
		if err == nil {
			last = ""
			continue
		}
		if msg := err.Error(); msg != last {
			last = msg
			if onErr != nil {
				onErr(err)
			}
		}
	}
}
