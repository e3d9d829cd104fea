package history

import (
	"fmt"
	"time"
)

// FormatDuration renders d as "123ms", "1.5s" or "2m 3.4s".
func FormatDuration(d time.Duration) string {
	ms := float64(d) / float64(time.Millisecond)
	switch {
	case ms < 1000:
		return fmt.Sprintf("%.0fms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.1fs", ms/1000)
	default:
		m := int64(ms) / 60000
		rest := ms - float64(m*60000)
		return fmt.Sprintf("%dm %.1fs", m, rest/1000)
	}
}
