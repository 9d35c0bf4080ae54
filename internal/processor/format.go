package processor

import (
	"fmt"
	"time"
)

// formatDuration renders d as seconds, minutes and seconds, or hours,
// minutes and seconds, with one decimal on the seconds.
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs < 60:
		return fmt.Sprintf("%.1fs", secs)
	case secs < 3600:
		m := int(secs / 60)
		return fmt.Sprintf("%dm %.1fs", m, secs-float64(m*60))
	default:
		h := int(secs / 3600)
		m := int((secs - float64(h*3600)) / 60)
		return fmt.Sprintf("%dh %dm %.1fs", h, m, secs-float64(h*3600+m*60))
	}
}
