package actuation

import (
	"fmt"
	"strings"

	"github.com/smazurov/edgelatency/internal/clock"
)

// Style selects the telemetry line format.
type Style string

// Telemetry line styles.
const (
	// StyleShort emits "LED:ON\n" / "LED:OFF\n".
	StyleShort Style = "short"
	// StyleLatency appends the measured cycles and time.
	StyleLatency Style = "latency"
)

// ParseStyle validates a configured telemetry format.
func ParseStyle(s string) (Style, error) {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case "", StyleShort:
		return StyleShort, nil
	case StyleLatency:
		return StyleLatency, nil
	default:
		return "", fmt.Errorf("unknown telemetry format %q (want short or latency)", s)
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// Format renders a sample as a telemetry line. hz is the clock rate used to
// convert cycles into time for StyleLatency.
func Format(s LatencySample, hz uint32, style Style) []byte {
	if style != StyleLatency {
		return []byte("LED:" + onOff(s.On) + "\n")
	}
	ns := clock.Nanoseconds(s.ElapsedCycles, hz)
	return fmt.Appendf(nil, "LED:%s cycles:%d time:%.2fns (%.6fms)\n",
		onOff(s.On), s.ElapsedCycles, ns, ns/1e6)
}
