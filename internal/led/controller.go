package led

import "fmt"

// Color is an RGB value for the indicator.
type Color struct {
	R, G, B uint8
}

// Off is the color pushed when the actuator is off.
var Off = Color{}

// Red returns a red color at the given level.
func Red(level uint8) Color {
	return Color{R: level}
}

// IsOff reports whether every channel is zero.
func (c Color) IsOff() bool {
	return c == Off
}

// Max returns the brightest channel.
func (c Color) Max() uint8 {
	return max(c.R, c.G, c.B)
}

// String formats the color as #rrggbb.
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Indicator abstracts the single indicator LED toggled by the actuation task.
// Implementations hide how a color reaches the hardware.
type Indicator interface {
	// SetColor pushes a new color to the LED.
	SetColor(c Color) error

	// Name identifies the LED (sysfs name, or "noop").
	Name() string
}

// Patterned is implemented by LEDs that support kernel-driven trigger patterns
// ("solid", "blink", "heartbeat" or a raw trigger name).
type Patterned interface {
	SetPattern(pattern string) error
}
