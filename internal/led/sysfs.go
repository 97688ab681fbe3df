package led

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs implements Indicator using the Linux LED class interface.
type sysfs struct {
	name  string
	path  string
	multi bool // multicolor LED exposing multi_intensity
}

// newSysfs prepares a controller for /<root>/<name>. Call init before use.
func newSysfs(root, name string) *sysfs {
	return &sysfs{
		name: name,
		path: filepath.Join(root, name),
	}
}

// init checks the LED exists, hands it over to manual control and switches it off.
func (s *sysfs) init() error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("LED %q not found at %s: %w", s.name, s.path, err)
	}

	if _, err := os.Stat(filepath.Join(s.path, "multi_intensity")); err == nil {
		s.multi = true
	}

	if err := s.SetPattern("none"); err != nil {
		return err
	}
	return s.SetColor(Off)
}

// SetColor writes the color to multi_intensity (multicolor LEDs) or uses the
// brightest channel as brightness (single color LEDs).
func (s *sysfs) SetColor(c Color) error {
	brightness := strconv.Itoa(int(c.Max()))

	if s.multi {
		intensity := fmt.Sprintf("%d %d %d", c.R, c.G, c.B)
		if err := s.write("multi_intensity", intensity); err != nil {
			return fmt.Errorf("failed to set LED intensity: %w", err)
		}
		brightness = "0"
		if !c.IsOff() {
			brightness = "255"
		}
	}

	if err := s.write("brightness", brightness); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

// SetPattern sets the kernel trigger for the LED.
func (s *sysfs) SetPattern(pattern string) error {
	var trigger string
	switch pattern {
	case "solid":
		trigger = "default-on"
	case "blink", "heartbeat":
		trigger = "heartbeat"
	case "":
		return errors.New("empty LED pattern")
	default:
		trigger = pattern // raw trigger names
	}

	if err := s.write("trigger", trigger); err != nil {
		return fmt.Errorf("failed to set LED trigger: %w", err)
	}
	return nil
}

// Name implements Indicator.
func (s *sysfs) Name() string {
	return s.name
}

func (s *sysfs) write(attr, value string) error {
	return os.WriteFile(filepath.Join(s.path, attr), []byte(value), 0o644)
}
