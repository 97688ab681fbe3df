package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// New opens the indicator LED.
//
// A non-empty name selects /sys/class/leds/<name> and any failure to take
// control of it is returned: the firmware does not run without its indicator.
// An empty name falls back to board detection and, when the board is unknown
// or its LED is missing, to a no-op controller.
func New(name string, logger *slog.Logger) (Indicator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if name != "" {
		s := newSysfs(sysfsLEDPath, name)
		if err := s.init(); err != nil {
			return nil, err
		}
		logger.Info("Using sysfs LED", "name", name, "multicolor", s.multi)
		return s, nil
	}

	boardModel := detectBoard()
	logger.Info("Detecting board for LED control", "board_model", boardModel)

	detected := boardLED(boardModel)
	if detected == "" {
		logger.Info("No LED support detected, using no-op controller", "board_model", boardModel)
		return newNoop(logger), nil
	}

	s := newSysfs(sysfsLEDPath, detected)
	if err := s.init(); err != nil {
		logger.Warn("Board LED unavailable, using no-op controller", "led", detected, "error", err)
		return newNoop(logger), nil
	}
	logger.Info("Using board LED", "board_model", boardModel, "name", detected)
	return s, nil
}

// OpenStatus opens an optional second LED used for link status patterns.
// An empty name returns nil.
func OpenStatus(name string, logger *slog.Logger) (Patterned, error) {
	if name == "" {
		return nil, nil
	}
	s := newSysfs(sysfsLEDPath, name)
	if err := s.init(); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("Using status LED", "name", name)
	}
	return s, nil
}

// boardLED maps a device tree model to the user LED the indicator should drive.
func boardLED(model string) string {
	switch {
	case strings.Contains(model, "NanoPC-T6"):
		return "usr_led"
	case strings.Contains(model, "Orange Pi"):
		return "green_led"
	case strings.Contains(model, "Raspberry Pi"):
		return "ACT"
	default:
		return ""
	}
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}

	// Device tree model contains null bytes, trim them
	return strings.TrimRight(string(data), "\x00")
}
