package led

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/edgelatency/internal/events"
)

func fakeLED(t *testing.T, name string, multi bool) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := []string{"brightness", "trigger"}
	if multi {
		files = append(files, "multi_intensity")
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func readAttr(t *testing.T, root, name, attr string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, name, attr))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSysfs_Init(t *testing.T) {
	root := fakeLED(t, "usr_led", false)
	s := newSysfs(root, "usr_led")
	if err := s.init(); err != nil {
		t.Fatalf("init() error = %v", err)
	}
	if got := readAttr(t, root, "usr_led", "trigger"); got != "none" {
		t.Errorf("trigger = %q, want none", got)
	}
	if got := readAttr(t, root, "usr_led", "brightness"); got != "0" {
		t.Errorf("brightness = %q, want 0", got)
	}
	if s.multi {
		t.Error("single color LED detected as multicolor")
	}
}

func TestSysfs_InitMissing(t *testing.T) {
	s := newSysfs(t.TempDir(), "missing")
	if err := s.init(); err == nil {
		t.Fatal("expected error for missing LED")
	}
}

func TestSysfs_SetColor(t *testing.T) {
	tests := []struct {
		name           string
		multi          bool
		color          Color
		wantBrightness string
		wantIntensity  string
	}{
		{"single on", false, Red(32), "32", ""},
		{"single off", false, Off, "0", ""},
		{"multi on", true, Color{R: 32, G: 1, B: 2}, "255", "32 1 2"},
		{"multi off", true, Off, "0", "0 0 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := fakeLED(t, "rgb", tt.multi)
			s := newSysfs(root, "rgb")
			if err := s.init(); err != nil {
				t.Fatal(err)
			}
			if err := s.SetColor(tt.color); err != nil {
				t.Fatalf("SetColor() error = %v", err)
			}
			if got := readAttr(t, root, "rgb", "brightness"); got != tt.wantBrightness {
				t.Errorf("brightness = %q, want %q", got, tt.wantBrightness)
			}
			if tt.multi {
				if got := readAttr(t, root, "rgb", "multi_intensity"); got != tt.wantIntensity {
					t.Errorf("multi_intensity = %q, want %q", got, tt.wantIntensity)
				}
			}
		})
	}
}

func TestSysfs_SetPattern(t *testing.T) {
	root := fakeLED(t, "sys", false)
	s := newSysfs(root, "sys")

	for pattern, want := range map[string]string{
		"solid":     "default-on",
		"blink":     "heartbeat",
		"heartbeat": "heartbeat",
		"timer":     "timer",
	} {
		if err := s.SetPattern(pattern); err != nil {
			t.Fatalf("SetPattern(%q) error = %v", pattern, err)
		}
		if got := readAttr(t, root, "sys", "trigger"); got != want {
			t.Errorf("SetPattern(%q) trigger = %q, want %q", pattern, got, want)
		}
	}

	if err := s.SetPattern(""); err == nil {
		t.Error("expected error for empty pattern")
	}
}

func TestBoardLED(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"FriendlyElec NanoPC-T6", "usr_led"},
		{"Orange Pi 5 Plus", "green_led"},
		{"Raspberry Pi 4 Model B Rev 1.4", "ACT"},
		{"unknown", ""},
	}
	for _, tt := range tests {
		if got := boardLED(tt.model); got != tt.want {
			t.Errorf("boardLED(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestColor(t *testing.T) {
	if !Off.IsOff() {
		t.Error("Off.IsOff() = false")
	}
	c := Color{R: 3, G: 9, B: 4}
	if c.Max() != 9 {
		t.Errorf("Max() = %d, want 9", c.Max())
	}
	if c.String() != "#030904" {
		t.Errorf("String() = %q", c.String())
	}
}

func TestNoop(t *testing.T) {
	n := newNoop(nil)
	if err := n.SetColor(Red(32)); err != nil {
		t.Fatal(err)
	}
	if n.Last() != Red(32) {
		t.Errorf("Last() = %v", n.Last())
	}
	if n.Name() != "noop" {
		t.Errorf("Name() = %q", n.Name())
	}
}

type recordingStatus struct {
	mu       sync.Mutex
	patterns []string
}

func (r *recordingStatus) SetPattern(p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
	return nil
}

func (r *recordingStatus) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.patterns) == 0 {
		return ""
	}
	return r.patterns[len(r.patterns)-1]
}

func TestStatusManager(t *testing.T) {
	bus := events.New()
	status := &recordingStatus{}
	m := NewStatusManager(status, bus, nil)
	m.Start()
	defer m.Stop()

	if status.last() != "heartbeat" {
		t.Fatalf("initial pattern = %q, want heartbeat", status.last())
	}

	waitFor := func(want string) {
		t.Helper()
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if status.last() == want {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("pattern = %q, want %q", status.last(), want)
	}

	bus.Publish(events.RecipientChangedEvent{Transport: "tcp", State: "has_client", RecipientID: 1})
	waitFor("solid")

	bus.Publish(events.RecipientChangedEvent{Transport: "tcp", State: "listening"})
	waitFor("heartbeat")
}
