package statusled

import (
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// recordingPin captures every level written so a test can assert the
// blink sequence.
type recordingPin struct {
	gpiotest.Pin
	mu     sync.Mutex
	levels []gpio.Level
}

func (p *recordingPin) Out(l gpio.Level) error {
	p.mu.Lock()
	p.levels = append(p.levels, l)
	p.mu.Unlock()
	return p.Pin.Out(l)
}

func (p *recordingPin) snapshot() []gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gpio.Level(nil), p.levels...)
}

func TestBlinkPulsesHighThenLow(t *testing.T) {
	pin := &recordingPin{}
	led := &LED{pin: pin}

	led.Blink(time.Millisecond)

	got := pin.snapshot()
	want := []gpio.Level{gpio.High, gpio.Low}
	if len(got) != len(want) {
		t.Fatalf("expected %d pin writes, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pin write %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestCloseTurnsLEDOff(t *testing.T) {
	pin := &recordingPin{}
	led := &LED{pin: pin}

	if err := led.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := pin.snapshot(); len(got) != 1 || got[0] != gpio.Low {
		t.Fatalf("expected a single low write, got %v", got)
	}
}

func TestNilLEDIsInert(t *testing.T) {
	var led *LED
	led.Blink(time.Millisecond)
	if err := led.Close(); err != nil {
		t.Fatalf("close on nil led: %v", err)
	}
}

func TestOpenWithoutPinName(t *testing.T) {
	led, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if led != nil {
		t.Fatalf("expected nil led for empty pin name")
	}
}

func TestOpenUnknownPin(t *testing.T) {
	if _, err := Open("no-such-pin"); err == nil {
		t.Fatalf("expected error for unregistered pin")
	}
}
