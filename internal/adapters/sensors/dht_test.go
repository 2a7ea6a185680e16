package sensors

import (
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// framePulses builds the wire trace a healthy sensor would produce for
// the given five payload bytes: wake-up preamble, then 40 bits, each a
// 50us low followed by a short (0) or long (1) high.
func framePulses(data [5]byte) []pulse {
	p := []pulse{
		{level: gpio.Low, width: 80 * time.Microsecond},
		{level: gpio.High, width: 80 * time.Microsecond},
	}
	for i := 0; i < 40; i++ {
		bit := (data[i/8] >> (7 - i%8)) & 1
		p = append(p, pulse{level: gpio.Low, width: 50 * time.Microsecond})
		w := 27 * time.Microsecond
		if bit == 1 {
			w = 70 * time.Microsecond
		}
		p = append(p, pulse{level: gpio.High, width: w})
	}
	return p
}

func checksummed(b0, b1, b2, b3 byte) [5]byte {
	return [5]byte{b0, b1, b2, b3, b0 + b1 + b2 + b3}
}

func TestDecodeFrame(t *testing.T) {
	// 65.2% RH, 24.3C.
	humidity, temp, err := decodeFrame(framePulses(checksummed(0x02, 0x8C, 0x00, 0xF3)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if humidity != 65.2 {
		t.Fatalf("expected humidity 65.2, got %f", humidity)
	}
	if temp != 24.3 {
		t.Fatalf("expected temperature 24.3, got %f", temp)
	}
}

func TestDecodeFrameNegativeTemperature(t *testing.T) {
	// Sign bit set in the temperature high byte: -10.1C.
	_, temp, err := decodeFrame(framePulses(checksummed(0x01, 0xF4, 0x80, 0x65)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if temp != -10.1 {
		t.Fatalf("expected temperature -10.1, got %f", temp)
	}
}

func TestDecodeFrameChecksumMismatch(t *testing.T) {
	data := checksummed(0x02, 0x8C, 0x00, 0xF3)
	data[4]++

	_, _, err := decodeFrame(framePulses(data))
	if err == nil || !strings.Contains(err.Error(), "checksum") {
		t.Fatalf("expected checksum error, got %v", err)
	}
}

func TestDecodeFrameShortCapture(t *testing.T) {
	full := framePulses(checksummed(0x02, 0x8C, 0x00, 0xF3))

	_, _, err := decodeFrame(full[:20])
	if err == nil || !strings.Contains(err.Error(), "short frame") {
		t.Fatalf("expected short frame error, got %v", err)
	}
}

func TestDecodeFrameHumidityOutOfRange(t *testing.T) {
	// 103.0% RH passes the checksum but is physically impossible.
	_, _, err := decodeFrame(framePulses(checksummed(0x04, 0x06, 0x00, 0xF3)))
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected out of range error, got %v", err)
	}
}

// stuckLowPin models a data line shorted to ground: no pull raises it.
type stuckLowPin struct {
	gpiotest.Pin
}

func (p *stuckLowPin) Read() gpio.Level { return gpio.Low }

func TestCaptureGivesUpOnStuckLowLine(t *testing.T) {
	errCh := make(chan error, 1)
	go func() {
		_, err := capture(&stuckLowPin{}, dhtMaxPulses, dhtQuiet)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected an error for a line that never leaves low")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("capture did not give up on a stuck low line")
	}
}

func TestCaptureIdleHighLineEndsQuiet(t *testing.T) {
	// Pull-up holds the line high, sensor never answers: empty frame,
	// no error; decode rejects it as short.
	pin := &gpiotest.Pin{N: "GPIO4", L: gpio.High}

	pulses, err := capture(pin, dhtMaxPulses, dhtQuiet)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(pulses) != 0 {
		t.Fatalf("expected no pulses from an idle line, got %d", len(pulses))
	}
}

func TestReadStuckLowLineExhaustsRetries(t *testing.T) {
	d := &DHT{pin: &stuckLowPin{}, retries: 2, retryDelay: time.Millisecond}

	_, err := d.Read()
	if err == nil {
		t.Fatalf("expected read to fail on a stuck low line")
	}
	if !strings.Contains(err.Error(), "line held low") {
		t.Fatalf("expected the stuck line diagnosis, got %v", err)
	}
}
