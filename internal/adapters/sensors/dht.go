package sensors

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Pulse widths from the AM2302 datasheet: a zero bit holds the line high
// for 26-28us, a one bit for about 70us. Anything past the threshold
// reads as a one.
const (
	dhtStartLow     = 1100 * time.Microsecond
	dhtBitThreshold = 50 * time.Microsecond
	dhtQuiet        = 5 * time.Millisecond
	dhtMaxPulses    = 100
)

// DHT reads an AM2302/DHT22 humidity sensor on a GPIO pin. The one-wire
// protocol is timing critical and single reads fail routinely from
// userspace, so Read retries internally before reporting failure.
type DHT struct {
	pin        gpio.PinIO
	retries    int
	retryDelay time.Duration
}

// OpenDHT resolves pinName (a gpioreg name like "GPIO4").
func OpenDHT(pinName string, retries int, retryDelay time.Duration) (*DHT, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", pinName)
	}
	if retries < 1 {
		retries = 1
	}
	return &DHT{pin: pin, retries: retries, retryDelay: retryDelay}, nil
}

// Read returns relative humidity in percent. It retries transient frame
// errors (short captures, checksum mismatches) up to the configured
// attempt budget.
func (d *DHT) Read() (float64, error) {
	var lastErr error
	for attempt := 0; attempt < d.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(d.retryDelay)
		}
		humidity, err := d.readOnce()
		if err == nil {
			return humidity, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("dht read failed after %d attempts: %w", d.retries, lastErr)
}

func (d *DHT) readOnce() (float64, error) {
	// Wake the sensor: hold the line low past 1ms, then release it and
	// listen. The pull-up idles the line high between frames.
	if err := d.pin.Out(gpio.Low); err != nil {
		return 0, fmt.Errorf("start signal: %w", err)
	}
	time.Sleep(dhtStartLow)
	if err := d.pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return 0, fmt.Errorf("release line: %w", err)
	}

	pulses, err := capture(d.pin, dhtMaxPulses, dhtQuiet)
	if err != nil {
		return 0, err
	}
	humidity, _, err := decodeFrame(pulses)
	return humidity, err
}

type pulse struct {
	level gpio.Level
	width time.Duration
}

// capture busy-polls the line, recording how long each level was held,
// until the line idles high for longer than quiet. No pulse in a real
// frame comes anywhere near the quiet window, so a line pinned low that
// long is a dead sensor or a wiring fault and ends the capture with an
// error.
func capture(pin gpio.PinIO, maxPulses int, quiet time.Duration) ([]pulse, error) {
	pulses := make([]pulse, 0, maxPulses)
	level := pin.Read()
	levelStart := time.Now()
	for len(pulses) < maxPulses {
		cur := pin.Read()
		if cur != level {
			now := time.Now()
			pulses = append(pulses, pulse{level: level, width: now.Sub(levelStart)})
			level = cur
			levelStart = now
			continue
		}
		if time.Since(levelStart) > quiet {
			if level == gpio.Low {
				return nil, fmt.Errorf("line held low past %s", quiet)
			}
			break
		}
	}
	return pulses, nil
}

// decodeFrame interprets a captured frame as the sensor's 40 data bits:
// humidity high/low byte, temperature high/low byte, checksum. The last
// 40 high pulses before the line went quiet carry the bits; everything
// before them is the wake-up preamble.
func decodeFrame(pulses []pulse) (humidity, temp float64, err error) {
	highs := make([]time.Duration, 0, len(pulses))
	for _, p := range pulses {
		if p.level == gpio.High {
			highs = append(highs, p.width)
		}
	}
	if len(highs) < 40 {
		return 0, 0, fmt.Errorf("short frame: %d data pulses", len(highs))
	}
	highs = highs[len(highs)-40:]

	var data [5]byte
	for i, w := range highs {
		data[i/8] <<= 1
		if w > dhtBitThreshold {
			data[i/8] |= 1
		}
	}
	if sum := data[0] + data[1] + data[2] + data[3]; sum != data[4] {
		return 0, 0, fmt.Errorf("checksum mismatch: %#02x != %#02x", sum, data[4])
	}

	humidity = float64(uint16(data[0])<<8|uint16(data[1])) / 10.0
	temp = float64(uint16(data[2]&0x7f)<<8|uint16(data[3])) / 10.0
	if data[2]&0x80 != 0 {
		temp = -temp
	}
	if humidity > 100 {
		return 0, 0, fmt.Errorf("humidity %.1f%% out of range", humidity)
	}
	return humidity, temp, nil
}
