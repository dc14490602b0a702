// Package sysfspwm drives a buzzer from a Linux PWM channel
// (/sys/class/pwm/pwmchipN/pwmM).
//
// Each run of identical pulse pairs becomes one PWM setting: the period is
// the pair width and the duty cycle is the high pulse. The channel is enabled
// for the run length and disabled afterwards, so Transmit blocks for the
// real emission time.
package sysfspwm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/hardware"
)

// exportSettle is how long udev gets to create the channel directory after export.
const exportSettle = 50 * time.Millisecond

// Transmitter drives one exported PWM channel.
type Transmitter struct {
	hardware.Owner

	chip     string
	channel  int
	tickRate uint32

	// sleep is time.Sleep, replaced in tests.
	sleep func(time.Duration)
}

// Open exports channel on chip if needed and returns a transmitter.
func Open(chip string, channel int, tickRate uint32) (*Transmitter, error) {
	t := &Transmitter{
		chip:     filepath.Clean(chip),
		channel:  channel,
		tickRate: tickRate,
		sleep:    time.Sleep,
	}

	if err := t.export(); err != nil {
		return nil, err
	}

	if err := t.write("polarity", "normal"); err != nil {
		return nil, err
	}

	if err := t.write("enable", "0"); err != nil {
		return nil, err
	}

	return t, nil
}

// CounterClock returns the tick rate pulses are expressed in.
func (t *Transmitter) CounterClock() (uint32, error) {
	return t.tickRate, nil
}

// Transmit plays every run of seq and leaves the channel disabled.
func (t *Transmitter) Transmit(seq buzzer.PulseSequence) (err error) {
	end, err := t.Begin()
	if err != nil {
		return err
	}
	defer end()

	defer func() {
		if disableErr := t.write("enable", "0"); err == nil {
			err = disableErr
		}
	}()

	for _, run := range hardware.Runs(seq) {
		high, low := run.Pair[0].Ticks, run.Pair[1].Ticks
		if run.Pair[0].Level != buzzer.High {
			high, low = low, high
		}

		period := t.toNanos(uint64(high) + uint64(low))
		duty := t.toNanos(uint64(high))

		// Shrink duty first so the kernel never sees duty > period.
		if err = t.write("duty_cycle", "0"); err != nil {
			return err
		}

		if err = t.write("period", strconv.FormatUint(period, 10)); err != nil {
			return err
		}

		if err = t.write("duty_cycle", strconv.FormatUint(duty, 10)); err != nil {
			return err
		}

		if err = t.write("enable", "1"); err != nil {
			return err
		}

		t.sleep(time.Duration(period * uint64(run.Count)))
	}

	return nil
}

// Close disables and unexports the channel.
func (t *Transmitter) Close() error {
	if !t.MarkClosed() {
		return nil
	}

	return errors.Join(
		t.write("enable", "0"),
		writeAttr(filepath.Join(t.chip, "unexport"), strconv.Itoa(t.channel)),
	)
}

// export makes the channel directory available.
func (t *Transmitter) export() error {
	if _, err := os.Stat(t.channelDir()); err == nil {
		return nil
	}

	if err := writeAttr(filepath.Join(t.chip, "export"), strconv.Itoa(t.channel)); err != nil {
		return fmt.Errorf("export pwm%d: %w", t.channel, err)
	}

	t.sleep(exportSettle)

	if _, err := os.Stat(t.channelDir()); err != nil {
		return fmt.Errorf("export pwm%d: %w", t.channel, err)
	}

	return nil
}

// toNanos converts ticks to nanoseconds.
func (t *Transmitter) toNanos(ticks uint64) uint64 {
	return ticks * uint64(time.Second) / uint64(t.tickRate)
}

// channelDir returns the sysfs directory of the channel.
func (t *Transmitter) channelDir() string {
	return filepath.Join(t.chip, "pwm"+strconv.Itoa(t.channel))
}

// write sets a channel attribute.
func (t *Transmitter) write(attr, value string) error {
	if err := writeAttr(filepath.Join(t.channelDir(), attr), value); err != nil {
		return fmt.Errorf("pwm%d %s: %w", t.channel, attr, err)
	}

	return nil
}

// writeAttr writes value into an existing sysfs attribute file.
func writeAttr(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}

	n, err := f.WriteString(value)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return err
	}

	if n < len(value) {
		return io.ErrShortWrite
	}

	return nil
}
