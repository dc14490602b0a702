// Package hardware defines the pulse-transmit primitive the playback driver
// owns, plus the helpers backends share.
//
// Backends live in sub-packages: sim (timed simulation), serialport (pulse
// coprocessor over a serial line), wavfile (offline WAV rendering) and
// sysfspwm (Linux PWM class devices).
package hardware
