// Package tone encodes a Tone into the pulse sequence that drives the pin.
//
// The encoder works in integer counter ticks. The period is truncated to a
// whole number of ticks, so the produced pitch is an approximation of the
// requested one; Actual reports the pitch really emitted.
package tone
