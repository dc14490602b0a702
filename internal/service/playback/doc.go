// Package playback owns the transmit resource and plays tones on it.
//
// A Driver claims its Transmitter on construction, so the pin has exactly one
// owner for the life of the process. Play blocks the caller for the whole
// note; there is no cancellation once a note has started.
package playback
