// Package buzzer contains the core domain types of the buzzer.
//
// It defines the Tone to play, the PulseSequence a tone is encoded into, the
// activation State shared between the control channel and the scheduler,
// and the Session of a control connection.
package buzzer
