package serialport

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/hardware"
)

// Wire constants of the coprocessor protocol:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD and payload, CKS is the XOR of LEN, CMD and payload.
const (
	sof0 = 0xAA
	sof1 = 0x55

	cmdClock = 0x20
	cmdPlay  = 0x21
	cmdAck   = 0x06
	cmdNak   = 0x15

	headerSize  = 4
	maxPayload  = 0xFF - 1
	runSize     = 9
	runsPerPlay = maxPayload / runSize

	flagHighFirst = 0x01
)

var (
	// errBadFrame is returned for malformed replies.
	errBadFrame = errors.New("malformed coprocessor frame")
	// errChecksum is returned when a reply checksum does not match.
	errChecksum = errors.New("coprocessor frame checksum mismatch")
)

// frame is one decoded protocol frame.
type frame struct {
	cmd     byte
	payload []byte
}

// encode renders the frame on the wire.
func (f frame) encode() []byte {
	length := byte(len(f.payload) + 1)
	cks := length ^ f.cmd

	out := make([]byte, 0, headerSize+len(f.payload)+1)
	out = append(out, sof0, sof1, length, f.cmd)

	for _, b := range f.payload {
		cks ^= b
		out = append(out, b)
	}

	return append(out, cks)
}

// decodeFrame parses a complete frame from b.
func decodeFrame(b []byte) (frame, error) {
	if len(b) < headerSize+1 || b[0] != sof0 || b[1] != sof1 {
		return frame{}, errBadFrame
	}

	length := int(b[2])
	if length < 1 || len(b) != 3+length+1 {
		return frame{}, fmt.Errorf("%w: length %d for %d bytes", errBadFrame, length, len(b))
	}

	cks := b[2]
	for _, c := range b[3 : 3+length] {
		cks ^= c
	}

	if cks != b[len(b)-1] {
		return frame{}, errChecksum
	}

	return frame{cmd: b[3], payload: append([]byte(nil), b[4:3+length]...)}, nil
}

// playFrames splits seq into PLAY frames of at most runsPerPlay runs each.
func playFrames(seq buzzer.PulseSequence) []frame {
	runs := hardware.Runs(seq)

	var frames []frame

	for len(runs) > 0 {
		n := min(len(runs), runsPerPlay)

		payload := make([]byte, 0, n*runSize)
		for _, r := range runs[:n] {
			payload = appendRun(payload, r)
		}

		frames = append(frames, frame{cmd: cmdPlay, payload: payload})
		runs = runs[n:]
	}

	return frames
}

// appendRun encodes one run as flags, first width, second width, count.
func appendRun(b []byte, r hardware.Run) []byte {
	var flags byte
	if r.Pair[0].Level == buzzer.High {
		flags |= flagHighFirst
	}

	b = append(b, flags)
	b = binary.BigEndian.AppendUint16(b, uint16(r.Pair[0].Ticks))
	b = binary.BigEndian.AppendUint16(b, uint16(r.Pair[1].Ticks))

	return binary.BigEndian.AppendUint32(b, uint32(r.Count))
}
