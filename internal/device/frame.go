package device

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/OmniChip/bandgame/internal/band"
)

// Hub frame layout:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD plus payload. CKS is the XOR of LEN, CMD and payload.
const (
	sof0 = 0xAA
	sof1 = 0x55

	maxPayload = 0xFF - 1
)

// Hub commands.
const (
	CmdFound      byte = 0x01
	CmdIdentified byte = 0x02
	CmdRemoved    byte = 0x03
	CmdSample     byte = 0x04
	CmdVibe       byte = 0x10
)

var (
	// ErrChecksum reports a frame whose checksum did not match.
	ErrChecksum = errors.New("frame checksum mismatch")
	// ErrShortPayload reports a payload too short for its command.
	ErrShortPayload = errors.New("frame payload too short")
)

// Frame is one hub message.
type Frame struct {
	Cmd     byte
	Payload []byte
}

// Encode builds the on-wire representation. Payloads longer than the LEN
// byte allows are truncated.
func (f Frame) Encode() []byte {
	payload := f.Payload
	if len(payload) > maxPayload {
		payload = payload[:maxPayload]
	}

	length := byte(len(payload) + 1)
	cks := length ^ f.Cmd
	for _, b := range payload {
		cks ^= b
	}

	out := make([]byte, 0, len(payload)+5)
	out = append(out, sof0, sof1, length, f.Cmd)
	out = append(out, payload...)
	return append(out, cks)
}

// FrameReader decodes frames from a byte stream, resynchronizing on the
// start-of-frame marker after garbage or a bad checksum.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// Next returns the next frame. A frame with a bad checksum is consumed and
// reported as ErrChecksum; callers may keep reading.
func (fr *FrameReader) Next() (Frame, error) {
	if err := fr.sync(); err != nil {
		return Frame{}, err
	}

	length, err := fr.r.ReadByte()
	if err != nil {
		return Frame{}, err
	}
	if length == 0 {
		return Frame{}, ErrShortPayload
	}

	body := make([]byte, int(length)+1) // CMD + payload + CKS
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return Frame{}, err
	}

	cks := length
	for _, b := range body[:len(body)-1] {
		cks ^= b
	}
	if cks != body[len(body)-1] {
		return Frame{}, ErrChecksum
	}

	return Frame{Cmd: body[0], Payload: body[1 : len(body)-1]}, nil
}

// sync discards bytes up to and including SOF0 SOF1.
func (fr *FrameReader) sync() error {
	prev := byte(0)
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return err
		}
		if prev == sof0 && b == sof1 {
			return nil
		}
		prev = b
	}
}

// IdentifiedPayload encodes an identification message for slot.
func IdentifiedPayload(slot byte, id Identity) []byte {
	p := make([]byte, 17, 17+len(id.Name))
	p[0] = slot
	binary.LittleEndian.PutUint16(p[1:], id.IDs.Registry)
	binary.LittleEndian.PutUint16(p[3:], id.IDs.Vendor)
	binary.LittleEndian.PutUint16(p[5:], id.IDs.Product)
	binary.LittleEndian.PutUint16(p[7:], id.IDs.Version)
	binary.LittleEndian.PutUint64(p[9:], uint64(id.Timestamp))
	return append(p, id.Name...)
}

// ParseIdentified decodes an identification payload.
func ParseIdentified(p []byte) (slot byte, id Identity, err error) {
	if len(p) < 17 {
		return 0, Identity{}, fmt.Errorf("identified: %w", ErrShortPayload)
	}
	id.IDs = IDs{
		Registry: binary.LittleEndian.Uint16(p[1:]),
		Vendor:   binary.LittleEndian.Uint16(p[3:]),
		Product:  binary.LittleEndian.Uint16(p[5:]),
		Version:  binary.LittleEndian.Uint16(p[7:]),
	}
	id.Timestamp = band.Timestamp(binary.LittleEndian.Uint64(p[9:]))
	id.Name = string(p[17:])
	return p[0], id, nil
}

// SamplePayload encodes one reading for slot.
func SamplePayload(slot byte, r Reading) []byte {
	p := make([]byte, 33)
	p[0] = slot
	binary.LittleEndian.PutUint64(p[1:], uint64(r.Timestamp))
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(p[9+4*i:], uint32(r.Accel[i]))
		binary.LittleEndian.PutUint32(p[21+4*i:], uint32(r.Gyro[i]))
	}
	return p
}

// ParseSample decodes a sample payload.
func ParseSample(p []byte) (slot byte, r Reading, err error) {
	if len(p) < 33 {
		return 0, Reading{}, fmt.Errorf("sample: %w", ErrShortPayload)
	}
	r.Timestamp = band.Timestamp(binary.LittleEndian.Uint64(p[1:]))
	for i := 0; i < 3; i++ {
		r.Accel[i] = int32(binary.LittleEndian.Uint32(p[9+4*i:]))
		r.Gyro[i] = int32(binary.LittleEndian.Uint32(p[21+4*i:]))
	}
	return p[0], r, nil
}

// VibePayload encodes a waveform command for slot.
func VibePayload(slot byte, effect uint64) []byte {
	p := make([]byte, 9)
	p[0] = slot
	binary.LittleEndian.PutUint64(p[1:], effect)
	return p
}

// ParseVibe decodes a waveform command.
func ParseVibe(p []byte) (slot byte, effect uint64, err error) {
	if len(p) < 9 {
		return 0, 0, fmt.Errorf("vibe: %w", ErrShortPayload)
	}
	return p[0], binary.LittleEndian.Uint64(p[1:]), nil
}
