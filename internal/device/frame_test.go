package device

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmniChip/bandgame/internal/band"
)

func TestFrame_Encode(t *testing.T) {
	f := Frame{Cmd: CmdRemoved, Payload: []byte{0x07}}
	// LEN=2, CKS = 2 ^ 0x03 ^ 0x07 = 0x06
	assert.Equal(t, []byte{0xAA, 0x55, 0x02, 0x03, 0x07, 0x06}, f.Encode())
}

func TestFrameReader_RoundTrip(t *testing.T) {
	frames := []Frame{
		{Cmd: CmdFound, Payload: []byte{1}},
		{Cmd: CmdSample, Payload: SamplePayload(1, Reading{Timestamp: 42})},
		{Cmd: CmdRemoved, Payload: []byte{1}},
	}

	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(f.Encode())
	}

	fr := NewFrameReader(&buf)
	for _, want := range frames {
		got, err := fr.Next()
		require.NoError(t, err)
		assert.Equal(t, want.Cmd, got.Cmd)
		assert.Equal(t, want.Payload, got.Payload)
	}

	_, err := fr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReader_ResyncAfterGarbage(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0xAA, 0x13, 0x55, 0xFF})
	buf.Write(Frame{Cmd: CmdFound, Payload: []byte{9}}.Encode())

	got, err := NewFrameReader(&buf).Next()
	require.NoError(t, err)
	assert.Equal(t, CmdFound, got.Cmd)
	assert.Equal(t, []byte{9}, got.Payload)
}

func TestFrameReader_Checksum(t *testing.T) {
	bad := Frame{Cmd: CmdFound, Payload: []byte{1}}.Encode()
	bad[len(bad)-1] ^= 0xFF

	var buf bytes.Buffer
	buf.Write(bad)
	buf.Write(Frame{Cmd: CmdFound, Payload: []byte{2}}.Encode())

	fr := NewFrameReader(&buf)
	_, err := fr.Next()
	assert.True(t, errors.Is(err, ErrChecksum))

	got, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, got.Payload)
}

func TestIdentifiedPayload_RoundTrip(t *testing.T) {
	id := Identity{
		Name:      "Band L",
		Timestamp: 123456789,
		IDs:       IDs{Registry: 3, Vendor: 0x1209, Product: 0xB00D, Version: 2},
	}
	slot, got, err := ParseIdentified(IdentifiedPayload(5, id))
	require.NoError(t, err)
	assert.Equal(t, byte(5), slot)
	assert.Equal(t, id, got)

	_, _, err = ParseIdentified([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestSamplePayload_RoundTrip(t *testing.T) {
	r := Reading{
		Accel:     band.Raw3{2049, -12, -2049},
		Gyro:      band.Raw3{-300, 0, 70000},
		Timestamp: 987654321,
	}
	slot, got, err := ParseSample(SamplePayload(2, r))
	require.NoError(t, err)
	assert.Equal(t, byte(2), slot)
	assert.Equal(t, r, got)
}

func TestVibePayload_RoundTrip(t *testing.T) {
	slot, effect, err := ParseVibe(VibePayload(4, 0x4B8A01))
	require.NoError(t, err)
	assert.Equal(t, byte(4), slot)
	assert.Equal(t, uint64(0x4B8A01), effect)
}

func TestIDs_String(t *testing.T) {
	assert.Equal(t, "3/1209:B00D/1", IDs{Registry: 3, Vendor: 0x1209, Product: 0xB00D, Version: 1}.String())
}
