package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSetup(t *testing.T) {
	tests := []struct {
		name   string
		marker byte
		order  interface {
			binary.ByteOrder
			binary.AppendByteOrder
		}
	}{
		{"little endian", 'l', binary.LittleEndian},
		{"big endian", 'B', binary.BigEndian},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b []byte
			b = append(b, tt.marker, 0)
			b = tt.order.AppendUint16(b, 11)
			b = tt.order.AppendUint16(b, 0)
			b = tt.order.AppendUint16(b, 3)
			b = tt.order.AppendUint16(b, 5)
			b = append(b, 0, 0)
			b = append(b, "abc\x00"...)
			b = append(b, "12345\x00\x00\x00"...)

			req, err := ReadSetup(bytes.NewReader(b))
			require.NoError(t, err)
			assert.Equal(t, binary.ByteOrder(tt.order), req.Order)
			assert.Equal(t, uint16(11), req.Major)
			assert.Equal(t, "abc", req.AuthName)
			assert.Equal(t, []byte("12345"), req.AuthData)
		})
	}
}

func TestReadSetupBadMarker(t *testing.T) {
	_, err := ReadSetup(bytes.NewReader(make([]byte, 12)))
	assert.ErrorIs(t, err, ErrBadByteOrder)
}

func TestWriteSetupSuccess(t *testing.T) {
	info := SetupInfo{
		Release:      1,
		ResourceBase: testBase,
		ResourceMask: testMask,
		Vendor:       "xkms",
		Screen: Screen{
			Root:       testRoot,
			Width:      1920,
			Height:     1080,
			MMWidth:    510,
			MMHeight:   290,
			RootVisual: testVisual,
			RootDepth:  24,
		},
	}

	var out bytes.Buffer
	require.NoError(t, WriteSetupSuccess(&out, le, info))
	b := out.Bytes()

	assert.Equal(t, uint8(1), b[0])
	assert.Equal(t, uint16(MajorVersion), le.Uint16(b[2:]))
	assert.Equal(t, len(b)-8, int(le.Uint16(b[6:]))*4)
	assert.Equal(t, uint32(testBase), le.Uint32(b[12:]))
	assert.Equal(t, uint32(testMask), le.Uint32(b[16:]))
	assert.Equal(t, uint16(4), le.Uint16(b[24:]))
	assert.Equal(t, uint8(1), b[28], "screens")
	assert.Equal(t, "xkms", string(b[40:44]))

	screen := b[44+formatSize:]
	assert.Equal(t, uint32(testRoot), le.Uint32(screen[0:]))
	assert.Equal(t, uint16(1920), le.Uint16(screen[20:]))
	assert.Equal(t, uint16(1080), le.Uint16(screen[22:]))
	assert.Equal(t, uint32(testVisual), le.Uint32(screen[32:]))
	assert.Equal(t, uint8(24), screen[38])

	visual := screen[screenSize+depthSize:]
	assert.Equal(t, uint32(testVisual), le.Uint32(visual[0:]))
}

func TestWriteSetupFailed(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteSetupFailed(&out, binary.BigEndian, "nope"))

	b := out.Bytes()
	require.Len(t, b, 12)
	assert.Equal(t, uint8(0), b[0])
	assert.Equal(t, uint8(4), b[1])
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(b[6:]))
	assert.Equal(t, "nope", string(b[8:]))
}
