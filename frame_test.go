package mayus

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameLayout(t *testing.T) {
	f := &Frame{Kind: KindUpper, Flags: FlagCountChanged, Seq: 0x01020304, Payload: []byte("HI\n")}
	buf, err := AppendFrame(nil, f)
	require.NoError(t, err)
	assert.Equal(t, []byte{FrameVersion, 'U', 1, 1, 2, 3, 4, 'H', 'I', '\n', 0}, buf)
	assert.Equal(t, len(buf), f.Size())

	got, err := DecodeFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestFrameEmptyPayload(t *testing.T) {
	buf, err := AppendFrame(nil, &Frame{Kind: KindLine, Seq: 7})
	require.NoError(t, err)
	got, err := DecodeFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, KindLine, got.Kind)
	assert.Empty(t, got.Payload)
}

func TestFrameMaxPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{'a'}, MaxPayloadSize)
	buf, err := AppendFrame(nil, &Frame{Kind: KindLine, Payload: payload})
	require.NoError(t, err)
	assert.Len(t, buf, MaxDatagramSize)

	_, err = AppendFrame(nil, &Frame{Kind: KindLine, Payload: append(payload, 'a')})
	assert.True(t, errors.Is(err, ErrLineTooLong))
}

func TestDecodeFrameRejects(t *testing.T) {
	good, err := AppendFrame(nil, &Frame{Kind: KindName, Payload: []byte("a.txt")})
	require.NoError(t, err)

	badVersion := append([]byte(nil), good...)
	badVersion[0] = 9
	badKind := append([]byte(nil), good...)
	badKind[1] = 'Z'
	noNul := good[:len(good)-1]

	for name, b := range map[string][]byte{
		"short":   good[:frameHeaderSize],
		"version": badVersion,
		"kind":    badKind,
		"no nul":  noNul,
	} {
		_, err := DecodeFrame(b)
		assert.True(t, errors.Is(err, ErrProtocol), name)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "assign", KindAssign.String())
	assert.Equal(t, "kind(0x5a)", Kind('Z').String())
}
