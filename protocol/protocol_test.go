package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	header := Header{
		CodecType: CodecTypeJSON,
		MsgType:   MsgTypeRequest,
		Seq:       12345,
		BodyLen:   11,
	}
	body := []byte("hello world")

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &header, body))
	require.Equal(t, HeaderSize+len(body), buf.Len())

	decodedHeader, decodedBody, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, header, *decodedHeader)
	require.Equal(t, body, decodedBody)
}

func TestEncodeIgnoresStaleBodyLen(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{MsgType: MsgTypeResponse, Seq: 7, BodyLen: 999}, []byte("abc")))

	h, body, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, uint32(3), h.BodyLen)
	require.Equal(t, "abc", string(body))
}

func TestDecodeInvalidMagic(t *testing.T) {
	invalidHeader := []byte{0x00, 0x00, 0x00, Version, CodecTypeJSON, byte(MsgTypeRequest), 0x00, 0x00, 0x30, 0x39, 0x00, 0x00, 0x00, 0x0B}
	var buf bytes.Buffer
	buf.Write(invalidHeader)
	buf.Write([]byte("hello world"))

	_, _, err := Decode(&buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid magic number")
}

func TestDecodeEmptyBody(t *testing.T) {
	header := Header{
		CodecType: CodecTypeJSON,
		MsgType:   MsgTypeHeartbeat,
		Seq:       12345,
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &header, nil))

	decodedHeader, decodedBody, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, MsgTypeHeartbeat, decodedHeader.MsgType)
	require.Zero(t, decodedHeader.BodyLen)
	require.Empty(t, decodedBody)
}

func TestDecodeInvalidVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{
		MagicNumber, MagicByte2, MagicByte3,
		0xFF,
		CodecTypeJSON,
		byte(MsgTypeRequest),
		0, 0, 0, 1,
		0, 0, 0, 0,
	})

	_, _, err := Decode(&buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported version")
}

func TestDecodeUnknownMessageType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{MagicNumber, MagicByte2, MagicByte3, Version, CodecTypeBinary, 9, 0, 0, 0, 1, 0, 0, 0, 0})

	_, _, err := Decode(&buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported message type")
}

func TestDecodeRejectsOversizedBody(t *testing.T) {
	frame := []byte{MagicNumber, MagicByte2, MagicByte3, Version, CodecTypeJSON, byte(MsgTypeResponse), 0, 0, 0, 1, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(frame[10:14], MaxBodyLen+1)

	_, _, err := Decode(bytes.NewReader(frame))
	require.True(t, errors.Is(err, ErrBodyTooLarge), "got %v", err)
}

func TestDecodeTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{MsgType: MsgTypeRequest, Seq: 1}, []byte("0123456789")))
	truncated := buf.Bytes()[:HeaderSize+4]

	_, _, err := Decode(bytes.NewReader(truncated))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeLargeBody(t *testing.T) {
	var buf bytes.Buffer

	largeBody := make([]byte, 1024*1024)
	for i := range largeBody {
		largeBody[i] = byte(i % 256)
	}

	header := &Header{
		CodecType: CodecTypeBinary,
		MsgType:   MsgTypeRequest,
		Seq:       999,
	}
	require.NoError(t, Encode(&buf, header, largeBody))

	_, decodedBody, err := Decode(&buf)
	require.NoError(t, err)
	require.True(t, bytes.Equal(decodedBody, largeBody))
}

func TestDecodeBackToBackFrames(t *testing.T) {
	var buf bytes.Buffer
	for seq := uint32(1); seq <= 3; seq++ {
		require.NoError(t, Encode(&buf, &Header{MsgType: MsgTypeResponse, Seq: seq}, []byte{byte(seq)}))
	}
	for seq := uint32(1); seq <= 3; seq++ {
		h, body, err := Decode(&buf)
		require.NoError(t, err)
		require.Equal(t, seq, h.Seq)
		require.Equal(t, []byte{byte(seq)}, body)
	}
}
