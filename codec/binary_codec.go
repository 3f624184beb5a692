package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"editor-bridge/message"
)

var (
	ErrTruncated   = errors.New("BinaryCodec: truncated message")
	ErrNotRPC      = errors.New("BinaryCodec: v must be *RPCMessage")
	ErrFieldTooBig = errors.New("BinaryCodec: field exceeds length prefix")
)

// BinaryCodec lays an RPCMessage out as length-prefixed fields:
//
//	u16 len | ServiceMethod | u8 Status | u32 len | Payload | u16 len | Error
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return nil, ErrNotRPC
	}
	if len(msg.ServiceMethod) > math.MaxUint16 || len(msg.Error) > math.MaxUint16 ||
		uint64(len(msg.Payload)) > math.MaxUint32 {
		return nil, ErrFieldTooBig
	}

	total := 2 + len(msg.ServiceMethod) + 1 + 4 + len(msg.Payload) + 2 + len(msg.Error)
	buf := make([]byte, total)

	offset := 0
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(msg.ServiceMethod)))
	offset += 2
	offset += copy(buf[offset:], msg.ServiceMethod)

	buf[offset] = byte(msg.Status)
	offset++

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(msg.Payload)))
	offset += 4
	offset += copy(buf[offset:], msg.Payload)

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(msg.Error)))
	offset += 2
	copy(buf[offset:], msg.Error)
	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return ErrNotRPC
	}

	r := reader{data: data}
	serviceMethod := r.next(int(r.u16()))
	status := r.next(1)
	payloadLen := r.u32()
	if uint64(payloadLen) > uint64(len(data)) {
		return fmt.Errorf("%w: payload length %d", ErrTruncated, payloadLen)
	}
	payload := r.next(int(payloadLen))
	errMsg := r.next(int(r.u16()))
	if r.short {
		return ErrTruncated
	}
	if r.off != len(data) {
		return fmt.Errorf("BinaryCodec: %d trailing bytes", len(data)-r.off)
	}

	msg.ServiceMethod = string(serviceMethod)
	msg.Status = message.Status(status[0])
	msg.Payload = append([]byte(nil), payload...)
	msg.Error = string(errMsg)
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

// reader walks a byte slice; once a read runs past the end it stays short and
// returns empty slices, so the caller checks once at the end.
type reader struct {
	data  []byte
	off   int
	short bool
}

func (r *reader) next(n int) []byte {
	if r.short || n < 0 || r.off+n > len(r.data) {
		r.short = true
		return make([]byte, max(n, 0))
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u16() uint16 {
	return binary.BigEndian.Uint16(r.next(2))
}

func (r *reader) u32() uint32 {
	return binary.BigEndian.Uint32(r.next(4))
}
