package codec

import (
	"testing"

	"editor-bridge/message"

	"github.com/stretchr/testify/require"
)

var sampleMessages = []*message.RPCMessage{
	{
		ServiceMethod: "FoliageService.scatter_foliage",
		Payload:       []byte(`{"mesh_path":"/Game/SM_Fern","count":10}`),
	},
	{
		ServiceMethod: "SkeletonService.add_socket",
		Status:        message.StatusRejected,
		Error:         "/Game/SK_Foo is a Skeleton asset; sockets belong on a SkeletalMesh",
	},
	{Status: message.StatusInvalidRequest, Error: "unknown method NiagaraService.explode"},
	{},
}

func TestCodecsRoundTrip(t *testing.T) {
	for _, cdc := range []Codec{&JSONCodec{}, &BinaryCodec{}} {
		for _, original := range sampleMessages {
			data, err := cdc.Encode(original)
			require.NoError(t, err, cdc.Type().String())

			var decoded message.RPCMessage
			require.NoError(t, cdc.Decode(data, &decoded), cdc.Type().String())

			require.Equal(t, original.ServiceMethod, decoded.ServiceMethod)
			require.Equal(t, original.Status, decoded.Status)
			require.Equal(t, original.Error, decoded.Error)
			require.Equal(t, string(original.Payload), string(decoded.Payload))
		}
	}
}

func TestBinaryCodecTruncated(t *testing.T) {
	cdc := &BinaryCodec{}
	data, err := cdc.Encode(sampleMessages[0])
	require.NoError(t, err)

	for _, n := range []int{0, 1, 5, len(data) / 2, len(data) - 1} {
		var decoded message.RPCMessage
		require.ErrorIs(t, cdc.Decode(data[:n], &decoded), ErrTruncated, "cut at %d", n)
	}
}

func TestBinaryCodecTrailingBytes(t *testing.T) {
	cdc := &BinaryCodec{}
	data, err := cdc.Encode(sampleMessages[1])
	require.NoError(t, err)

	var decoded message.RPCMessage
	require.Error(t, cdc.Decode(append(data, 0xFF), &decoded))
}

func TestBinaryCodecRejectsOtherTypes(t *testing.T) {
	cdc := &BinaryCodec{}
	_, err := cdc.Encode("not a message")
	require.ErrorIs(t, err, ErrNotRPC)
	require.ErrorIs(t, cdc.Decode([]byte{0, 0}, &struct{}{}), ErrNotRPC)
}

func TestBinaryCodecFieldTooBig(t *testing.T) {
	big := make([]byte, 1<<16)
	_, err := (&BinaryCodec{}).Encode(&message.RPCMessage{ServiceMethod: string(big)})
	require.ErrorIs(t, err, ErrFieldTooBig)
}

func TestParseCodecType(t *testing.T) {
	ct, err := ParseCodecType("Binary")
	require.NoError(t, err)
	require.Equal(t, CodecTypeBinary, ct)
	require.Equal(t, CodecTypeBinary, GetCodec(ct).Type())

	ct, err = ParseCodecType("")
	require.NoError(t, err)
	require.Equal(t, CodecTypeJSON, ct)

	_, err = ParseCodecType("msgpack")
	require.Error(t, err)
}
