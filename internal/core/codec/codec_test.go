package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-edgeproxy/pkg/types"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	envs := []Envelope{
		&PlayerPacket{Conn: 3, Payload: []byte{0x01, 0x02}},
		&BroadcastCommand{Mode: types.ModeUnicast, Target: 9, Payload: []byte("hi")},
		&BroadcastCommand{Mode: types.ModeChannel, Channel: "party", Exclude: 2, Payload: []byte("c")},
		&BroadcastCommand{Mode: types.ModeGlobal, Payload: []byte("g")},
		&BroadcastCommand{Mode: types.ModeRegional, Center: types.Point{-1.5, 64, 2e6}, Radius: 10, Payload: []byte("r")},
		&PositionUpdate{Conn: 1, Point: types.Point{1, -2, 3.25}},
		&ConnectionLifecycle{Conn: 4, Event: types.EventShutdown},
		&ChannelControl{Op: types.ChannelSubscribe, Conn: 4, Channel: "guild"},
		&ChannelControl{Op: types.ChannelRemove, Channel: "guild", Payload: []byte("bye")},
		&ChannelControl{Op: types.ChannelAdd, Channel: "npc/7", Payload: []byte("despawn")},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	for _, env := range envs {
		require.NoError(t, w.WriteEnvelope(env))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, int64(buf.Len()), w.BytesWritten())

	r := NewReader(&buf, 0)
	for _, want := range envs {
		got, err := r.ReadEnvelope()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := r.ReadEnvelope()
	assert.ErrorIs(t, err, io.EOF)
}

// TestDecode_ZeroCopy payload 直接引用帧缓冲区
func TestDecode_ZeroCopy(t *testing.T) {
	body := AppendBody(nil, &BroadcastCommand{Mode: types.ModeGlobal, Payload: []byte("abcdef")})

	env, err := DecodeBody(body)
	require.NoError(t, err)
	cmd := env.(*BroadcastCommand)

	idx := bytes.Index(body, []byte("abcdef"))
	require.GreaterOrEqual(t, idx, 0)
	assert.Same(t, &body[idx], &cmd.Payload[0])
}

// TestReader_UnknownKindRecoverable 未知类型不影响后续帧
func TestReader_UnknownKindRecoverable(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(varint.ToUvarint(4))
	buf.Write([]byte{99, 1, 2, 3})
	buf.Write(AppendEnvelope(nil, &PositionUpdate{Conn: 5, Point: types.Point{1, 1, 1}}))

	r := NewReader(&buf, 0)
	_, err := r.ReadEnvelope()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)

	var uk *UnknownKindError
	require.True(t, errors.As(err, &uk))
	assert.Equal(t, Kind(99), uk.Kind)

	env, err := r.ReadEnvelope()
	require.NoError(t, err)
	assert.Equal(t, &PositionUpdate{Conn: 5, Point: types.Point{1, 1, 1}}, env)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"empty", nil},
		{"invalid mode", AppendBody(nil, &BroadcastCommand{Mode: 9})},
		{"missing mode", []byte{byte(KindBroadcast)}},
		{"player packet without conn", AppendBody(nil, &PlayerPacket{Payload: []byte("x")})},
		{"lifecycle bad event", AppendBody(nil, &ConnectionLifecycle{Conn: 1, Event: 42})},
		{"channel without name", AppendBody(nil, &ChannelControl{Op: types.ChannelSubscribe, Conn: 1})},
		{"subscribe without conn", AppendBody(nil, &ChannelControl{Op: types.ChannelSubscribe, Channel: "a"})},
		{"unsubscribe without conn", AppendBody(nil, &ChannelControl{Op: types.ChannelUnsubscribe, Channel: "a"})},
		{"unknown channel op", AppendBody(nil, &ChannelControl{Op: 9, Conn: 1, Channel: "a"})},
		{"truncated field", []byte{byte(KindPlayerPacket), 0x12, 0x05, 'a'}},
		{"wrong wire type", protowire.AppendVarint(
			protowire.AppendTag([]byte{byte(KindPlayerPacket)}, 2, protowire.VarintType), 7)},
		{"bad tag", []byte{byte(KindPosition), 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBody(tt.body)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	body := AppendBody(nil, &PlayerPacket{Conn: 2, Payload: []byte("p")})
	body = protowire.AppendTag(body, 15, protowire.BytesType)
	body = protowire.AppendBytes(body, []byte("future"))

	env, err := DecodeBody(body)
	require.NoError(t, err)
	assert.Equal(t, &PlayerPacket{Conn: 2, Payload: []byte("p")}, env)
}

func TestReader_FrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(varint.ToUvarint(1 << 20))

	_, err := NewReader(&buf, 1024).ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	w := NewWriter(io.Discard, 16)
	err = w.WriteEnvelope(&PlayerPacket{Conn: 1, Payload: make([]byte, 64)})
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReader_Truncated(t *testing.T) {
	frame := AppendEnvelope(nil, &PlayerPacket{Conn: 1, Payload: []byte("hello")})

	_, err := NewReader(bytes.NewReader(frame[:len(frame)-2]), 0).ReadFrame()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// 长度前缀中途断开
	_, err = NewReader(bytes.NewReader([]byte{0x80}), 0).ReadFrame()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "broadcast", KindBroadcast.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
