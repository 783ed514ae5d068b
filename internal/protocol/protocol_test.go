package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAckPayload_Wire(t *testing.T) {
	tests := []struct {
		name string
		ack  AckPayload
		want string
	}{
		{name: "ok", ack: OKAck(), want: `{"error":null}`},
		{name: "error", ack: ErrorAck("name already taken"), want: `{"error":"name already taken"}`},
		{name: "empty login history", ack: LoginAck(nil), want: `{"error":null,"history":[]}`},
		{
			name: "login history",
			ack:  LoginAck([]MessagePayload{{User: "Ada", Text: "hi", Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}}),
			want: `{"error":null,"history":[{"user":"Ada","text":"hi","timestamp":"2024-01-02T03:04:05Z"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.ack)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestAckPayload_Accessors(t *testing.T) {
	assert.True(t, OKAck().OK())
	assert.Empty(t, OKAck().Reason())

	ack := ErrorAck("join a room first")
	assert.False(t, ack.OK())
	assert.Equal(t, "join a room first", ack.Reason())
}

func TestSendMessageRequest_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{name: "object", data: `{"text":"hello"}`, want: "hello"},
		{name: "bare string", data: `"hello"`, want: "hello"},
		{name: "padded string", data: `  "hi"  `, want: "hi"},
		{name: "number", data: `42`, wantErr: true},
		{name: "array", data: `["a"]`, wantErr: true},
		{name: "wrong field type", data: `{"text":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SendMessageRequest
			err := json.Unmarshal([]byte(tt.data), &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Text)
		})
	}
}

func TestEncode(t *testing.T) {
	frame, err := Encode(EventNotification, "", NotificationPayload{Title: "Bob", Description: "Bob has joined"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"notification","data":{"title":"Bob","description":"Bob has joined"}}`, string(frame))

	frame, err = Encode(EventLogout, "7", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"logout","id":"7"}`, string(frame))
}

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"event":"login","id":"1","data":{"name":"Ada","room":"lobby"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventLogin, env.Event)
	assert.Equal(t, "1", env.ID)

	var req LoginRequest
	require.NoError(t, DecodeData(env, &req))
	assert.Equal(t, LoginRequest{Name: "Ada", Room: "lobby"}, req)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Decode([]byte(`{"id":"1"}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	env, err := Decode([]byte(`{"event":"login"}`))
	require.NoError(t, err)
	var req LoginRequest
	assert.ErrorIs(t, DecodeData(env, &req), ErrMissingData)

	env, err = Decode([]byte(`{"event":"login","data":null}`))
	require.NoError(t, err)
	assert.ErrorIs(t, DecodeData(env, &req), ErrMissingData)
}
