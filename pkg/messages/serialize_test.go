package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{
			name: "commit request without payload",
			msg:  &Message{Type: MessageTypeCommitRequest, ID: "1"},
		},
		{
			name: "play request",
			msg: &Message{
				Type:    MessageTypePlayRequest,
				ID:      "9f1c",
				Payload: []byte(`{"commitment_hash":"ab","client_seed":"xyz"}`),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := SerializeMessage(tt.msg)
			require.NoError(t, err)

			got, err := DeserializeMessage(b)
			require.NoError(t, err)
			assert.Equal(t, tt.msg.Type, got.Type)
			assert.Equal(t, tt.msg.ID, got.ID)
			assert.Equal(t, string(tt.msg.Payload), string(got.Payload))
		})
	}
}

func TestDeserializeMessage_rejectsGarbage(t *testing.T) {
	_, err := DeserializeMessage([]byte("definitely not zstd"))
	assert.Error(t, err)

	_, err = DeserializeMessageFlatbuffer([]byte{0xff, 0xff, 0xff, 0x7f, 0x01})
	assert.Error(t, err)

	_, err = DeserializeMessageFlatbuffer([]byte{0x01})
	assert.Error(t, err)
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "play_request", MessageTypePlayRequest.String())
	assert.Equal(t, "unknown", MessageType(0).String())
}
