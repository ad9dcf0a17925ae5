package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	want := Message{Type: TypePhotoVerify, Body: []byte("evt-1")}
	require.NoError(t, q.Publish(ctx, want))

	select {
	case got := <-messages:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)
	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-messages:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestSerializeRoundtrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{name: "typed", msg: Message{Type: TypePhotoVerify, Body: []byte("evt-1")}},
		{name: "body with separator", msg: Message{Type: "t", Body: []byte("a|b|c")}},
		{name: "empty body", msg: Message{Type: "t", Body: []byte("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := deserialize(serialize(tt.msg))
			require.NoError(t, err)
			assert.Equal(t, tt.msg.Type, got.Type)
			assert.Equal(t, string(tt.msg.Body), string(got.Body))
		})
	}
}

func TestDeserializeWithoutSeparator(t *testing.T) {
	got, err := deserialize("raw-payload")
	require.NoError(t, err)
	assert.Empty(t, got.Type)
	assert.Equal(t, "raw-payload", string(got.Body))
}
