package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/apiserver/config"
)

func TestDiscard(t *testing.T) {
	cause := errors.New("bad json")
	err := Discard(cause)

	assert.ErrorIs(t, err, ErrDiscard)
	assert.ErrorIs(t, err, cause)
}

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(map[string]any{
		"kind":  "otp",
		"raw":   []byte("bytes"),
		"count": int32(3),
	})
	assert.Equal(t, map[string]string{"kind": "otp", "raw": "bytes", "count": "3"}, attrs)
	assert.Nil(t, headersToAttributes(nil))
}

func TestOpen_RequiresQueueBackend(t *testing.T) {
	_, err := Open(context.Background(), config.NotifierConfig{Backend: config.NotifierSMTP})
	require.Error(t, err)

	_, err = Open(context.Background(), config.NotifierConfig{Backend: config.NotifierRabbitMQ})
	assert.EqualError(t, err, "rabbitmq url is required")

	_, err = Open(context.Background(), config.NotifierConfig{Backend: config.NotifierPubSub})
	assert.EqualError(t, err, "pubsub project id is required")
}
