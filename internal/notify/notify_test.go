package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/internal/mq"
)

type recordingPublisher struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.channel, p.data, p.attrs = channel, data, attrs
	return "msg-1", p.err
}

type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubSubscriber struct {
	messages []mq.Message
	results  []error
}

func (s *stubSubscriber) Subscribe(ctx context.Context, _ string, handler mq.Handler) error {
	for _, msg := range s.messages {
		s.results = append(s.results, handler(ctx, msg))
	}
	return context.Canceled
}

func TestQueueNotifier_PublishesJSON(t *testing.T) {
	publisher := &recordingPublisher{}
	n := NewQueueNotifier(publisher, "taskhub.mail")

	require.NoError(t, n.Send(context.Background(), Message{To: "a@x.com", Subject: "Hi", Body: "Body"}))

	assert.Equal(t, "taskhub.mail", publisher.channel)
	assert.Equal(t, "application/json", publisher.attrs[mq.ContentTypeAttribute])
	var got Message
	require.NoError(t, json.Unmarshal(publisher.data, &got))
	assert.Equal(t, Message{To: "a@x.com", Subject: "Hi", Body: "Body"}, got)
}

func TestQueueNotifier_PublishError(t *testing.T) {
	n := NewQueueNotifier(&recordingPublisher{err: errors.New("broker down")}, "q")

	err := n.Send(context.Background(), Message{To: "a@x.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestWorker_Run(t *testing.T) {
	good, err := json.Marshal(Message{To: "a@x.com", Subject: "Your OTP Code", Body: "Your OTP is 000123."})
	require.NoError(t, err)
	noRecipient, err := json.Marshal(Message{Subject: "orphan"})
	require.NoError(t, err)

	subscriber := &stubSubscriber{messages: []mq.Message{
		{ID: "1", Data: good},
		{ID: "2", Data: []byte("{not json")},
		{ID: "3", Data: noRecipient},
	}}
	sender := &recordingSender{}

	require.NoError(t, NewWorker(subscriber, "q", sender, nil).Run(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a@x.com", sender.sent[0].To)
	require.Len(t, subscriber.results, 3)
	assert.NoError(t, subscriber.results[0])
	assert.ErrorIs(t, subscriber.results[1], mq.ErrDiscard)
	assert.ErrorIs(t, subscriber.results[2], mq.ErrDiscard)
}

func TestWorker_DeliveryFailureIsRetried(t *testing.T) {
	data, err := json.Marshal(Message{To: "a@x.com"})
	require.NoError(t, err)
	subscriber := &stubSubscriber{messages: []mq.Message{{ID: "1", Data: data}}}

	require.NoError(t, NewWorker(subscriber, "q", &recordingSender{err: errors.New("smtp 451")}, nil).Run(context.Background()))

	require.Len(t, subscriber.results, 1)
	require.Error(t, subscriber.results[0])
	assert.NotErrorIs(t, subscriber.results[0], mq.ErrDiscard)
}

func TestBuildMessage(t *testing.T) {
	m, err := buildMessage("noreply@taskhub.dev", Message{To: "a@x.com", Subject: "Your OTP Code", Body: "Your OTP is 042137."})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Your OTP Code")
	assert.Contains(t, raw, "<a@x.com>")
	assert.Contains(t, raw, "Your OTP is 042137.")
}

func TestBuildMessage_InvalidRecipient(t *testing.T) {
	_, err := buildMessage("noreply@taskhub.dev", Message{To: "not an address"})
	assert.Error(t, err)
}

func TestSMTPNotifier_Send(t *testing.T) {
	n, err := NewSMTPNotifier(config.SMTPConfig{Host: "localhost", Port: 2525, From: "noreply@taskhub.dev"})
	require.NoError(t, err)

	var captured *mail.Msg
	n.send = func(_ context.Context, msg *mail.Msg) error {
		captured = msg
		return nil
	}
	require.NoError(t, n.Send(context.Background(), Message{To: "a@x.com", Subject: "s", Body: "b"}))
	require.NotNil(t, captured)

	n.send = func(context.Context, *mail.Msg) error { return errors.New("connection refused") }
	err = n.Send(context.Background(), Message{To: "a@x.com", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "smtp send:"))
}

func TestNewSMTPNotifier_RequiresHostAndFrom(t *testing.T) {
	_, err := NewSMTPNotifier(config.SMTPConfig{From: "noreply@taskhub.dev"})
	assert.EqualError(t, err, "smtp host is required")

	_, err = NewSMTPNotifier(config.SMTPConfig{Host: "localhost"})
	assert.EqualError(t, err, "smtp from address is required")
}

func TestLogNotifier_OmitsBody(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Send(context.Background(), Message{To: "alice@example.com", Subject: "Your OTP Code", Body: "Your OTP is 123456."}))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "ali***@example.com", fields["to"])
	for _, v := range fields {
		assert.NotContains(t, v, "123456")
	}
}

func TestNew_LogBackend(t *testing.T) {
	n, closeFn, err := New(context.Background(), config.NotifierConfig{Backend: config.NotifierLog}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)
	assert.NoError(t, closeFn())

	_, _, err = New(context.Background(), config.NotifierConfig{Backend: "pigeon"}, nil)
	assert.Error(t, err)
}
