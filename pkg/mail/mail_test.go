package mail

import (
	"context"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMessageValidate(t *testing.T) {
	assert.Error(t, Message{}.Validate())
	assert.Error(t, Message{To: mail.Address{Address: "a@b.c"}}.Validate())
	assert.Error(t, Message{To: mail.Address{Address: "a@b.c"}, Subject: "s"}.Validate())
	assert.NoError(t, Message{To: mail.Address{Address: "a@b.c"}, Subject: "s", Text: "t"}.Validate())
}

func TestLogSenderLogsMessage(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := NewLogSender(zap.New(core))

	err := sender.Send(context.Background(), Message{To: mail.Address{Address: "a@b.c"}, Subject: "Hello", Text: "body"})
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("mail.send").Len())
}

func TestSendGridBuild(t *testing.T) {
	sender := NewSendGridSender("key", "Institute", "from@x.y")
	m := sender.build(Message{To: mail.Address{Name: "A", Address: "a@b.c"}, Subject: "Hi", Text: "t", HTML: "<p>t</p>"})
	require.Len(t, m.Personalizations, 1)
	require.Equal(t, "[Institute] Hi", m.Personalizations[0].Subject)
	require.Len(t, m.Content, 2)
	require.Equal(t, "from@x.y", m.From.Address)
}
