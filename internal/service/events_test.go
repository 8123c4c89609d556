package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureMailer struct {
	to      []string
	subject []string
	body    []string
	err     error
}

func (m *captureMailer) SendResult(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.to = append(m.to, to)
	m.subject = append(m.subject, subject)
	m.body = append(m.body, body)
	return nil
}

func TestResultNotifierHandle(t *testing.T) {
	mailer := &captureMailer{}
	notifier := NewResultNotifier(nil, mailer, testLogger())

	notifier.handle(context.Background(), GradedEvent{
		AttemptID:  7,
		UserEmail:  "dana@example.com",
		UserName:   "Dana",
		Title:      "Quiz 1",
		Score:      82.5,
		TotalMarks: 100,
		Passed:     true,
		Late:       true,
		GradedAt:   time.Now(),
	})

	require.Len(t, mailer.to, 1)
	require.Equal(t, "dana@example.com", mailer.to[0])
	require.Equal(t, "Result: Quiz 1", mailer.subject[0])
	require.Contains(t, mailer.body[0], "82.50")
	require.Contains(t, mailer.body[0], "submitted late")
	require.Contains(t, mailer.body[0], "You passed")
}

func TestResultNotifierHandleSkipsEmptyRecipients(t *testing.T) {
	mailer := &captureMailer{}
	notifier := NewResultNotifier(nil, mailer, testLogger())

	notifier.handle(context.Background(), GradedEvent{AttemptID: 7})
	require.Empty(t, mailer.to)
}

func TestResultNotifierHandleSwallowsMailerErrors(t *testing.T) {
	mailer := &captureMailer{err: errors.New("smtp down")}
	notifier := NewResultNotifier(nil, mailer, testLogger())

	// Must not panic; the failure is logged and dropped.
	notifier.handle(context.Background(), GradedEvent{UserEmail: "dana@example.com"})
	require.Empty(t, mailer.to)
}
