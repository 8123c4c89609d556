package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// GradedSubject is the NATS subject graded-attempt events travel on.
const GradedSubject = "quizdeck.attempts.graded"

// Mailer abstracts the external email dispatch service.
type Mailer interface {
	SendResult(ctx context.Context, to, subject, body string) error
}

// NATSPublisher publishes graded events to NATS.
type NATSPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSPublisher builds a publisher over an established connection.
func NewNATSPublisher(conn *nats.Conn, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "graded_publisher").Logger(),
	}
}

// PublishGraded serializes and publishes the event. Delivery is best-effort;
// the grading transaction has already committed.
func (p *NATSPublisher) PublishGraded(_ context.Context, event GradedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal graded event: %w", err)
	}

	if err := p.conn.Publish(GradedSubject, payload); err != nil {
		return fmt.Errorf("publish graded event: %w", err)
	}

	p.logger.Debug().Uint("attempt_id", event.AttemptID).Msg("graded event published")
	return nil
}

// ResultNotifier consumes graded events and emails candidates their result.
type ResultNotifier struct {
	conn   *nats.Conn
	mailer Mailer
	logger zerolog.Logger
	sub    *nats.Subscription
}

// NewResultNotifier builds the background consumer.
func NewResultNotifier(conn *nats.Conn, mailer Mailer, logger zerolog.Logger) *ResultNotifier {
	return &ResultNotifier{
		conn:   conn,
		mailer: mailer,
		logger: logger.With().Str("component", "result_notifier").Logger(),
	}
}

// Start subscribes to the graded subject and dispatches result emails until
// the context is cancelled.
func (n *ResultNotifier) Start(ctx context.Context) error {
	sub, err := n.conn.Subscribe(GradedSubject, func(msg *nats.Msg) {
		var event GradedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			n.logger.Error().Err(err).Msg("malformed graded event")
			return
		}
		n.handle(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", GradedSubject, err)
	}

	n.sub = sub
	n.logger.Info().Str("subject", GradedSubject).Msg("result notifier started")

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			n.logger.Warn().Err(err).Msg("failed to unsubscribe result notifier")
		}
	}()

	return nil
}

func (n *ResultNotifier) handle(ctx context.Context, event GradedEvent) {
	if n.mailer == nil || event.UserEmail == "" {
		return
	}

	verdict := "did not pass"
	if event.Passed {
		verdict = "passed"
	}
	lateNote := ""
	if event.Late {
		lateNote = " (submitted late)"
	}

	subject := fmt.Sprintf("Result: %s", event.Title)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour quiz %q has been graded%s.\nScore: %.2f / %.0f. You %s.\n",
		event.UserName, event.Title, lateNote, event.Score, event.TotalMarks, verdict,
	)

	if err := n.mailer.SendResult(ctx, event.UserEmail, subject, body); err != nil {
		n.logger.Error().Err(err).Uint("attempt_id", event.AttemptID).Msg("failed to send result email")
		return
	}

	n.logger.Info().Uint("attempt_id", event.AttemptID).Msg("result email sent")
}
