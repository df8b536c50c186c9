package action

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/domain/account"
	"github.com/healthtrack/healthtrack/internal/platform/webhook"
)

// Notifier delivers a patient action to one caretaker.
type Notifier interface {
	Notify(ctx context.Context, caretaker *account.User, a *Action) error
}

// LogNotifier writes one structured line per delivery.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "patient_action").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, caretaker *account.User, a *Action) error {
	ev := n.logger.Info()
	if a.Action == KindEmergency {
		ev = n.logger.Warn()
	}
	ev.Int64("action_id", a.ID).
		Int64("patient_id", a.PatientID).
		Int64("caretaker_id", caretaker.ID).
		Str("caretaker_email", caretaker.Email).
		Str("action", string(a.Action)).
		Msg("patient action")
	return nil
}

// WebhookSender is implemented by *webhook.Client.
type WebhookSender interface {
	Send(ctx context.Context, eventType string, payload any) (*webhook.Delivery, error)
}

// EventPatientAction is the webhook event type for patient actions.
const EventPatientAction = "patient.action"

type webhookPayload struct {
	ActionID    int64     `json:"action_id"`
	PatientID   int64     `json:"patient_id"`
	Action      Kind      `json:"action"`
	CaretakerID int64     `json:"caretaker_id"`
	Caretaker   string    `json:"caretaker_email"`
	CreatedAt   time.Time `json:"created_at"`
}

// WebhookNotifier posts one signed event per caretaker.
type WebhookNotifier struct {
	sender WebhookSender
}

func NewWebhookNotifier(sender WebhookSender) *WebhookNotifier {
	return &WebhookNotifier{sender: sender}
}

func (n *WebhookNotifier) Notify(ctx context.Context, caretaker *account.User, a *Action) error {
	_, err := n.sender.Send(ctx, EventPatientAction, webhookPayload{
		ActionID:    a.ID,
		PatientID:   a.PatientID,
		Action:      a.Action,
		CaretakerID: caretaker.ID,
		Caretaker:   caretaker.Email,
		CreatedAt:   a.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("deliver action %d to caretaker %d: %w", a.ID, caretaker.ID, err)
	}
	return nil
}

// Notifiers fans out to each notifier in order and returns the first error.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, caretaker *account.User, a *Action) error {
	for _, n := range ns {
		if err := n.Notify(ctx, caretaker, a); err != nil {
			return err
		}
	}
	return nil
}
