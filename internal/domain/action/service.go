package action

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthtrack/healthtrack/internal/domain/account"
	"github.com/healthtrack/healthtrack/internal/platform/db"
)

// NotifyTimeout bounds the fan-out to caretakers after an action is stored.
const NotifyTimeout = 15 * time.Second

// CaretakerLister is implemented by *careteam.Service.
type CaretakerLister interface {
	CaretakersOf(ctx context.Context, patientID int64) ([]*account.User, error)
}

type Service struct {
	actions       Repository
	caretakers    CaretakerLister
	notifier      Notifier
	logger        zerolog.Logger
	commit        func(ctx context.Context) error
	notifyTimeout time.Duration
}

func NewService(actions Repository, caretakers CaretakerLister, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		actions:       actions,
		caretakers:    caretakers,
		notifier:      notifier,
		logger:        logger,
		commit:        db.Commit,
		notifyTimeout: NotifyTimeout,
	}
}

// Send records the action, commits it, and then notifies every caretaker
// of the patient. Caretakers are only notified about stored actions. A
// failed delivery is logged and does not fail the request; Notified counts
// the deliveries that succeeded.
func (s *Service) Send(ctx context.Context, patientID int64, req *CreateRequest) (*Action, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	a := &Action{PatientID: patientID, Action: req.Action}
	if err := s.actions.Create(ctx, a); err != nil {
		return nil, err
	}

	caretakers, err := s.caretakers.CaretakersOf(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx); err != nil {
		return nil, fmt.Errorf("commit action: %w", err)
	}

	// Deliveries outlive the request deadline but not notifyTimeout.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	for _, ct := range caretakers {
		if err := s.notifier.Notify(nctx, ct, a); err != nil {
			s.logger.Error().Err(err).
				Int64("action_id", a.ID).
				Int64("caretaker_id", ct.ID).
				Msg("failed to notify caretaker")
			continue
		}
		a.Notified++
	}
	return a, nil
}
