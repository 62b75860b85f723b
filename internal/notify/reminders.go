// internal/notify/reminders.go
package notify

import (
	"context"
	"time"

	"esign-engine/internal/common/logger"
	"esign-engine/internal/models"
	"esign-engine/internal/store"
)

// ReminderSender is implemented by EmailNotifier; split out for tests.
type ReminderSender interface {
	SendReminder(ctx context.Context, doc *models.Document, signer models.Signer) bool
}

// SweepResult summarizes one reminder sweep.
type SweepResult struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// ReminderSweeper emails unsigned signers of active documents on each
// document's reminder cadence, capped at maxPerDocument reminders.
type ReminderSweeper struct {
	reminders      *store.ReminderStore
	signers        *store.SignerStore
	audit          *store.AuditStore
	sender         ReminderSender
	maxPerDocument int
	log            logger.Logger
	now            func() time.Time
}

func NewReminderSweeper(q store.Querier, sender ReminderSender, maxPerDocument int, log logger.Logger) *ReminderSweeper {
	if maxPerDocument <= 0 {
		maxPerDocument = 3
	}
	return &ReminderSweeper{
		reminders:      store.NewReminderStore(q),
		signers:        store.NewSignerStore(q),
		audit:          store.NewAuditStore(q),
		sender:         sender,
		maxPerDocument: maxPerDocument,
		log:            log,
		now:            time.Now,
	}
}

// Sweep walks reminder-enabled active documents and sends reminders to every
// signer who has not yet signed or declined. A document is due when it has
// never been reminded and its interval has passed since creation, or when
// the interval has passed since the last reminder.
func (s *ReminderSweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.now().UTC()
	candidates, err := s.reminders.ListCandidates(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Candidates: len(candidates)}
	for _, c := range candidates {
		if !s.due(c, now) {
			continue
		}

		signers, err := s.signers.ListByDocument(ctx, c.Document.ID)
		if err != nil {
			return result, err
		}

		sentAny := false
		for _, signer := range signers {
			if !signer.Blocking() || signer.Status == models.SignerStatusSigned || signer.Status == models.SignerStatusDeclined {
				continue
			}
			if s.sender.SendReminder(ctx, &c.Document, signer) {
				sentAny = true
				result.Sent++
			} else {
				result.Failed++
			}
		}

		if sentAny {
			if err := s.reminders.RecordSent(ctx, c.Document.ID, now); err != nil {
				return result, err
			}
			s.audit.Append(ctx, models.AuditLogEntry{
				DocumentID:  c.Document.ID,
				Action:      models.AuditActionReminderSent,
				PerformedBy: "system",
			})
		}
	}

	return result, nil
}

func (s *ReminderSweeper) due(c store.ReminderCandidate, now time.Time) bool {
	if c.SentCount >= s.maxPerDocument {
		return false
	}
	interval := time.Duration(c.Document.ReminderInterval) * 24 * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	anchor := c.Document.CreatedAt
	if c.LastSent != nil {
		anchor = *c.LastSent
	}
	return now.Sub(anchor) >= interval
}
