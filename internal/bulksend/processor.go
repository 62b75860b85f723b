// internal/bulksend/processor.go
package bulksend

import (
	"context"
	"time"

	"esign-engine/internal/common/errors"
	"esign-engine/internal/common/logger"
	"esign-engine/internal/common/metrics"
	"esign-engine/internal/models"
	"esign-engine/internal/ratelimit"
	"esign-engine/internal/store"
)

// RecipientSender creates and sends one document for one recipient. The
// production implementation instantiates the template, inserts the document
// and signer rows, applies the send transition, and emails the recipient.
type RecipientSender interface {
	Send(ctx context.Context, bulkSend *models.BulkSend, recipient models.BulkSendRecipient) (documentID string, err error)
}

// Config carries the pacing knobs for batch processing.
type Config struct {
	BatchSize     int
	MinInterval   time.Duration
	RatePerMinute int
}

// Result summarizes one processed batch.
type Result struct {
	BulkSendID  string                `json:"bulkSendId"`
	SentCount   int                   `json:"sentCount"`
	FailedCount int                   `json:"failedCount"`
	FinalStatus models.BulkSendStatus `json:"finalStatus"`
}

// Processor walks a batch's pending recipients in fixed-size chunks, paced by
// the rate limiter, checking for cancellation between recipients.
//
// Per-recipient send failures are recorded and processing continues; only
// infrastructure failures abort the batch.
type Processor struct {
	bulkSends *store.BulkSendStore
	sender    RecipientSender
	limiter   ratelimit.Limiter
	cfg       Config
	log       logger.Logger
	now       func() time.Time
}

func NewProcessor(q store.Querier, sender RecipientSender, limiter ratelimit.Limiter, cfg Config, log logger.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 6 * time.Second
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 10
	}
	return &Processor{
		bulkSends: store.NewBulkSendStore(q),
		sender:    sender,
		limiter:   limiter,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Process claims a queued batch and works through its recipients. A batch
// already claimed, cancelled, or terminal yields a no-op result with the
// batch's current counts.
func (p *Processor) Process(ctx context.Context, bulkSendID string) (*Result, error) {
	claimed, err := p.bulkSends.ClaimForSending(ctx, bulkSendID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		existing, err := p.bulkSends.GetByID(ctx, bulkSendID)
		if err != nil {
			return nil, err
		}
		p.log.Info("bulk send not claimable, skipping", map[string]interface{}{
			"bulkSendId": bulkSendID,
			"status":     string(existing.Status),
		})
		return &Result{
			BulkSendID:  bulkSendID,
			SentCount:   existing.SentCount,
			FailedCount: existing.FailedCount,
			FinalStatus: existing.Status,
		}, nil
	}

	bulkSend, err := p.bulkSends.GetByID(ctx, bulkSendID)
	if err != nil {
		return nil, err
	}

	recipients, err := p.bulkSends.ListPendingRecipients(ctx, bulkSendID)
	if err != nil {
		return nil, p.abort(ctx, bulkSendID, err)
	}

	for len(recipients) > 0 {
		batch := recipients
		if len(batch) > p.cfg.BatchSize {
			batch = batch[:p.cfg.BatchSize]
		}
		recipients = recipients[len(batch):]

		for _, recipient := range batch {
			// Cancellation wins over pending work at each boundary.
			status, err := p.bulkSends.GetStatus(ctx, bulkSendID)
			if err != nil {
				return nil, p.abort(ctx, bulkSendID, err)
			}
			if status == models.BulkSendStatusCancelled {
				p.log.Info("bulk send cancelled mid-batch", map[string]interface{}{
					"bulkSendId": bulkSendID,
				})
				return p.finish(ctx, bulkSendID, false)
			}

			if err := ratelimit.Wait(ctx, p.limiter, "bulksend:"+bulkSendID, p.cfg.RatePerMinute, time.Minute); err != nil {
				return nil, p.abort(ctx, bulkSendID, err)
			}

			if err := p.processRecipient(ctx, bulkSend, recipient); err != nil {
				return nil, p.abort(ctx, bulkSendID, err)
			}

			if len(recipients) > 0 || recipient.ID != batch[len(batch)-1].ID {
				if err := sleepCtx(ctx, p.cfg.MinInterval); err != nil {
					return nil, p.abort(ctx, bulkSendID, err)
				}
			}
		}
	}

	return p.finish(ctx, bulkSendID, true)
}

// processRecipient attempts one send; the send error is captured on the
// recipient row, not returned.
func (p *Processor) processRecipient(ctx context.Context, bulkSend *models.BulkSend, recipient models.BulkSendRecipient) error {
	documentID, sendErr := p.sender.Send(ctx, bulkSend, recipient)
	if sendErr != nil {
		p.log.WithError(sendErr).Warn("recipient send failed", map[string]interface{}{
			"bulkSendId": bulkSend.ID,
			"recipient":  recipient.Email,
		})
		metrics.BulkSendRecipients.WithLabelValues("failed").Inc()
		return p.bulkSends.RecordRecipientFailed(ctx, bulkSend.ID, recipient.ID,
			recipient.Email, sendErr.Error(), p.now().UTC())
	}
	metrics.BulkSendRecipients.WithLabelValues("sent").Inc()
	return p.bulkSends.RecordRecipientSent(ctx, bulkSend.ID, recipient.ID, documentID)
}

// finish reloads counts and stamps the terminal status. When finalize is
// false the batch was cancelled and keeps its cancelled status.
func (p *Processor) finish(ctx context.Context, bulkSendID string, finalize bool) (*Result, error) {
	bulkSend, err := p.bulkSends.GetByID(ctx, bulkSendID)
	if err != nil {
		return nil, err
	}

	final := bulkSend.Status
	if finalize {
		final = bulkSend.FinalStatus()
		if err := p.bulkSends.SetFinalStatus(ctx, bulkSendID, final); err != nil {
			return nil, err
		}
	}

	p.log.Info("bulk send finished", map[string]interface{}{
		"bulkSendId":  bulkSendID,
		"sentCount":   bulkSend.SentCount,
		"failedCount": bulkSend.FailedCount,
		"finalStatus": string(final),
	})

	return &Result{
		BulkSendID:  bulkSendID,
		SentCount:   bulkSend.SentCount,
		FailedCount: bulkSend.FailedCount,
		FinalStatus: final,
	}, nil
}

// abort marks the batch failed, preserving counts already recorded, and
// re-raises the underlying error.
func (p *Processor) abort(ctx context.Context, bulkSendID string, cause error) error {
	if err := p.bulkSends.MarkFailed(ctx, bulkSendID); err != nil {
		p.log.WithError(err).Error("failed to mark bulk send failed", map[string]interface{}{
			"bulkSendId": bulkSendID,
		})
	}
	return errors.NewBulkSendAbortedError(bulkSendID, cause)
}

// Cancel requests cancellation of a queued or in-flight batch.
func (p *Processor) Cancel(ctx context.Context, bulkSendID string) (bool, error) {
	return p.bulkSends.Cancel(ctx, bulkSendID)
}

// DueScheduled lists queued batches whose scheduled time has arrived.
func (p *Processor) DueScheduled(ctx context.Context) ([]string, error) {
	return p.bulkSends.ListDueScheduled(ctx, p.now().UTC())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
