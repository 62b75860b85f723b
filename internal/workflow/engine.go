// internal/workflow/engine.go
package workflow

import (
	"context"
	"fmt"
	"time"

	"esign-engine/internal/common/logger"
	"esign-engine/internal/models"
	"esign-engine/internal/store"
)

// AuditSink receives audit entries after they are persisted, e.g. the
// Elasticsearch mirror. Implementations must not block or fail the caller.
type AuditSink interface {
	Index(ctx context.Context, tenantSlug string, entry models.AuditLogEntry)
}

// Engine applies document and signer state transitions. Every transition is
// a conditional update so replayed jobs are no-ops, and every applied
// transition appends to the audit trail.
//
// Precondition failures (document already terminal, signer already signed)
// return applied=false and no error; errors are reserved for infrastructure
// failures.
type Engine struct {
	documents *store.DocumentStore
	signers   *store.SignerStore
	audit     *store.AuditStore
	sink      AuditSink
	tenant    string
	log       logger.Logger
	now       func() time.Time
}

func NewEngine(q store.Querier, tenantSlug string, sink AuditSink, log logger.Logger) *Engine {
	return &Engine{
		documents: store.NewDocumentStore(q),
		signers:   store.NewSignerStore(q),
		audit:     store.NewAuditStore(q),
		sink:      sink,
		tenant:    tenantSlug,
		log:       log,
		now:       time.Now,
	}
}

// Result reports one attempted transition.
type Result struct {
	Applied bool `json:"applied"`
	// Events lists domain events raised by the transition, in order.
	Events []string `json:"events,omitempty"`
	// DocumentStatus is the document status after the transition.
	DocumentStatus models.DocumentStatus `json:"documentStatus,omitempty"`
}

// SendDocument moves a draft to pending and marks its signers sent. Raises
// document.sent.
func (e *Engine) SendDocument(ctx context.Context, documentID, performedBy string) (*Result, error) {
	applied, err := e.documents.TransitionStatus(ctx, documentID,
		[]models.DocumentStatus{models.DocumentStatusDraft}, models.DocumentStatusPending)
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Result{Applied: false}, nil
	}
	if err := e.signers.MarkSent(ctx, documentID); err != nil {
		return nil, err
	}
	e.record(ctx, documentID, nil, models.AuditActionDocumentSent, "", performedBy)
	return &Result{
		Applied:        true,
		Events:         []string{models.EventDocumentSent},
		DocumentStatus: models.DocumentStatusPending,
	}, nil
}

// MarkSignerViewed records the first view of a signer and moves the document
// to in_progress on first activity. Raises document.viewed on first view.
func (e *Engine) MarkSignerViewed(ctx context.Context, signerID, performedBy string) (*Result, error) {
	signer, err := e.signers.GetByID(ctx, signerID)
	if err != nil {
		return nil, err
	}
	applied, err := e.signers.MarkViewed(ctx, signerID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Result{Applied: false}, nil
	}
	e.advance(ctx, signer.DocumentID,
		[]models.DocumentStatus{models.DocumentStatusPending}, models.DocumentStatusInProgress)
	e.record(ctx, signer.DocumentID, &signerID, models.AuditActionDocumentViewed, "", performedBy)
	return &Result{
		Applied: true,
		Events:  []string{models.EventDocumentViewed},
	}, nil
}

// MarkSignerSigned records a signature with its evidence and recomputes the
// document status. Raises document.signed, plus document.completed when the
// last blocking signer signs.
func (e *Engine) MarkSignerSigned(ctx context.Context, signerID, ip, userAgent, performedBy string) (*Result, error) {
	signer, err := e.signers.GetByID(ctx, signerID)
	if err != nil {
		return nil, err
	}

	doc, err := e.documents.GetByID(ctx, signer.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.IsTerminal() {
		return &Result{Applied: false, DocumentStatus: doc.Status}, nil
	}

	signedAt := e.now().UTC()
	applied, err := e.signers.MarkSigned(ctx, signerID, signedAt, ip, userAgent)
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Result{Applied: false, DocumentStatus: doc.Status}, nil
	}

	e.record(ctx, signer.DocumentID, &signerID, models.AuditActionSignerSigned,
		fmt.Sprintf("ip: %s", ip), performedBy)

	events := []string{models.EventDocumentSigned}

	status, err := e.recompute(ctx, signer.DocumentID, performedBy)
	if err != nil {
		return nil, err
	}
	if status == models.DocumentStatusCompleted {
		events = append(events, models.EventDocumentCompleted)
	}

	return &Result{Applied: true, Events: events, DocumentStatus: status}, nil
}

// MarkSignerDeclined records a decline and moves the document to declined.
// Raises document.declined.
func (e *Engine) MarkSignerDeclined(ctx context.Context, signerID, reason, performedBy string) (*Result, error) {
	signer, err := e.signers.GetByID(ctx, signerID)
	if err != nil {
		return nil, err
	}

	doc, err := e.documents.GetByID(ctx, signer.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.IsTerminal() {
		return &Result{Applied: false, DocumentStatus: doc.Status}, nil
	}

	applied, err := e.signers.MarkDeclined(ctx, signerID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Result{Applied: false, DocumentStatus: doc.Status}, nil
	}

	e.advance(ctx, signer.DocumentID,
		[]models.DocumentStatus{models.DocumentStatusPending, models.DocumentStatusInProgress},
		models.DocumentStatusDeclined)
	e.record(ctx, signer.DocumentID, &signerID, models.AuditActionSignerDeclined, reason, performedBy)

	return &Result{
		Applied:        true,
		Events:         []string{models.EventDocumentDeclined},
		DocumentStatus: models.DocumentStatusDeclined,
	}, nil
}

// VoidDocument cancels a document that is not completed and not already
// voided. Raises document.voided.
func (e *Engine) VoidDocument(ctx context.Context, documentID, reason, performedBy string) (*Result, error) {
	applied, err := e.documents.TransitionStatus(ctx, documentID,
		[]models.DocumentStatus{
			models.DocumentStatusDraft,
			models.DocumentStatusPending,
			models.DocumentStatusInProgress,
			models.DocumentStatusDeclined,
			models.DocumentStatusExpired,
		}, models.DocumentStatusVoided)
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Result{Applied: false}, nil
	}
	e.record(ctx, documentID, nil, models.AuditActionDocumentVoided, reason, performedBy)
	return &Result{
		Applied:        true,
		Events:         []string{models.EventDocumentVoided},
		DocumentStatus: models.DocumentStatusVoided,
	}, nil
}

// ExpireDocuments sweeps active documents past their deadline. Returns the
// expired documents so the caller can raise document.expired per document.
func (e *Engine) ExpireDocuments(ctx context.Context) ([]models.Document, error) {
	candidates, err := e.documents.ListExpiredCandidates(ctx, e.now().UTC())
	if err != nil {
		return nil, err
	}

	var expired []models.Document
	for _, doc := range candidates {
		applied, err := e.documents.TransitionStatus(ctx, doc.ID,
			[]models.DocumentStatus{models.DocumentStatusPending, models.DocumentStatusInProgress},
			models.DocumentStatusExpired)
		if err != nil {
			return expired, err
		}
		if !applied {
			continue
		}
		e.record(ctx, doc.ID, nil, models.AuditActionDocumentExpired, "", "system")
		doc.Status = models.DocumentStatusExpired
		expired = append(expired, doc)
	}
	return expired, nil
}

// recompute derives the document status from its signers: completed when
// every blocking signer has signed, in_progress once any activity happened.
func (e *Engine) recompute(ctx context.Context, documentID, performedBy string) (models.DocumentStatus, error) {
	signers, err := e.signers.ListByDocument(ctx, documentID)
	if err != nil {
		return "", err
	}

	allSigned := true
	for _, s := range signers {
		if s.Blocking() && s.Status != models.SignerStatusSigned {
			allSigned = false
			break
		}
	}

	if allSigned {
		applied, err := e.documents.MarkCompleted(ctx, documentID, e.now().UTC())
		if err != nil {
			return "", err
		}
		if applied {
			e.record(ctx, documentID, nil, models.AuditActionDocumentCompleted, "", performedBy)
		}
		return models.DocumentStatusCompleted, nil
	}

	e.advance(ctx, documentID,
		[]models.DocumentStatus{models.DocumentStatusPending}, models.DocumentStatusInProgress)
	return models.DocumentStatusInProgress, nil
}

// advance applies a best-effort document status transition where the signer
// change is the source of truth. A precondition miss is a normal no-op; an
// infrastructure failure is logged so the stalled status is visible.
func (e *Engine) advance(ctx context.Context, documentID string, from []models.DocumentStatus, to models.DocumentStatus) {
	if _, err := e.documents.TransitionStatus(ctx, documentID, from, to); err != nil {
		e.log.WithError(err).Error("failed to advance document status", map[string]interface{}{
			"documentId": documentID,
			"to":         string(to),
		})
	}
}

// CounterSignQueue returns internal signers eligible to counter-sign now: on
// an active document, not yet signed or declined, with no unsigned blocking
// signer at a lower signing order.
func (e *Engine) CounterSignQueue(ctx context.Context, documentID string) ([]models.Signer, error) {
	doc, err := e.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.IsTerminal() {
		return nil, nil
	}

	signers, err := e.signers.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	var eligible []models.Signer
	for _, s := range signers {
		if !s.IsInternal || s.Status == models.SignerStatusSigned || s.Status == models.SignerStatusDeclined {
			continue
		}
		blocked := false
		for _, other := range signers {
			if other.ID == s.ID || !other.Blocking() {
				continue
			}
			if other.SigningOrder < s.SigningOrder && other.Status != models.SignerStatusSigned {
				blocked = true
				break
			}
		}
		if !blocked {
			eligible = append(eligible, s)
		}
	}
	return eligible, nil
}

// record appends an audit entry and mirrors it to the search sink. Audit
// persistence failures are logged, never propagated; the state change
// already committed.
func (e *Engine) record(ctx context.Context, documentID string, signerID *string, action models.AuditAction, details, performedBy string) {
	entry, err := e.audit.Append(ctx, models.AuditLogEntry{
		DocumentID:  documentID,
		SignerID:    signerID,
		Action:      action,
		Details:     details,
		PerformedBy: performedBy,
	})
	if err != nil {
		e.log.WithError(err).Error("failed to append audit entry", map[string]interface{}{
			"documentId": documentID,
			"action":     string(action),
		})
		return
	}
	if e.sink != nil {
		e.sink.Index(ctx, e.tenant, *entry)
	}
}
