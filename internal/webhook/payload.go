// internal/webhook/payload.go
package webhook

import (
	"context"
	"encoding/json"
	"time"

	"esign-engine/internal/common/errors"
	"esign-engine/internal/store"
)

// Payload is the JSON body delivered to subscriber endpoints.
type Payload struct {
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      PayloadData `json:"data"`
}

// PayloadData is the document projection inside a payload.
type PayloadData struct {
	DocumentID   string          `json:"documentId"`
	DocumentName string          `json:"documentName"`
	TemplateID   string          `json:"templateId"`
	CreatorID    string          `json:"creatorId"`
	Signers      []PayloadSigner `json:"signers"`
	SignedPdfURL string          `json:"signedPdfUrl,omitempty"`
}

// PayloadSigner is the per-signer slice of the projection.
type PayloadSigner struct {
	Email    string     `json:"email"`
	Name     string     `json:"name"`
	Status   string     `json:"status"`
	SignedAt *time.Time `json:"signedAt"`
}

// BuildPayload loads the document's current projection and serializes the
// delivery body. The serialized bytes are what gets signed and what gets
// snapshotted on the delivery row, so retries re-send identical bytes.
func BuildPayload(ctx context.Context, q store.Querier, event, documentID string, now time.Time) ([]byte, error) {
	documents := store.NewDocumentStore(q)
	signers := store.NewSignerStore(q)

	doc, err := documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	signerRows, err := signers.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	payloadSigners := make([]PayloadSigner, 0, len(signerRows))
	for _, s := range signerRows {
		payloadSigners = append(payloadSigners, PayloadSigner{
			Email:    s.Email,
			Name:     s.Name,
			Status:   string(s.Status),
			SignedAt: s.SignedAt,
		})
	}

	payload := Payload{
		Event:     event,
		Timestamp: now.UTC().Format(time.RFC3339),
		Data: PayloadData{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			TemplateID:   doc.TemplateID,
			CreatorID:    doc.CreatorID,
			Signers:      payloadSigners,
			SignedPdfURL: doc.SignedFileURL,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewWebhookPayloadFailedError(documentID, err)
	}
	return body, nil
}
