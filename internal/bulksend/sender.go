// internal/bulksend/sender.go
package bulksend

import (
	"context"
	"fmt"

	"esign-engine/internal/models"
	"esign-engine/internal/store"
	"esign-engine/internal/workflow"
)

// Notifier delivers the signing invitation email for a freshly sent
// document.
type Notifier interface {
	SendInvitation(ctx context.Context, doc *models.Document, signer models.Signer) error
}

// DocumentSender materializes one document per recipient from the batch
// template and sends it through the workflow engine.
type DocumentSender struct {
	documents *store.DocumentStore
	signers   *store.SignerStore
	engine    *workflow.Engine
	notifier  Notifier
}

func NewDocumentSender(q store.Querier, engine *workflow.Engine, notifier Notifier) *DocumentSender {
	return &DocumentSender{
		documents: store.NewDocumentStore(q),
		signers:   store.NewSignerStore(q),
		engine:    engine,
		notifier:  notifier,
	}
}

func (s *DocumentSender) Send(ctx context.Context, bulkSend *models.BulkSend, recipient models.BulkSendRecipient) (string, error) {
	documentID, err := s.documents.Create(ctx, &models.Document{
		TemplateID: bulkSend.TemplateID,
		CreatorID:  bulkSend.CreatedBy,
		Name:       fmt.Sprintf("%s - %s", bulkSend.Name, recipient.Name),
		CreatedBy:  bulkSend.CreatedBy,
	})
	if err != nil {
		return "", err
	}

	signerID, err := s.signers.Create(ctx, &models.Signer{
		DocumentID:   documentID,
		Name:         recipient.Name,
		Email:        recipient.Email,
		Role:         models.SignerRoleSigner,
		SigningOrder: 1,
	})
	if err != nil {
		return "", err
	}

	if _, err := s.engine.SendDocument(ctx, documentID, bulkSend.CreatedBy); err != nil {
		return "", err
	}

	if s.notifier != nil {
		doc, err := s.documents.GetByID(ctx, documentID)
		if err != nil {
			return "", err
		}
		signer, err := s.signers.GetByID(ctx, signerID)
		if err != nil {
			return "", err
		}
		if err := s.notifier.SendInvitation(ctx, doc, *signer); err != nil {
			return "", err
		}
	}

	return documentID, nil
}
