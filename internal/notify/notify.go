// internal/notify/notify.go
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"esign-engine/internal/common/errors"
	"esign-engine/internal/common/logger"
	"esign-engine/internal/common/metrics"
	"esign-engine/internal/models"
)

// SESService is the slice of the SES client used here, declared for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailNotifier sends signer-facing emails through SES. Reminder and
// expiration notices are fire-and-forget: failures are logged and counted,
// never propagated to the state change that triggered them.
type EmailNotifier struct {
	ses       SESService
	fromEmail string
	baseURL   string
	log       logger.Logger
}

func NewEmailNotifier(sesClient SESService, fromEmail, baseURL string, log logger.Logger) *EmailNotifier {
	return &EmailNotifier{
		ses:       sesClient,
		fromEmail: fromEmail,
		baseURL:   baseURL,
		log:       log,
	}
}

func (n *EmailNotifier) signingLink(token string) string {
	return fmt.Sprintf("%s/sign/%s", n.baseURL, token)
}

// SendInvitation emails the signing link for a freshly sent document.
// Invitation failures are returned so bulk-send can record the recipient as
// failed.
func (n *EmailNotifier) SendInvitation(ctx context.Context, doc *models.Document, signer models.Signer) error {
	subject := fmt.Sprintf("Signature requested: %s", doc.Name)
	body := fmt.Sprintf("Hello %s,\n\nYou have been asked to sign %q.\n\nSign here: %s\n",
		signer.Name, doc.Name, n.signingLink(signer.AccessToken))

	if err := n.send(ctx, signer.Email, subject, body); err != nil {
		return errors.NewNotificationSendFailedError(err)
	}
	return nil
}

// SendReminder emails an unsigned signer. Best effort.
func (n *EmailNotifier) SendReminder(ctx context.Context, doc *models.Document, signer models.Signer) bool {
	subject := fmt.Sprintf("Reminder: %s is awaiting your signature", doc.Name)
	body := fmt.Sprintf("Hello %s,\n\nThis is a reminder that %q is still awaiting your signature.\n\nSign here: %s\n",
		signer.Name, doc.Name, n.signingLink(signer.AccessToken))

	if err := n.send(ctx, signer.Email, subject, body); err != nil {
		n.log.WithError(err).Warn("reminder email failed", map[string]interface{}{
			"documentId": doc.ID,
			"signerId":   signer.ID,
		})
		metrics.NotificationFailures.WithLabelValues("email").Inc()
		return false
	}
	return true
}

// SendExpirationNotice tells the document creator a document expired. Best
// effort.
func (n *EmailNotifier) SendExpirationNotice(ctx context.Context, doc *models.Document, creatorEmail string) {
	subject := fmt.Sprintf("Document expired: %s", doc.Name)
	body := fmt.Sprintf("The document %q expired before all signatures were collected.\n", doc.Name)

	if err := n.send(ctx, creatorEmail, subject, body); err != nil {
		n.log.WithError(err).Warn("expiration notice failed", map[string]interface{}{
			"documentId": doc.ID,
		})
		metrics.NotificationFailures.WithLabelValues("email").Inc()
	}
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, body string) error {
	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.fromEmail),
	})
	return err
}
