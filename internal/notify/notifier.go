// Package notify sends confirmation messages for accepted leads over
// SES and SNS. Sends are best-effort; a delivery failure never touches
// the submission outcome.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"lead-capture/internal/common/config"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/form/validate"
	"lead-capture/internal/models"
)

// SESService is the slice of SES the notifier uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSService is the slice of SNS the notifier uses.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier sends lead confirmations.
type Notifier struct {
	cfg config.NotificationConfig
	ses SESService
	sns SNSService
	log logger.Logger
}

// New builds a notifier. Either client may be nil when its channel is
// disabled in config.
func New(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		cfg: cfg,
		ses: sesClient,
		sns: snsClient,
		log: log,
	}
}

// LeadAccepted sends the confirmation email, and an SMS when a phone
// number was captured and the SMS channel is on.
func (n *Notifier) LeadAccepted(ctx context.Context, payload *models.LeadPayload, result *models.SubmissionResult) {
	emailSent := false
	smsSent := false

	if n.cfg.Email.Enabled && n.ses != nil && payload.Email != "" {
		if err := n.sendEmail(ctx, payload, result); err != nil {
			n.log.Error("confirmation email send failed", map[string]interface{}{
				"error":   err.Error(),
				"lead_id": result.LeadID,
			})
		} else {
			emailSent = true
		}
	}

	if n.cfg.SMS.Enabled && n.sns != nil && payload.Phone != "" {
		if err := n.sendSMS(ctx, payload, result); err != nil {
			n.log.Error("confirmation SMS send failed", map[string]interface{}{
				"error":   err.Error(),
				"lead_id": result.LeadID,
			})
		} else {
			smsSent = true
		}
	}

	n.log.Info("lead confirmation processed", map[string]interface{}{
		"lead_id":    result.LeadID,
		"email_sent": emailSent,
		"sms_sent":   smsSent,
	})
}

func (n *Notifier) sendEmail(ctx context.Context, payload *models.LeadPayload, result *models.SubmissionResult) error {
	subject := "Your loan application has been received"
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received your %s loan application for $%s.\n"+
			"Your reference number is %s. Expect to hear from us within %s.\n\n"+
			"Next step: %s\n",
		payload.Name, payload.LoanType, payload.LoanAmount,
		result.LeadID, result.EstimatedProcessingTime, result.NextStepURL,
	)

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{payload.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.Email.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, payload *models.LeadPayload, result *models.SubmissionResult) error {
	message := fmt.Sprintf(
		"Your loan application %s was received. We'll be in touch within %s.",
		result.LeadID, result.EstimatedProcessingTime,
	)
	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(e164(payload.Phone)),
		Message:     aws.String(message),
	})
	return err
}

// e164 normalizes a captured phone number for SNS. Ten digits get the
// US country code; eleven digits already carry one.
func e164(phone string) string {
	digits := validate.DigitsOnly(phone)
	if len(digits) == 10 {
		return "+1" + digits
	}
	return "+" + digits
}
