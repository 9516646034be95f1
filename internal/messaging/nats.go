package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lending_gateway/internal/domain"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// EventPublisher announces durable state changes to the rest of the
// platform: a committed verification, a submitted lender offer, and the
// review verdicts coming back from the compliance side.
type EventPublisher interface {
	PublishVerificationSubmitted(ctx context.Context, rec *domain.VerificationRecord) error
	PublishOfferSubmitted(ctx context.Context, offer *domain.LoanOffer) error
	SubscribeToVerificationReviewed(ctx context.Context, handler func(VerificationReviewedMessage)) error
	Close()
}

// natsConn is the slice of *nats.Conn the client needs.
type natsConn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

type natsClient struct {
	conn   natsConn
	logger *zap.Logger
}

func NewNATSClient(url string, logger *zap.Logger) (EventPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", zap.String("url", url))
	return &natsClient{
		conn:   conn,
		logger: logger,
	}, nil
}

type VerificationSubmittedMessage struct {
	PrincipalID string `json:"principal_id"`
	IDType      string `json:"id_type"`
	IDNumber    string `json:"id_number"`
	SubmittedAt string `json:"submitted_at"`
}

type OfferSubmittedMessage struct {
	OfferID       string `json:"offer_id"`
	LoanRequestID string `json:"loan_request_id"`
	LenderID      string `json:"lender_id"`
	ROIPercent    string `json:"roi_percent"`
	EMI           string `json:"emi"`
}

type VerificationReviewedMessage struct {
	PrincipalID string `json:"principal_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

func (c *natsClient) PublishVerificationSubmitted(ctx context.Context, rec *domain.VerificationRecord) error {
	msg := VerificationSubmittedMessage{
		PrincipalID: rec.PrincipalID,
		IDType:      string(rec.IDType),
		IDNumber:    rec.IDNumber,
		SubmittedAt: rec.SubmittedAt.UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal verification submitted message", zap.Error(err))
		return fmt.Errorf("failed to marshal verification submitted message: %w", err)
	}

	err = c.conn.Publish("kyc.submitted", data)
	if err != nil {
		c.logger.Error("failed to publish verification submitted", zap.Error(err), zap.String("principal_id", rec.PrincipalID))
		return fmt.Errorf("failed to publish verification submitted: %w", err)
	}

	c.logger.Info("verification submitted event published", zap.String("principal_id", rec.PrincipalID))
	return nil
}

func (c *natsClient) PublishOfferSubmitted(ctx context.Context, offer *domain.LoanOffer) error {
	msg := OfferSubmittedMessage{
		OfferID:       offer.ID,
		LoanRequestID: offer.LoanRequestID,
		LenderID:      offer.LenderID,
		ROIPercent:    offer.ROIPercent.String(),
		EMI:           offer.EMI.StringFixed(2),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal offer submitted message", zap.Error(err))
		return fmt.Errorf("failed to marshal offer submitted message: %w", err)
	}

	err = c.conn.Publish("offer.submitted", data)
	if err != nil {
		c.logger.Error("failed to publish offer submitted", zap.Error(err), zap.String("offer_id", offer.ID))
		return fmt.Errorf("failed to publish offer submitted: %w", err)
	}

	c.logger.Info("offer submitted event published", zap.String("offer_id", offer.ID))
	return nil
}

func (c *natsClient) SubscribeToVerificationReviewed(ctx context.Context, handler func(VerificationReviewedMessage)) error {
	_, err := c.conn.Subscribe("kyc.reviewed", func(msg *nats.Msg) {
		var reviewed VerificationReviewedMessage
		if err := json.Unmarshal(msg.Data, &reviewed); err != nil {
			c.logger.Error("failed to unmarshal verification reviewed message", zap.Error(err))
			return
		}

		handler(reviewed)
		c.logger.Info("verification reviewed message processed",
			zap.String("principal_id", reviewed.PrincipalID),
			zap.String("status", reviewed.Status))
	})

	if err != nil {
		c.logger.Error("failed to subscribe to verification reviewed", zap.Error(err))
		return fmt.Errorf("failed to subscribe to verification reviewed: %w", err)
	}

	c.logger.Info("subscribed to verification reviewed messages")
	return nil
}

func (c *natsClient) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.logger.Info("NATS connection closed")
	}
}
