// Package events publishes coupon usage events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
)

// EventCouponUsed is the type of the event sent after a usage commit.
const EventCouponUsed = "coupon.used"

// UsageEvent describes one committed coupon usage.
type UsageEvent struct {
	Type     string    `json:"type"`
	UsageID  string    `json:"usageId"`
	CouponID string    `json:"couponId"`
	Code     string    `json:"code,omitempty"`
	UserID   string    `json:"userId,omitempty"`
	OrderID  string    `json:"orderId,omitempty"`
	UsedAt   time.Time `json:"usedAt"`
}

// Publisher delivers usage events.
type Publisher interface {
	PublishUsage(ctx context.Context, event UsageEvent) error
}

// SQSAPI is the part of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends usage events to an SQS queue as JSON.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
	logger   zerolog.Logger
}

// NewSQSPublisher returns a Publisher bound to a queue URL.
func NewSQSPublisher(client SQSAPI, queueURL string, logger zerolog.Logger) *SQSPublisher {
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger.With().Str("component", "usage-events").Logger(),
	}
}

// PublishUsage sends event with its type and coupon id as message attributes.
func (p *SQSPublisher) PublishUsage(ctx context.Context, event UsageEvent) error {
	if event.Type == "" {
		event.Type = EventCouponUsed
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(event.Type)},
			"coupon_id":  {DataType: aws.String("String"), StringValue: aws.String(event.CouponID)},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		p.logger.Error().Err(err).Str("usage_id", event.UsageID).Msg("failed to publish usage event")
		return fmt.Errorf("send message: %w", err)
	}

	p.logger.Debug().Str("usage_id", event.UsageID).Str("coupon_id", event.CouponID).Msg("usage event published")
	return nil
}

// NopPublisher discards events.
type NopPublisher struct{}

// PublishUsage does nothing.
func (NopPublisher) PublishUsage(context.Context, UsageEvent) error { return nil }
