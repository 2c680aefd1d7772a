package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront-validation/internal/domain"
	pkgkafka "github.com/utafrali/storefront-validation/pkg/kafka"
	"github.com/utafrali/storefront-validation/pkg/logger"
)

// Kafka topics for validation domain events.
var (
	TopicAddressVerified = pkgkafka.Topic("address", "verified")
	TopicEmailValidated  = pkgkafka.Topic("email", "validated")
	TopicPhoneValidated  = pkgkafka.Topic("phone", "validated")
)

// Aggregate type constant.
const AggregateTypeSession = "validation_session"

// Source identifier for events originating from the validation service.
const SourceValidationService = "validation-service"

// AddressVerifiedData is the payload for an address.verified event.
type AddressVerifiedData struct {
	VerificationID string `json:"verification_id"`
	SessionID      string `json:"session_id,omitempty"`
	Country        string `json:"country"`
	PostalCode     string `json:"postal_code"`
	City           string `json:"city"`
	Status         string `json:"status"`
	AVC            string `json:"avc,omitempty"`
	MatchScore     int    `json:"match_score"`
	TraceID        string `json:"trace_id,omitempty"`
}

// EmailValidatedData is the payload for an email.validated event. Only the
// domain of the address is published.
type EmailValidatedData struct {
	SessionID    string `json:"session_id,omitempty"`
	Domain       string `json:"domain,omitempty"`
	ResponseCode string `json:"response_code"`
	IsValid      bool   `json:"is_valid"`
}

// PhoneValidatedData is the payload for a phone.validated event.
type PhoneValidatedData struct {
	SessionID string `json:"session_id,omitempty"`
	Country   string `json:"country,omitempty"`
	IsValid   bool   `json:"is_valid"`
}

// publisher is the part of pkgkafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes validation domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the validation service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return newProducer(kafka, logger)
}

func newProducer(p publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: p, logger: logger}
}

// PublishAddressVerified publishes an address.verified event.
func (p *Producer) PublishAddressVerified(ctx context.Context, rec domain.VerificationRecord) error {
	data := AddressVerifiedData{
		VerificationID: rec.ID,
		SessionID:      rec.SessionID,
		Country:        rec.Country,
		PostalCode:     rec.PostalCode,
		City:           rec.City,
		Status:         string(rec.Status),
		AVC:            rec.AVC,
		MatchScore:     rec.MatchScore,
		TraceID:        rec.TraceID,
	}
	return p.publish(ctx, TopicAddressVerified, aggregateID(rec.SessionID, rec.ID), data)
}

// PublishEmailValidated publishes an email.validated event.
func (p *Producer) PublishEmailValidated(ctx context.Context, sessionID string, res domain.EmailValidation) error {
	data := EmailValidatedData{
		SessionID:    sessionID,
		Domain:       res.Domain,
		ResponseCode: res.ResponseCode,
		IsValid:      res.IsValid,
	}
	return p.publish(ctx, TopicEmailValidated, aggregateID(sessionID, res.Domain), data)
}

// PublishPhoneValidated publishes a phone.validated event.
func (p *Producer) PublishPhoneValidated(ctx context.Context, sessionID, country string, valid bool) error {
	data := PhoneValidatedData{SessionID: sessionID, Country: country, IsValid: valid}
	return p.publish(ctx, TopicPhoneValidated, aggregateID(sessionID, country), data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregate string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregate, AggregateTypeSession, SourceValidationService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published validation event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregate),
	)
	return nil
}

// aggregateID keys events by session so one session's events stay ordered.
// Requests made outside a session fall back to the given id.
func aggregateID(sessionID, fallback string) string {
	if sessionID != "" {
		return sessionID
	}
	return fallback
}
