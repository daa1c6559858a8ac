// Package audit publishes admission decision events to Kafka. Auditing is
// optional: when disabled the pipeline runs with a nil sink.
package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/mcs-platform/mcs-gateway/internal/application/admission"
	"github.com/mcs-platform/mcs-gateway/internal/config"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

// KafkaProducer is a Kafka-backed admission.AuditSink.
type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

// NewKafkaProducer creates a producer for the configured audit topic.
func NewKafkaProducer(cfg *config.AuditConfig, log logger.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
	}
	return &KafkaProducer{
		writer: writer,
		logger: log.WithComponent("audit"),
	}
}

// RecordDecision publishes one decision event. Failures are logged and
// swallowed: auditing never affects the caller's response.
func (p *KafkaProducer) RecordDecision(ctx context.Context, event admission.DecisionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "Failed to marshal audit event", err)
		return
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TenantID),
		Value: payload,
	}); err != nil {
		p.logger.Error(ctx, "Failed to publish audit event", err,
			logger.String("request_id", event.RequestID),
		)
	}
}

// Close closes the underlying Kafka writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
