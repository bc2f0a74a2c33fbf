package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lephuong249/storefront-orders/internal/models"
)

var ErrPublisherDisabled = errors.New("events: no brokers configured")

// Publisher delivers a batch of outbox records to the bus. It returns the
// ids of the records the bus acknowledged; with a non-nil error that may be
// a strict subset.
type Publisher interface {
	Publish(ctx context.Context, records []models.OutboxRecord) ([]int64, error)
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a writer keyed by order id so that events of one
// order land on the same partition.
func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, ErrPublisherDisabled
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    DefaultBatchSize,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}}, nil
}

// Publish writes the whole batch with one WriteMessages call.
func (p *KafkaPublisher) Publish(ctx context.Context, records []models.OutboxRecord) ([]int64, error) {
	msgs := make([]kafka.Message, len(records))
	for i, rec := range records {
		msgs[i] = kafka.Message{
			Topic: rec.Topic,
			Key:   []byte(rec.Key),
			Value: rec.Payload,
			Time:  rec.CreatedAt,
		}
	}
	err := p.writer.WriteMessages(ctx, msgs...)
	if err == nil {
		return recordIDs(records), nil
	}
	var writeErrs kafka.WriteErrors
	if !errors.As(err, &writeErrs) || len(writeErrs) != len(records) {
		return nil, err
	}
	var ok []int64
	for i, werr := range writeErrs {
		if werr == nil {
			ok = append(ok, records[i].ID)
		}
	}
	return ok, err
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func recordIDs(records []models.OutboxRecord) []int64 {
	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	return ids
}
