package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"rideHailing/internal/apperr"
	"rideHailing/internal/observability"
)

// KafkaPublisher writes facts to Kafka, one topic per fact.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, f Fact) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   f.Topic,
		Key:     []byte(f.Key),
		Value:   f.Value,
		Headers: []kafka.Header{{Key: "fact-id", Value: []byte(f.ID)}},
	})
	if err != nil {
		return err
	}
	observability.FactsPublishedTotal.WithLabelValues(f.Topic).Inc()
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// KafkaConsumer pumps one topic into a handler. The offset is committed only
// after the handler succeeds, so a failed application is retried in place and
// redelivered after a restart. Facts are never silently dropped; the one
// exception is a permanent rejection, which is committed with an error log.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler Handler
	log     *slog.Logger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, h Handler, log *slog.Logger) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &KafkaConsumer{reader: r, handler: h, log: log}
}

// Run blocks until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("kafka fetch failed", "topic", c.reader.Config().Topic, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		f := Fact{
			ID:    headerValue(m.Headers, "fact-id"),
			Topic: m.Topic,
			Key:   string(m.Key),
			Value: json.RawMessage(m.Value),
		}

		// Retry the handler in place until it succeeds; committing a fact we
		// failed to apply would drop it.
		applyBackoff := time.Second
		for {
			err := c.handler(ctx, f)
			if err == nil {
				observability.FactsConsumedTotal.WithLabelValues(f.Topic).Inc()
				break
			}
			if permanentFailure(err) {
				// No later fact can make this one apply; retrying in place
				// would wedge the partition. Loud commit instead.
				c.log.Error("fact rejected", "topic", f.Topic, "key", f.Key, "err", err)
				break
			}
			c.log.Warn("fact application failed, will retry", "topic", f.Topic, "key", f.Key, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(applyBackoff):
			}
			applyBackoff *= 2
			if applyBackoff > maxBackoff {
				applyBackoff = maxBackoff
			}
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("kafka commit failed", "topic", f.Topic, "err", err)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// permanentFailure reports a delivery no later fact can cure. Not-found is
// excluded: it usually means the referenced entity's fact has not arrived
// yet, and conflicts or infrastructure failures stay retryable as usual.
func permanentFailure(err error) bool {
	return !apperr.Retryable(err) && apperr.KindOf(err) != apperr.KindNotFound
}

func headerValue(hs []kafka.Header, key string) string {
	for _, h := range hs {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
