package events

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hamba/avro/v2"
	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"

	"storefront_back_end/internal/config"
)

// ProducerClient is the part of *kgo.Client the publisher needs.
type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher encodes events with Avro and produces them synchronously.
type KafkaPublisher struct {
	cl          ProducerClient
	ordersTopic string
	cartTopic   string
}

// NewKafkaPublisher connects to the brokers and checks they answer.
func NewKafkaPublisher(ctx context.Context, cfg config.KafkaConfig) (*KafkaPublisher, error) {
	const op = "events.NewKafkaPublisher"

	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewKafkaPublisherWithClient(cl, cfg.OrdersTopic, cfg.CartTopic), nil
}

func NewKafkaPublisherWithClient(cl ProducerClient, ordersTopic, cartTopic string) *KafkaPublisher {
	return &KafkaPublisher{cl: cl, ordersTopic: ordersTopic, cartTopic: cartTopic}
}

func (p *KafkaPublisher) OrderPlaced(ctx context.Context, e OrderPlaced) error {
	return p.produce(ctx, "KafkaPublisher.OrderPlaced", p.ordersTopic, e.OrderNumber, orderPlacedSchema, e)
}

func (p *KafkaPublisher) CartSynced(ctx context.Context, e CartSynced) error {
	key := strconv.FormatInt(e.UserID, 10)
	return p.produce(ctx, "KafkaPublisher.CartSynced", p.cartTopic, key, cartSyncedSchema, e)
}

func (p *KafkaPublisher) produce(ctx context.Context, op, topic, key string, schema avro.Schema, v any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	b, err := avro.Marshal(schema, v)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	r := &kgo.Record{Topic: topic, Key: []byte(key), Value: b}
	if err := p.cl.ProduceSync(ctx, r).FirstErr(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	logrus.Info("closing kafka producer...")
	p.cl.Close()
	logrus.Info("kafka producer is closed")
}
