package handoff

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	myLogger "github.com/pcristin/flashsale/internal/logger"
)

// ErrProduceTimeout is returned when the durable log doesn't ack a handoff
// within the bounded deadline passed to Produce.
var ErrProduceTimeout = fmt.Errorf("handoff: durable log did not ack within deadline")

// Producer writes OrderHandoff envelopes to the durable partitioned log.
type Producer struct {
	client      *kgo.Client
	topic       string
	partitions  int32
	produceWait time.Duration
}

// Config controls the franz-go client and the per-call produce deadline.
type Config struct {
	Brokers        []string
	Topic          string
	Partitions     int32
	ProduceTimeout time.Duration
}

// NewProducer constructs a Producer against the given brokers.
func NewProducer(cfg Config) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordPartitioner(kgo.ManualPartitioner()),
	)
	if err != nil {
		return nil, fmt.Errorf("handoff: failed to construct producer client: %w", err)
	}

	wait := cfg.ProduceTimeout
	if wait <= 0 {
		wait = 2 * time.Second
	}

	return &Producer{
		client:      client,
		topic:       cfg.Topic,
		partitions:  cfg.Partitions,
		produceWait: wait,
	}, nil
}

// Close releases the underlying client.
func (p *Producer) Close() {
	p.client.Close()
}

// Produce writes one OrderHandoff, awaiting the ack with a bounded timeout.
// A failure here means C9 must invoke the compensating inventory rollback.
func (p *Producer) Produce(ctx context.Context, handoff OrderHandoff) error {
	logger := myLogger.FromContext(ctx, "handoff")

	data, err := handoff.Marshal()
	if err != nil {
		return fmt.Errorf("handoff: failed to marshal envelope: %w", err)
	}

	produceCtx, cancel := context.WithTimeout(ctx, p.produceWait)
	defer cancel()

	record := &kgo.Record{
		Topic:     p.topic,
		Key:       []byte(handoff.UserID),
		Value:     data,
		Partition: PartitionFor(handoff.UserID, p.partitions),
	}

	resultCh := make(chan error, 1)
	p.client.Produce(produceCtx, record, func(_ *kgo.Record, err error) {
		resultCh <- err
	})

	select {
	case err := <-resultCh:
		if err != nil {
			logger.Error("handoff | produce failed", "order_id", handoff.OrderID, "error", err)
			return fmt.Errorf("handoff: produce failed: %w", err)
		}
		logger.Info("handoff | order handed off", "order_id", handoff.OrderID, "sku", handoff.SKU)
		return nil
	case <-produceCtx.Done():
		logger.Error("handoff | produce timed out", "order_id", handoff.OrderID)
		return ErrProduceTimeout
	}
}
