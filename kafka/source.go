package kafka

import (
	"context"
	"fmt"
	"github.com/Shopify/sarama"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/encoding"
	"github.com/pickme-go/k-join/logger"
	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	"io"
	"sync"
	"time"
)

type SourceConfig struct {
	Topic             string
	// Partitions to consume, all partitions of Topic when empty.
	Partitions        []int32
	Offset            int64
	ChannelBufferSize int
	KeyEncoder        encoding.Encoder
	ValueEncoder      encoding.Encoder
	Logger            log.Logger
	MetricsReporter   metrics.Reporter
}

func NewSourceConfig(topic string) *SourceConfig {
	return &SourceConfig{
		Topic:             topic,
		Offset:            sarama.OffsetOldest,
		ChannelBufferSize: 100,
		KeyEncoder:        encoding.StringEncoder{},
		ValueEncoder:      encoding.StringEncoder{},
		Logger:            logger.DefaultLogger,
		MetricsReporter:   metrics.NoopReporter(),
	}
}

// Source reads one topic through a set of sarama partition consumers and yields
// decoded records. Records of a partition keep their order, partitions are
// interleaved.
type Source struct {
	config    *SourceConfig
	consumers []sarama.PartitionConsumer
	messages  chan *sarama.ConsumerMessage
	errs      chan error
	logger    log.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
	closing   chan struct{}
	metrics   struct {
		consumed        metrics.Counter
		endToEndLatency metrics.Observer
	}
}

func NewSource(consumer sarama.Consumer, config *SourceConfig) (*Source, error) {
	if config.Topic == `` {
		return nil, errors.New(`source topic cannot be empty`)
	}

	partitions := config.Partitions
	if len(partitions) == 0 {
		pts, err := consumer.Partitions(config.Topic)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot fetch partitions of [%s]`, config.Topic))
		}
		partitions = pts
	}

	s := &Source{
		config:   config,
		messages: make(chan *sarama.ConsumerMessage, config.ChannelBufferSize),
		errs:     make(chan error, 1),
		closing:  make(chan struct{}),
		logger:   logger.Named(config.Logger, fmt.Sprintf(`kafka-source-%s`, config.Topic)),
	}

	labels := []string{`topic`, `partition`}
	s.metrics.consumed = config.MetricsReporter.Counter(metrics.MetricConf{
		Path:   `k_join_kafka_source_consumed`,
		Labels: labels,
	})
	s.metrics.endToEndLatency = config.MetricsReporter.Observer(metrics.MetricConf{
		Path:   `k_join_kafka_source_end_to_end_latency_microseconds`,
		Labels: labels,
	})

	for _, p := range partitions {
		pc, err := consumer.ConsumePartition(config.Topic, p, config.Offset)
		if err != nil {
			s.Close()
			return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot initiate partition consumer for %s[%d]`, config.Topic, p))
		}
		s.consumers = append(s.consumers, pc)
		s.wg.Add(2)
		go s.consumeRecords(pc)
		go s.consumeErrors(pc)
	}

	s.logger.Info(fmt.Sprintf(`consuming partitions %v`, partitions))

	return s, nil
}

func (s *Source) consumeRecords(pc sarama.PartitionConsumer) {
	defer s.wg.Done()
	for msg := range pc.Messages() {
		select {
		case s.messages <- msg:
		case <-s.closing:
			return
		}
	}
}

func (s *Source) consumeErrors(pc sarama.PartitionConsumer) {
	defer s.wg.Done()
	for err := range pc.Errors() {
		s.logger.Error(fmt.Sprintf(`partition consumer error on %s[%d]: %s`, err.Topic, err.Partition, err.Err))
		select {
		case s.errs <- err:
		default:
		}
	}
}

// Next blocks until a record arrives. It returns io.EOF once the source is
// closed and a consumer error if a partition consumer failed.
func (s *Source) Next(ctx context.Context) (key, value interface{}, err error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-s.closing:
		return nil, nil, io.EOF
	case err := <-s.errs:
		return nil, nil, errors.WithPrevious(err, `partition consumer failed`)
	case msg := <-s.messages:
		return s.decode(msg)
	}
}

func (s *Source) decode(msg *sarama.ConsumerMessage) (key, value interface{}, err error) {
	lbs := map[string]string{
		`topic`:     msg.Topic,
		`partition`: fmt.Sprint(msg.Partition),
	}
	s.metrics.consumed.Count(1, lbs)
	if !msg.Timestamp.IsZero() {
		s.metrics.endToEndLatency.Observe(float64(time.Since(msg.Timestamp).Nanoseconds()/1e3), lbs)
	}

	// records without a key are passed through so the co-stream can reject them
	if len(msg.Key) > 0 {
		key, err = s.config.KeyEncoder.Decode(msg.Key)
		if err != nil {
			return nil, nil, errors.WithPrevious(err, fmt.Sprintf(`key decode error at %s[%d]@%d`, msg.Topic, msg.Partition, msg.Offset))
		}
	}

	value, err = s.config.ValueEncoder.Decode(msg.Value)
	if err != nil {
		return nil, nil, errors.WithPrevious(err, fmt.Sprintf(`value decode error at %s[%d]@%d`, msg.Topic, msg.Partition, msg.Offset))
	}

	return key, value, nil
}

func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		for _, pc := range s.consumers {
			if e := pc.Close(); e != nil {
				s.logger.Error(fmt.Sprintf(`partition consumer close error: %s`, e))
				err = e
			}
		}
		s.wg.Wait()
		s.logger.Info(`source closed`)
	})

	return err
}
