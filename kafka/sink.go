package kafka

import (
	"context"
	"fmt"
	"github.com/Shopify/sarama"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/encoding"
	"github.com/pickme-go/k-join/join"
	"github.com/pickme-go/k-join/logger"
	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	"time"
)

type SinkConfig struct {
	Topic           string
	KeyEncoder      encoding.Encoder
	// ValueEncoder encodes Pair.Joined, or a PairValue when the pair was not mapped.
	ValueEncoder    encoding.Encoder
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func NewSinkConfig(topic string) *SinkConfig {
	return &SinkConfig{
		Topic:           topic,
		KeyEncoder:      encoding.StringEncoder{},
		ValueEncoder:    encoding.JsonEncoder{},
		Logger:          logger.DefaultLogger,
		MetricsReporter: metrics.NoopReporter(),
	}
}

type PairValue struct {
	Primary   interface{} `json:"primary"`
	Secondary interface{} `json:"secondary"`
}

// Sink produces joined pairs to a topic with a sarama SyncProducer.
type Sink struct {
	config   *SinkConfig
	producer sarama.SyncProducer
	logger   log.Logger
	metrics  struct {
		produceLatency metrics.Observer
	}
}

func NewSink(producer sarama.SyncProducer, config *SinkConfig) (*Sink, error) {
	if config.Topic == `` {
		return nil, errors.New(`sink topic cannot be empty`)
	}

	s := &Sink{
		config:   config,
		producer: producer,
		logger:   logger.Named(config.Logger, fmt.Sprintf(`kafka-sink-%s`, config.Topic)),
	}
	s.metrics.produceLatency = config.MetricsReporter.Observer(metrics.MetricConf{
		Path:   `k_join_kafka_sink_produced_latency_microseconds`,
		Labels: []string{`topic`, `partition`},
	})

	return s, nil
}

func (s *Sink) Produce(ctx context.Context, pair join.Pair) (partition int32, offset int64, err error) {
	t := time.Now()

	key, err := s.config.KeyEncoder.Encode(pair.Key)
	if err != nil {
		return 0, 0, errors.WithPrevious(err, `key encode error`)
	}

	var v interface{} = PairValue{Primary: pair.Primary, Secondary: pair.Secondary}
	if pair.Joined != nil {
		v = pair.Joined
	}

	value, err := s.config.ValueEncoder.Encode(v)
	if err != nil {
		return 0, 0, errors.WithPrevious(err, fmt.Sprintf(`value encode error for key [%v]`, pair.Key))
	}

	p, o, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     s.config.Topic,
		Key:       sarama.ByteEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: t,
	})
	if err != nil {
		return 0, 0, errors.WithPrevious(err, `cannot send message`)
	}

	s.metrics.produceLatency.Observe(float64(time.Since(t).Nanoseconds()/1e3), map[string]string{
		`topic`:     s.config.Topic,
		`partition`: fmt.Sprint(p),
	})
	s.logger.DebugContext(ctx, fmt.Sprintf(`delivered pair [%v] to %s[%d]@%d`, pair.Key, s.config.Topic, p, o))

	return p, o, nil
}

// Drain produces every pair read from pairs until the channel is closed or ctx
// is done.
func (s *Sink) Drain(ctx context.Context, pairs <-chan join.Pair) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pair, ok := <-pairs:
			if !ok {
				return nil
			}
			if _, _, err := s.Produce(ctx, pair); err != nil {
				return err
			}
		}
	}
}

func (s *Sink) Close() error {
	defer s.logger.Info(`sink closed`)
	return s.producer.Close()
}
