package kafka

import (
	"github.com/Shopify/sarama"
	gometrics "github.com/rcrowley/go-metrics"
)

// NewSaramaConfig returns a sarama config suitable for both the source and the
// sink. Client metrics are recorded into registry when it is not nil.
func NewSaramaConfig(clientId string, registry gometrics.Registry) *sarama.Config {
	c := sarama.NewConfig()
	c.ClientID = clientId
	c.Version = sarama.V2_0_0_0
	c.Consumer.Return.Errors = true
	c.Consumer.Offsets.Initial = sarama.OffsetOldest
	c.Producer.Return.Successes = true
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Partitioner = sarama.NewHashPartitioner
	if registry != nil {
		c.MetricRegistry = registry
	}

	return c
}
