package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProducerMessagesPublished counts messages published successfully.
	ProducerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Total number of Kafka messages published",
		},
		[]string{"topic"},
	)

	// ProducerPublishErrors counts publish failures.
	ProducerPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Total number of Kafka publish errors",
		},
		[]string{"topic"},
	)

	// ProducerPublishDuration observes publish latency.
	ProducerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Duration of Kafka publish operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)
