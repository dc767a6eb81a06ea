package mq

import (
	"fmt"
	"os"
	"strings"

	"perp-core-sol/internal/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaProducerConf 定义 Kafka 生产者配置（单 topic 场景）
// 所有时间相关参数单位均为毫秒
type KafkaProducerConf struct {
	Brokers            []string `json:"brokers" yaml:"brokers"`                           // Kafka 集群 broker 地址列表
	Topic              string   `json:"topic" yaml:"topic"`                               // 发送的 topic 名称
	LingerMs           int      `json:"linger_ms" yaml:"linger_ms"`                       // 批量聚合等待时间（ms）
	MessageTimeoutMs   int      `json:"message_timeout_ms" yaml:"message_timeout_ms"`     // 消息投递超时（ms）
	ReconnectBackoffMs int      `json:"reconnect_backoff_ms" yaml:"reconnect_backoff_ms"` // 第一次重连延迟
	RetryBackoffMs     int      `json:"retry_backoff_ms" yaml:"retry_backoff_ms"`         // 发送失败重试间隔
}

// NewKafkaProducer 创建 Kafka 生产者实例
func NewKafkaProducer(config *KafkaProducerConf) (*kafka.Producer, error) {
	if len(config.Brokers) == 0 || config.Topic == "" {
		return nil, fmt.Errorf("kafka producer conf incomplete: brokers=%v, topic=%q", config.Brokers, config.Topic)
	}

	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers":    strings.Join(config.Brokers, ","),
		"acks":                 "all",
		"linger.ms":            config.LingerMs,
		"message.timeout.ms":   config.MessageTimeoutMs,
		"reconnect.backoff.ms": config.ReconnectBackoffMs,
		"retry.backoff.ms":     config.RetryBackoffMs,
		"client.id":            producerClientID(config.Topic),
	}

	producer, err := kafka.NewProducer(kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer failed: %w", err)
	}

	logger.Infof("[KafkaProducer] New: brokers=%v, topic=%s", config.Brokers, config.Topic)
	return producer, nil
}

func producerClientID(topic string) string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return fmt.Sprintf("producer-%s-%s", topic, hostname)
}
