package notify

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"perp-core-sol/internal/perp/types"
	"perp-core-sol/internal/pkg/logger"
	"perp-core-sol/internal/pkg/mq"
	"perp-core-sol/internal/pkg/utils"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	eventChanSize = 1024
	flushWaitMs   = 3000
)

// KafkaNotifier 异步把引擎事件推送到单个 Kafka topic。
// Notify 永不阻塞：队列满或已停止时丢弃并限频告警。
type KafkaNotifier struct {
	producer *kafka.Producer
	topic    string

	events chan types.Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	lastDropLogTime  atomic.Int64
	lastErrorLogTime atomic.Int64
}

func NewKafkaNotifier(config *mq.KafkaProducerConf) (*KafkaNotifier, error) {
	producer, err := mq.NewKafkaProducer(config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaNotifier{
		producer: producer,
		topic:    config.Topic,
		events:   make(chan types.Event, eventChanSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Start 启动发送循环，实现 service.Service
func (n *KafkaNotifier) Start() {
	n.loop()
}

// Stop 停止接收新事件并刷出已入队消息
func (n *KafkaNotifier) Stop() {
	n.cancel()
	<-n.done
	n.producer.Flush(flushWaitMs)
	n.producer.Close()
}

func (n *KafkaNotifier) Notify(ev types.Event) {
	select {
	case <-n.ctx.Done():
	case n.events <- ev:
	default:
		if utils.ThrottleLog(&n.lastDropLogTime, 3*time.Second) {
			logger.Warnf("[KafkaNotifier] event chan full (%d), dropping %s", len(n.events), ev.Type)
		}
	}
}

func (n *KafkaNotifier) loop() {
	defer close(n.done)

	// 投递结果只用于记日志，失败不重试
	go n.drainDeliveryReports()

	for {
		select {
		case <-n.ctx.Done():
			return
		case ev := <-n.events:
			n.produce(ev)
		}
	}
}

func (n *KafkaNotifier) produce(ev types.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Warnf("[KafkaNotifier] marshal %s failed: %v", ev.Type, err)
		return
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &n.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(ev.Type),
		Value: data,
	}
	if err := n.producer.Produce(msg, nil); err != nil {
		if utils.ThrottleLog(&n.lastErrorLogTime, 3*time.Second) {
			logger.Errorf("[KafkaNotifier] produce %s failed: %v", ev.Type, err)
		}
	}
}

func (n *KafkaNotifier) drainDeliveryReports() {
	for e := range n.producer.Events() {
		m, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if m.TopicPartition.Error != nil {
			if utils.ThrottleLog(&n.lastErrorLogTime, 3*time.Second) {
				logger.Errorf("[KafkaNotifier] delivery failed: %v", m.TopicPartition.Error)
			}
		}
	}
}
