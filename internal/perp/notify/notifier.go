package notify

import "perp-core-sol/internal/perp/types"

// Notifier 引擎操作成功后的事件出口。
// 实现必须非阻塞：引擎在持有市场锁时调用 Notify。
type Notifier interface {
	Notify(ev types.Event)
}

// NopNotifier 丢弃所有事件，用于测试和未配置 Kafka 的部署
type NopNotifier struct{}

func (NopNotifier) Notify(types.Event) {}
