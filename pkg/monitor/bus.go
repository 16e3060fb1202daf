package monitor

import (
	"sync"

	"github.com/sourcegraph/conc/panics"

	"go-sysmonitor/pkg/logger"
	"go-sysmonitor/pkg/metrics"
	"go-sysmonitor/pkg/models"
)

const (
	kindMetrics     = "metrics"
	kindConnections = "connections"
	kindReputation  = "reputation"
)

type event struct {
	kind     string
	snapshot models.MetricsSnapshot
	records  []models.ConnectionRecord
	verdict  models.Verdict
}

// Bus 轮询器到观察者的单向事件总线
// 发布不阻塞，缓冲区满时丢弃事件并计数
type Bus struct {
	events    chan event
	observers []Observer
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewBus(size int, observers ...Observer) *Bus {
	if size <= 0 {
		size = 256
	}
	b := &Bus{
		events:    make(chan event, size),
		observers: observers,
		done:      make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *Bus) PublishMetrics(s models.MetricsSnapshot) {
	b.publish(event{kind: kindMetrics, snapshot: s})
}

func (b *Bus) PublishConnections(records []models.ConnectionRecord) {
	b.publish(event{kind: kindConnections, records: records})
}

func (b *Bus) PublishVerdict(v models.Verdict) {
	b.publish(event{kind: kindReputation, verdict: v})
}

func (b *Bus) publish(e event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- e:
	default:
		metrics.EventsDropped.WithLabelValues(e.kind).Inc()
		logger.Log.Debugf("事件缓冲区已满，丢弃 %s 事件", e.kind)
	}
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.events {
		for _, o := range b.observers {
			b.deliver(o, e)
		}
	}
}

// deliver 单个观察者 panic 不影响其他观察者
func (b *Bus) deliver(o Observer, e event) {
	var pc panics.Catcher
	pc.Try(func() {
		switch e.kind {
		case kindMetrics:
			o.OnMetrics(e.snapshot)
		case kindConnections:
			o.OnConnections(e.records)
		case kindReputation:
			v := e.verdict
			o.OnReputationResult(v.IP, v.Whitelisted(), v.ConfidenceScore, v.CountryOrNone())
		}
	})
	if r := pc.Recovered(); r != nil {
		logger.Log.Errorf("观察者处理 %s 事件异常: %v", e.kind, r.AsError())
	}
}

// Close 停止接收新事件，等待已缓冲的事件分发完毕
func (b *Bus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	b.mu.Unlock()
	<-b.done
}
