package monitor

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc"

	"go-sysmonitor/pkg/logger"
)

// Poller 独立运行直到 ctx 取消
type Poller interface {
	Run(ctx context.Context)
}

// Monitor 管理采样、连接枚举、信誉检查三个轮询器的生命周期
type Monitor struct {
	bus     *Bus
	pollers []Poller

	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
}

func New(bus *Bus, pollers ...Poller) *Monitor {
	return &Monitor{
		bus:     bus,
		pollers: pollers,
		cancel:  func() {},
		done:    make(chan struct{}),
	}
}

// Start 每个轮询器一个协程，全部退出后关闭事件总线
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.cancel = context.WithCancel(ctx)

		var wg conc.WaitGroup
		for _, p := range m.pollers {
			p := p
			wg.Go(func() { p.Run(ctx) })
		}
		logger.Log.Infof("监控已启动，轮询器数量: %d", len(m.pollers))

		go func() {
			if r := wg.WaitAndRecover(); r != nil {
				logger.Log.Errorf("轮询器异常退出: %v", r.AsError())
			}
			m.bus.Close()
			close(m.done)
		}()
	})
}

// Done 所有轮询器退出且事件分发完毕后关闭
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// RequestShutdown 通知所有轮询器停止并等待全部退出
// ctx 先结束时放弃等待并返回 ctx.Err()
func (m *Monitor) RequestShutdown(ctx context.Context) error {
	m.startOnce.Do(func() {
		m.bus.Close()
		close(m.done)
	})
	m.cancel()

	select {
	case <-m.done:
		logger.Log.Info("所有轮询器已停止")
		return nil
	case <-ctx.Done():
		logger.Log.Warnf("等待轮询器停止超时: %v", ctx.Err())
		return ctx.Err()
	}
}
