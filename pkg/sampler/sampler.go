package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-sysmonitor/pkg/logger"
	"go-sysmonitor/pkg/metrics"
	"go-sysmonitor/pkg/models"
)

// ErrSampling 采样失败，跳过本周期
var ErrSampling = errors.New("采样失败")

var errNoCounters = errors.New("无可用计数器")

// Publisher 接收采样结果
type Publisher interface {
	PublishMetrics(models.MetricsSnapshot)
}

// Sampler 周期性采集 CPU/内存/磁盘使用率与网络吞吐
type Sampler struct {
	src      HostSource
	pub      Publisher
	interval time.Duration
	sleep    func(time.Duration)
	now      func() time.Time
}

func New(src HostSource, pub Publisher, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sampler{
		src:      src,
		pub:      pub,
		interval: interval,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// ThroughputKbps 两次计数之差换算为 kbps，计数器回绕时返回 0
func ThroughputKbps(start, end uint64) float64 {
	if end < start {
		return 0
	}
	return float64(end-start) * 8 / 1024
}

// Sample 读取收发计数，等待一个周期后再读一次，周期结束时读取使用率
func (s *Sampler) Sample(ctx context.Context) (models.MetricsSnapshot, error) {
	sentStart, recvStart, err := s.src.NetCounters(ctx)
	if err != nil {
		return models.MetricsSnapshot{}, fmt.Errorf("%w: 网络计数: %w", ErrSampling, err)
	}

	s.sleep(s.interval)

	sentEnd, recvEnd, err := s.src.NetCounters(ctx)
	if err != nil {
		return models.MetricsSnapshot{}, fmt.Errorf("%w: 网络计数: %w", ErrSampling, err)
	}

	cpuPct, err := s.src.CPUPercent(ctx)
	if err != nil {
		return models.MetricsSnapshot{}, fmt.Errorf("%w: CPU: %w", ErrSampling, err)
	}
	ramPct, err := s.src.MemoryPercent(ctx)
	if err != nil {
		return models.MetricsSnapshot{}, fmt.Errorf("%w: 内存: %w", ErrSampling, err)
	}
	diskPct, err := s.src.DiskPercent(ctx)
	if err != nil {
		return models.MetricsSnapshot{}, fmt.Errorf("%w: 磁盘: %w", ErrSampling, err)
	}
	physical, logical, err := s.src.CoreCounts(ctx)
	if err != nil {
		return models.MetricsSnapshot{}, fmt.Errorf("%w: 核心数: %w", ErrSampling, err)
	}

	return models.MetricsSnapshot{
		Timestamp:     s.now(),
		CPUPercent:    cpuPct,
		RAMPercent:    ramPct,
		DiskPercent:   diskPct,
		NetSendKbps:   ThroughputKbps(sentStart, sentEnd),
		NetRecvKbps:   ThroughputKbps(recvStart, recvEnd),
		PhysicalCores: physical,
		LogicalCores:  logical,
	}, nil
}

// Run 采样循环，ctx 取消后在周期边界退出
func (s *Sampler) Run(ctx context.Context) {
	ioCtx := context.WithoutCancel(ctx)
	for ctx.Err() == nil {
		snap, err := s.Sample(ioCtx)
		if err != nil {
			metrics.PollerErrors.WithLabelValues(metrics.PollerSampler).Inc()
			logger.Log.Warnf("主机采样失败: %v", err)
			wait(ctx, s.interval)
			continue
		}
		metrics.PollerCycles.WithLabelValues(metrics.PollerSampler).Inc()
		s.pub.PublishMetrics(snap)
	}
}

func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
