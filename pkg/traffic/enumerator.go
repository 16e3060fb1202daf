package traffic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go-sysmonitor/pkg/logger"
	"go-sysmonitor/pkg/metrics"
	"go-sysmonitor/pkg/models"
)

// ErrEnumeration 读取套接字表失败
var ErrEnumeration = errors.New("连接枚举失败")

// Publisher 接收每周期的连接列表
type Publisher interface {
	PublishConnections([]models.ConnectionRecord)
}

// TrafficWriter 流量日志
type TrafficWriter interface {
	Append([]models.ConnectionRecord) error
}

// AddressPersister 地址集合存储
type AddressPersister interface {
	Load() ([]string, error)
	Save([]string) error
}

// Enumerator 周期性枚举网络连接，记录流量日志并维护去重地址集合
// 地址集合只增不减，启动时从磁盘恢复
type Enumerator struct {
	src       SocketSource
	traffic   TrafficWriter
	addresses AddressPersister
	pub       Publisher
	interval  time.Duration

	seen   map[string]struct{}
	loaded bool
}

func NewEnumerator(src SocketSource, traffic TrafficWriter, addresses AddressPersister, pub Publisher, interval time.Duration) *Enumerator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Enumerator{
		src:       src,
		traffic:   traffic,
		addresses: addresses,
		pub:       pub,
		interval:  interval,
		seen:      make(map[string]struct{}),
	}
}

// Enumerate 列出当前所有 inet 连接
func (e *Enumerator) Enumerate(ctx context.Context) ([]models.ConnectionRecord, error) {
	conns, err := e.src.Connections(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}
	records := make([]models.ConnectionRecord, 0, len(conns))
	for _, c := range conns {
		records = append(records, toRecord(c))
	}
	return records, nil
}

// Cycle 执行一个完整周期：枚举、追加流量日志、合并地址、覆盖写地址集合、通知观察者
func (e *Enumerator) Cycle(ctx context.Context) error {
	if !e.loaded {
		ips, err := e.addresses.Load()
		if err != nil {
			return err
		}
		for _, ip := range ips {
			e.seen[ip] = struct{}{}
		}
		e.loaded = true
	}

	records, err := e.Enumerate(ctx)
	if err != nil {
		return err
	}

	if err := e.traffic.Append(records); err != nil {
		return err
	}

	for _, r := range records {
		e.add(r.Local.IP)
		if r.Remote != nil {
			e.add(r.Remote.IP)
		}
	}
	if err := e.addresses.Save(e.Addresses()); err != nil {
		return err
	}
	metrics.AddressSetSize.Set(float64(len(e.seen)))

	e.pub.PublishConnections(records)
	return nil
}

func (e *Enumerator) add(ip string) {
	if ip == "" {
		return
	}
	e.seen[ip] = struct{}{}
}

// Addresses 当前地址集合（已排序）
func (e *Enumerator) Addresses() []string {
	out := make([]string, 0, len(e.seen))
	for ip := range e.seen {
		out = append(out, ip)
	}
	sort.Strings(out)
	return out
}

// Run 枚举循环，任何错误只中止当前周期
func (e *Enumerator) Run(ctx context.Context) {
	ioCtx := context.WithoutCancel(ctx)
	for ctx.Err() == nil {
		if err := e.Cycle(ioCtx); err != nil {
			metrics.PollerErrors.WithLabelValues(metrics.PollerEnumerator).Inc()
			logger.Log.Warnf("连接枚举周期失败: %v", err)
		} else {
			metrics.PollerCycles.WithLabelValues(metrics.PollerEnumerator).Inc()
		}

		t := time.NewTimer(e.interval)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}
}
