package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollerCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sysmonitor_poller_cycles_total",
		Help: "轮询器完成的周期数",
	}, []string{"poller"})

	PollerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sysmonitor_poller_errors_total",
		Help: "轮询器失败的周期数",
	}, []string{"poller"})

	ReputationQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sysmonitor_reputation_queries_total",
		Help: "信誉查询次数（按结果）",
	}, []string{"outcome"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sysmonitor_rate_limited_total",
		Help: "因限流中止的检查轮次",
	})

	FlaggedAddresses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sysmonitor_flagged_addresses_total",
		Help: "标记为恶意的地址总数",
	})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sysmonitor_events_dropped_total",
		Help: "观察者缓冲区满时丢弃的事件",
	}, []string{"kind"})

	AddressSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sysmonitor_address_set_size",
		Help: "已观察到的去重地址数",
	})

	ConnectionsObserved = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sysmonitor_connections",
		Help: "最近一次枚举的连接数",
	}, []string{"protocol"})

	HostUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sysmonitor_host_usage_percent",
		Help: "主机资源使用率",
	}, []string{"resource"})

	NetworkThroughput = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sysmonitor_network_kbps",
		Help: "网络吞吐 (kbps)",
	}, []string{"direction"})
)

// 轮询器名称
const (
	PollerSampler    = "sampler"
	PollerEnumerator = "enumerator"
	PollerChecker    = "checker"
)

// 信誉查询结果
const (
	OutcomeResolved    = "resolved"
	OutcomeFailed      = "failed"
	OutcomeRateLimited = "rate_limited"
	OutcomeLocal       = "local_whitelist"
)
