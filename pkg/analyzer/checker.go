package analyzer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-sysmonitor/pkg/logger"
	"go-sysmonitor/pkg/metrics"
	"go-sysmonitor/pkg/models"
	"go-sysmonitor/pkg/reputation"
)

// Querier 信誉服务
type Querier interface {
	Check(ctx context.Context, ip string) (models.Verdict, error)
	RateLimited(ctx context.Context) (bool, error)
}

// AddressSource 去重地址集合快照
type AddressSource interface {
	Load() ([]string, error)
}

// VerdictLedger 已检查地址台账
type VerdictLedger interface {
	Contains(ip string) (bool, error)
	Append(models.Verdict) error
}

// FlaggedWriter 恶意地址日志
type FlaggedWriter interface {
	Append(models.Verdict) error
}

// Publisher 接收检查结果
type Publisher interface {
	PublishVerdict(models.Verdict)
}

// Options 检查器参数
type Options struct {
	Threshold        int           // 分数严格大于该值记为恶意
	IdleInterval     time.Duration // 一轮没有任何查询时的停顿
	RateLimitBackoff time.Duration // 被限流后的停顿
}

// ReputationChecker 信誉检查器
// 每轮读取全部地址，跳过台账中已有的地址，其余逐个探测限流后查询并记录
// 每个地址至多记录一次，查询失败也记录为空结果，避免反复查询
type ReputationChecker struct {
	addresses AddressSource
	ledger    VerdictLedger
	flagged   FlaggedWriter
	client    Querier
	pub       Publisher

	whitelist *Whitelist
	geo       CountryResolver

	opts Options
	now  func() time.Time

	mu    sync.Mutex
	state models.RateLimitState
}

func NewReputationChecker(addresses AddressSource, ledger VerdictLedger, flagged FlaggedWriter, client Querier, pub Publisher, opts Options) *ReputationChecker {
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = time.Second
	}
	if opts.RateLimitBackoff <= 0 {
		opts.RateLimitBackoff = time.Minute
	}
	return &ReputationChecker{
		addresses: addresses,
		ledger:    ledger,
		flagged:   flagged,
		client:    client,
		pub:       pub,
		opts:      opts,
		now:       time.Now,
	}
}

// WithWhitelist 设置本地白名单
func (c *ReputationChecker) WithWhitelist(w *Whitelist) *ReputationChecker {
	c.whitelist = w
	return c
}

// WithGeo 设置本地地理库，服务未返回国家时使用
func (c *ReputationChecker) WithGeo(g CountryResolver) *ReputationChecker {
	c.geo = g
	return c
}

// State 最近一次限流探测状态
func (c *ReputationChecker) State() models.RateLimitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ReputationChecker) setState(s models.RateLimitState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Pass 执行一轮检查，返回实际发出的查询数
// 被限流时返回 reputation.ErrRateLimited，剩余地址留到下一轮
// ctx 取消只在地址之间生效，进行中的查询会完成并记录
func (c *ReputationChecker) Pass(ctx context.Context) (int, error) {
	ioCtx := context.WithoutCancel(ctx)

	ips, err := c.addresses.Load()
	if err != nil {
		return 0, err
	}

	queried := 0
	for _, ip := range ips {
		if ctx.Err() != nil {
			break
		}

		checked, err := c.ledger.Contains(ip)
		if err != nil {
			return queried, err
		}
		if checked {
			continue
		}

		// 本地白名单命中不查询，白名单列留空
		if c.whitelist != nil && c.whitelist.ContainsIP(ip) {
			metrics.ReputationQueries.WithLabelValues(metrics.OutcomeLocal).Inc()
			logger.Log.Debugf("本地白名单命中，跳过查询: ip=%s", ip)
			c.record(models.Verdict{IP: ip, Country: c.lookupCountry(ip), CheckedAt: c.now()})
			continue
		}

		limited, err := c.client.RateLimited(ioCtx)
		probedAt := c.now()
		c.setState(models.RateLimitState{LastProbe: probedAt, LimitReached: limited})
		if err != nil {
			logger.Log.Warnf("限流探测失败: %v", err)
		}
		if limited {
			metrics.ReputationQueries.WithLabelValues(metrics.OutcomeRateLimited).Inc()
			return queried, reputation.ErrRateLimited
		}

		v, err := c.client.Check(ioCtx, ip)
		queried++
		switch {
		case errors.Is(err, reputation.ErrRateLimited):
			c.setState(models.RateLimitState{LastProbe: probedAt, LimitReached: true})
			metrics.ReputationQueries.WithLabelValues(metrics.OutcomeRateLimited).Inc()
			return queried, err
		case err != nil:
			logger.Log.Warnf("信誉查询失败，记录为空结果: ip=%s, error=%v", ip, err)
			metrics.ReputationQueries.WithLabelValues(metrics.OutcomeFailed).Inc()
			v = models.Verdict{IP: ip}
		default:
			metrics.ReputationQueries.WithLabelValues(metrics.OutcomeResolved).Inc()
		}

		if v.Country == "" {
			v.Country = c.lookupCountry(ip)
		}
		v.CheckedAt = c.now()
		c.record(v)
	}
	return queried, nil
}

// record 超过阈值时先写恶意地址日志，再写台账，然后通知观察者
// 任一写入失败都不写台账也不通知，地址将在下一轮重新查询
func (c *ReputationChecker) record(v models.Verdict) {
	flagged := v.Flagged(c.opts.Threshold)
	if flagged {
		if err := c.flagged.Append(v); err != nil {
			logger.Log.Errorf("写入恶意地址日志失败，下一轮重试: ip=%s, error=%v", v.IP, err)
			return
		}
	}

	if err := c.ledger.Append(v); err != nil {
		if flagged {
			logger.Log.Errorf("写入台账失败，恶意地址日志可能出现重复: ip=%s, error=%v", v.IP, err)
		} else {
			logger.Log.Errorf("写入台账失败: ip=%s, error=%v", v.IP, err)
		}
		return
	}

	if flagged {
		metrics.FlaggedAddresses.Inc()
		logger.Log.Infof("发现恶意地址: ip=%s, score=%d, country=%s", v.IP, *v.ConfidenceScore, v.CountryOrNone())
	} else {
		logger.Log.Debugf("信誉检查完成: ip=%s, whitelisted=%v", v.IP, v.Whitelisted())
	}

	c.pub.PublishVerdict(v)
}

func (c *ReputationChecker) lookupCountry(ip string) string {
	if c.geo == nil {
		return ""
	}
	country, err := c.geo.Country(ip)
	if err != nil {
		logger.Log.Debugf("GeoIP查询失败: ip=%s, error=%v", ip, err)
		return ""
	}
	return country
}

// Run 连续执行检查轮次，轮与轮之间不设固定间隔
func (c *ReputationChecker) Run(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := c.Pass(ctx)

		var pause time.Duration
		switch {
		case errors.Is(err, reputation.ErrRateLimited):
			metrics.RateLimited.Inc()
			logger.Log.Infof("信誉服务限流，%s 后重试", c.opts.RateLimitBackoff)
			pause = c.opts.RateLimitBackoff
		case err != nil:
			metrics.PollerErrors.WithLabelValues(metrics.PollerChecker).Inc()
			logger.Log.Warnf("信誉检查轮次失败: %v", err)
			pause = c.opts.IdleInterval
		default:
			metrics.PollerCycles.WithLabelValues(metrics.PollerChecker).Inc()
			if n == 0 {
				pause = c.opts.IdleInterval
			}
		}

		if pause > 0 {
			t := time.NewTimer(pause)
			select {
			case <-ctx.Done():
			case <-t.C:
			}
			t.Stop()
		}
	}
}
