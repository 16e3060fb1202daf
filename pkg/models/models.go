package models

import (
	"net"
	"strconv"
	"time"
)

// NotAvailable 无远端地址时的占位符
const NotAvailable = "N/A"

// MetricsSnapshot 一次采样周期的主机指标，不可变
type MetricsSnapshot struct {
	Timestamp     time.Time
	CPUPercent    float64 // CPU使用率 (0-100)
	RAMPercent    float64 // 内存使用率 (0-100)
	DiskPercent   float64 // 磁盘使用率 (0-100)
	NetSendKbps   float64 // 发送速率 (kbps)
	NetRecvKbps   float64 // 接收速率 (kbps)
	PhysicalCores int
	LogicalCores  int
}

// Protocol 连接协议
type Protocol string

const (
	ProtocolTCP Protocol = "TCP"
	ProtocolUDP Protocol = "UDP"
)

// Endpoint 套接字端点
type Endpoint struct {
	IP   string
	Port uint32
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP, strconv.FormatUint(uint64(e.Port), 10))
}

// ConnectionRecord 一条连接记录，监听或未连接的套接字没有远端地址
type ConnectionRecord struct {
	Protocol Protocol
	Local    Endpoint
	Remote   *Endpoint
}

// RemoteString 远端地址字符串，缺失时为 N/A
func (c ConnectionRecord) RemoteString() string {
	if c.Remote == nil {
		return NotAvailable
	}
	return c.Remote.String()
}

// Verdict 信誉查询结果，查询失败时各字段为空
type Verdict struct {
	IP              string
	IsWhitelisted   *bool
	ConfidenceScore *int
	Country         string
	CheckedAt       time.Time
}

// Whitelisted 空值视为 false
func (v Verdict) Whitelisted() bool {
	return v.IsWhitelisted != nil && *v.IsWhitelisted
}

// CountryOrNone 国家为空时返回 "None"
func (v Verdict) CountryOrNone() string {
	if v.Country == "" {
		return "None"
	}
	return v.Country
}

// Flagged 分数超过阈值即视为恶意
func (v Verdict) Flagged(threshold int) bool {
	return v.ConfidenceScore != nil && *v.ConfidenceScore > threshold
}

// RateLimitState 限流探测状态，仅进程内有效
type RateLimitState struct {
	LastProbe    time.Time
	LimitReached bool
}
