package monitor

import (
	"strconv"

	"go-sysmonitor/pkg/logger"
	"go-sysmonitor/pkg/models"
)

// Observer 监控结果的接收方，回调在事件分发协程中依次执行
type Observer interface {
	OnMetrics(models.MetricsSnapshot)
	OnConnections([]models.ConnectionRecord)
	OnReputationResult(ip string, whitelisted bool, score *int, country string)
}

// LogObserver 把结果写入日志
type LogObserver struct{}

func (LogObserver) OnMetrics(s models.MetricsSnapshot) {
	logger.Log.Infof("主机指标: cpu=%.1f%%, ram=%.1f%%, disk=%.1f%%, send=%.2fKbps, recv=%.2fKbps, cores=%d/%d",
		s.CPUPercent, s.RAMPercent, s.DiskPercent, s.NetSendKbps, s.NetRecvKbps, s.PhysicalCores, s.LogicalCores)
}

func (LogObserver) OnConnections(records []models.ConnectionRecord) {
	logger.Log.Debugf("本周期连接数: %d", len(records))
}

func (LogObserver) OnReputationResult(ip string, whitelisted bool, score *int, country string) {
	s := models.NotAvailable
	if score != nil {
		s = strconv.Itoa(*score)
	}
	logger.Log.Infof("信誉结果: ip=%s, whitelisted=%v, score=%s, country=%s", ip, whitelisted, s, country)
}
