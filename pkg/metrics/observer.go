package metrics

import (
	"go-sysmonitor/pkg/models"
)

// Observer 将快照同步到 Prometheus 仪表
type Observer struct{}

func (Observer) OnMetrics(s models.MetricsSnapshot) {
	HostUsage.WithLabelValues("cpu").Set(s.CPUPercent)
	HostUsage.WithLabelValues("ram").Set(s.RAMPercent)
	HostUsage.WithLabelValues("disk").Set(s.DiskPercent)
	NetworkThroughput.WithLabelValues("send").Set(s.NetSendKbps)
	NetworkThroughput.WithLabelValues("recv").Set(s.NetRecvKbps)
}

func (Observer) OnConnections(records []models.ConnectionRecord) {
	var tcp, udp float64
	for _, r := range records {
		if r.Protocol == models.ProtocolTCP {
			tcp++
		} else {
			udp++
		}
	}
	ConnectionsObserved.WithLabelValues(string(models.ProtocolTCP)).Set(tcp)
	ConnectionsObserved.WithLabelValues(string(models.ProtocolUDP)).Set(udp)
}

func (Observer) OnReputationResult(string, bool, *int, string) {}
