package traffic

import (
	"context"
	"net/netip"
	"syscall"

	"go-sysmonitor/pkg/models"

	"github.com/shirou/gopsutil/v4/net"
)

// SocketSource 套接字表读取接口
type SocketSource interface {
	Connections(ctx context.Context) ([]net.ConnectionStat, error)
}

// GopsutilSockets 读取所有 inet/inet6 套接字
type GopsutilSockets struct{}

func (GopsutilSockets) Connections(ctx context.Context) ([]net.ConnectionStat, error) {
	return net.ConnectionsWithContext(ctx, "inet")
}

// protocolOf 按套接字类型区分协议，流式为 TCP，其余按 UDP 处理
func protocolOf(sockType uint32) models.Protocol {
	if sockType == syscall.SOCK_STREAM {
		return models.ProtocolTCP
	}
	return models.ProtocolUDP
}

func toRecord(c net.ConnectionStat) models.ConnectionRecord {
	rec := models.ConnectionRecord{
		Protocol: protocolOf(c.Type),
		Local:    models.Endpoint{IP: c.Laddr.IP, Port: c.Laddr.Port},
	}
	if hasRemote(c.Raddr) {
		rec.Remote = &models.Endpoint{IP: c.Raddr.IP, Port: c.Raddr.Port}
	}
	return rec
}

// hasRemote 监听套接字在部分平台上报告 0.0.0.0:0 作为远端，视为无远端
func hasRemote(a net.Addr) bool {
	if a.IP == "" {
		return false
	}
	if a.Port != 0 {
		return true
	}
	ip, err := netip.ParseAddr(a.IP)
	return err != nil || !ip.IsUnspecified()
}
