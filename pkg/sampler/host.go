package sampler

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
)

// HostSource 主机指标读取接口
type HostSource interface {
	NetCounters(ctx context.Context) (sent, recv uint64, err error)
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	DiskPercent(ctx context.Context) (float64, error)
	CoreCounts(ctx context.Context) (physical, logical int, err error)
}

// GopsutilSource 基于 gopsutil 的实现
type GopsutilSource struct {
	DiskPath string
}

func NewGopsutilSource(diskPath string) *GopsutilSource {
	if diskPath == "" {
		diskPath = "/"
	}
	return &GopsutilSource{DiskPath: diskPath}
}

// NetCounters 所有网卡的累计收发字节数
func (g *GopsutilSource) NetCounters(ctx context.Context) (uint64, uint64, error) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return 0, 0, err
	}
	if len(counters) == 0 {
		return 0, 0, errNoCounters
	}
	return counters[0].BytesSent, counters[0].BytesRecv, nil
}

// CPUPercent 距上次调用以来的整体 CPU 使用率
func (g *GopsutilSource) CPUPercent(ctx context.Context) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, errNoCounters
	}
	return pct[0], nil
}

func (g *GopsutilSource) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func (g *GopsutilSource) DiskPercent(ctx context.Context) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, g.DiskPath)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

func (g *GopsutilSource) CoreCounts(ctx context.Context) (int, int, error) {
	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		return 0, 0, err
	}
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0, 0, err
	}
	return physical, logical, nil
}
