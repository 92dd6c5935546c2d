// Package system coleta métricas do host para o endpoint de estatísticas.
package system

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

const (
	mib = 1024 * 1024
	gib = 1024 * 1024 * 1024
)

type Metrics struct {
	sampleInterval time.Duration
	diskPath       string
	now            func() time.Time
}

var _ ports.SystemMetrics = (*Metrics)(nil)

func NewMetrics(sampleInterval time.Duration) *Metrics {
	return &Metrics{sampleInterval: sampleInterval, diskPath: "/", now: time.Now}
}

// Snapshot samples cpu usage over the configured interval. Optional readings
// (frequency, load average, network) degrade to zero values on platforms
// that do not expose them.
func (m *Metrics) Snapshot(ctx context.Context) (domain.SystemMetrics, error) {
	var out domain.SystemMetrics

	usage, err := cpu.PercentWithContext(ctx, m.sampleInterval, false)
	if err != nil {
		return out, fmt.Errorf("cpu usage: %w", err)
	}
	if len(usage) > 0 {
		out.CPUUsage = round(usage[0])
	}

	if out.CPUCount, err = cpu.CountsWithContext(ctx, true); err != nil {
		return out, fmt.Errorf("cpu count: %w", err)
	}
	out.CPUFrequency = frequency(ctx)
	out.LoadAverage = loadAverage(ctx)

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return out, fmt.Errorf("memory: %w", err)
	}
	out.TotalMemory = round(float64(vm.Total) / mib)
	out.UsedMemory = round(float64(vm.Used) / mib)
	out.MemoryPercent = round(vm.UsedPercent)

	du, err := disk.UsageWithContext(ctx, m.diskPath)
	if err != nil {
		return out, fmt.Errorf("disk usage: %w", err)
	}
	out.DiskTotal = round(float64(du.Total) / gib)
	out.DiskUsed = round(float64(du.Used) / gib)
	out.DiskFree = round(float64(du.Free) / gib)
	out.DiskPercent = round(du.UsedPercent)

	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return out, fmt.Errorf("process list: %w", err)
	}
	out.ProcessCount = len(pids)

	if counters, err := net.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		out.NetIO = domain.NetIO{BytesSent: counters[0].BytesSent, BytesRecv: counters[0].BytesRecv}
	} else if err != nil {
		log.WithError(err).Debug("system: net io counters unavailable")
	}

	out.Uptime = m.uptime(ctx)
	return out, nil
}

func frequency(ctx context.Context) domain.CPUFrequency {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil || len(infos) == 0 || infos[0].Mhz == 0 {
		return domain.CPUFrequency{}
	}
	current := infos[0].Mhz
	return domain.CPUFrequency{Current: &current}
}

func loadAverage(ctx context.Context) []float64 {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return []float64{}
	}
	return []float64{avg.Load1, avg.Load5, avg.Load15}
}

// uptime is the age of this process in seconds.
func (m *Metrics) uptime(ctx context.Context) float64 {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0
	}
	created, err := proc.CreateTimeWithContext(ctx)
	if err != nil {
		return 0
	}
	return round(m.now().Sub(time.UnixMilli(created)).Seconds())
}

func round(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
