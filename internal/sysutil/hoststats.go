package sysutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostStats is a snapshot of host and process resource usage.
type HostStats struct {
	Uptime      time.Duration
	CPUPercent  float64
	MemPercent  float64
	DiskPercent float64
	ProcessRSS  uint64 // bytes
}

// CollectHostStats samples CPU, memory, disk usage of diskPath and the
// current process RSS. started is the process start time used for Uptime.
// Individual readings that fail are left at zero; the first failure is
// returned alongside the partial snapshot.
func CollectHostStats(ctx context.Context, started time.Time, diskPath string) (HostStats, error) {
	st := HostStats{Uptime: time.Since(started)}
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		st.CPUPercent = pct[0]
	} else {
		keep(err)
	}
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		st.MemPercent = v.UsedPercent
	} else {
		keep(err)
	}
	if diskPath == "" {
		diskPath = "/"
	}
	if d, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		st.DiskPercent = d.UsedPercent
	} else {
		keep(err)
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			st.ProcessRSS = mi.RSS
		} else {
			keep(err)
		}
	} else {
		keep(err)
	}
	return st, firstErr
}

// FormatUptime renders d as "1d 2h 3m 4s", dropping leading zero units.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	parts := []struct {
		n    int64
		unit string
	}{
		{secs / 86400, "d"},
		{secs % 86400 / 3600, "h"},
		{secs % 3600 / 60, "m"},
		{secs % 60, "s"},
	}
	var out []string
	for i, p := range parts {
		if p.n == 0 && len(out) == 0 && i < len(parts)-1 {
			continue
		}
		out = append(out, fmt.Sprintf("%d%s", p.n, p.unit))
	}
	return strings.Join(out, " ")
}

// FormatBytes renders n using binary units, e.g. "12.3 MiB".
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
