package producers

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// SysMetrics polls one gopsutil metric and reports it as a map value.
type SysMetrics struct {
	def config.SysVarDefinition
}

// NewSysMetrics returns a Poller for a sys variable.
func NewSysMetrics(def config.SysVarDefinition) *SysMetrics {
	return &SysMetrics{def: def}
}

func (s *SysMetrics) Variable() value.VarName { return s.def.Name }
func (s *SysMetrics) Kind() string { return "sys" }
func (s *SysMetrics) Interval() time.Duration { return s.def.Interval }

// Poll gathers the configured metric.
func (s *SysMetrics) Poll(ctx context.Context) (value.Value, error) {
	var (
		v   value.Value
		err error
	)
	switch s.def.Metric {
	case config.SysCPU:
		v, err = collectCPU(ctx)
	case config.SysRAM:
		v, err = collectMemory(ctx)
	case config.SysDisk:
		v, err = collectDisk(ctx)
	case config.SysLoad:
		v, err = collectLoad(ctx)
	case config.SysUptime:
		v, err = collectUptime(ctx)
	default:
		err = fmt.Errorf("unknown metric %q", s.def.Metric)
	}
	if err != nil {
		return value.Value{}, fmt.Errorf("sys %s: %w", s.def.Name, err)
	}
	return v, nil
}

func pct(f float64) value.Value { return value.Number(f, value.UnitPercent) }

func bytesValue(n uint64) value.Value { return value.Number(float64(n), value.UnitNone) }

func collectCPU(ctx context.Context) (value.Value, error) {
	// Interval 0 compares against the previous call.
	perCore, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return value.Value{}, err
	}
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return value.Value{}, err
	}

	cores := make([]value.Value, len(perCore))
	for i, c := range perCore {
		cores[i] = pct(c)
	}
	m := map[string]value.Value{
		"cores": value.List(cores...),
		"count": value.Number(float64(len(perCore)), value.UnitNone),
		"total": pct(0),
	}
	if len(total) > 0 {
		m["total"] = pct(total[0])
	}
	return value.Map(m), nil
}

func collectMemory(ctx context.Context) (value.Value, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return value.Value{}, err
	}
	m := map[string]value.Value{
		"total":        bytesValue(vm.Total),
		"used":         bytesValue(vm.Used),
		"available":    bytesValue(vm.Available),
		"used_percent": pct(vm.UsedPercent),
	}

	// Swap may not exist.
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil && sw.Total > 0 {
		m["swap_total"] = bytesValue(sw.Total)
		m["swap_used"] = bytesValue(sw.Used)
		m["swap_used_percent"] = pct(sw.UsedPercent)
	}
	return value.Map(m), nil
}

func collectDisk(ctx context.Context) (value.Value, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return value.Value{}, err
	}

	mounts := make(map[string]value.Value, len(parts))
	for _, p := range parts {
		if isVirtualFS(p.Fstype) {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		mounts[usage.Path] = value.Map(map[string]value.Value{
			"fstype":       value.String(usage.Fstype),
			"total":        bytesValue(usage.Total),
			"used":         bytesValue(usage.Used),
			"free":         bytesValue(usage.Free),
			"used_percent": pct(usage.UsedPercent),
		})
	}
	return value.Map(mounts), nil
}

func collectLoad(ctx context.Context) (value.Value, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return value.Value{}, err
	}
	return value.Map(map[string]value.Value{
		"load1":  value.Number(avg.Load1, value.UnitNone),
		"load5":  value.Number(avg.Load5, value.UnitNone),
		"load15": value.Number(avg.Load15, value.UnitNone),
	}), nil
}

func collectUptime(ctx context.Context) (value.Value, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return value.Value{}, err
	}
	d := time.Duration(secs) * time.Second
	return value.Map(map[string]value.Value{
		"seconds": value.Number(float64(secs), value.UnitNone),
		"text":    value.String(formatUptime(d)),
	}), nil
}

// formatUptime renders d as "3d 4h", "4h 12m" or "12m".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

// isVirtualFS reports filesystem types that do not represent real storage.
func isVirtualFS(fstype string) bool {
	switch fstype {
	case "devfs", "devtmpfs", "tmpfs", "sysfs", "proc", "cgroup", "cgroup2",
		"autofs", "mqueue", "hugetlbfs", "debugfs", "tracefs", "securityfs",
		"pstore", "bpf", "fusectl", "configfs", "ramfs", "rpc_pipefs",
		"nfsd", "map", "devpts", "squashfs", "overlay":
		return true
	}
	return false
}
