package utils

import (
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

var startedAt = time.Now()

// SystemInfo is a snapshot of the host the bot runs on.
type SystemInfo struct {
	Platform        string
	PlatformVersion string
	KernelVersion   string
	GoVersion       string
	CPUCount        int
	CPUPercent      float64
	MemUsedPercent  float64
	MemUsedMB       uint64
	MemTotalMB      uint64
	Goroutines      int
	Uptime          time.Duration
}

// CollectSystemInfo reads host metrics. Fields that cannot be read stay zero.
func CollectSystemInfo() SystemInfo {
	info := SystemInfo{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(startedAt).Truncate(time.Second),
	}

	// CPU
	if n, err := cpu.Counts(true); err == nil {
		info.CPUCount = n
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		info.CPUPercent = pct[0]
	}

	// 内存
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemUsedPercent = vm.UsedPercent
		info.MemUsedMB = vm.Used / 1024 / 1024
		info.MemTotalMB = vm.Total / 1024 / 1024
	}

	if h, err := host.Info(); err == nil {
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelVersion = h.KernelVersion
	}
	return info
}

// Lines renders the snapshot as plain text lines.
func (s SystemInfo) Lines() []string {
	return []string{
		fmt.Sprintf("💻 OS: %s %s", s.Platform, s.PlatformVersion),
		fmt.Sprintf("🔧 Kernel: %s", s.KernelVersion),
		fmt.Sprintf("🐹 Go: %s", s.GoVersion),
		fmt.Sprintf("🔥 CPU: %d cores, %.1f%%", s.CPUCount, s.CPUPercent),
		fmt.Sprintf("🧠 Memory: %.1f%% (%d MB / %d MB)", s.MemUsedPercent, s.MemUsedMB, s.MemTotalMB),
		fmt.Sprintf("🚀 Goroutines: %d", s.Goroutines),
		fmt.Sprintf("⏱️ Uptime: %s", s.Uptime),
	}
}
