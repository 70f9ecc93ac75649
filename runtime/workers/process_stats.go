package workers

import (
	"context"
	"flash-chat/observability"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStatsWorker samples memory and CPU of the current process into the
// process gauges at a fixed interval.
type ProcessStatsWorker struct {
	log      *slog.Logger
	interval time.Duration
}

func NewProcessStatsWorker(log *slog.Logger, interval time.Duration) *ProcessStatsWorker {
	return &ProcessStatsWorker{log: log, interval: interval}
}

func (w *ProcessStatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.sample(p); err != nil {
			w.log.Warn("Failed to collect self stats", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *ProcessStatsWorker) sample(p *process.Process) error {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return err
	}
	observability.ProcessRSSBytes.Set(float64(memInfo.RSS))
	observability.ProcessCPUPercent.Set(cpuPercent)
	return nil
}
