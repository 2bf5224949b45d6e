package workers

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"

	"chat-relay/domain"
)

// HealthMonitoringWorker periodically samples the server's own process
// (CPU and RSS share) and keeps the latest figures for the health endpoint.
type HealthMonitoringWorker struct {
	mu             sync.Mutex
	log            *slog.Logger
	metricInterval time.Duration
	latest         domain.ProcessMetric
}

func NewHealthMonitoringWorker(log *slog.Logger, metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{log: log, metricInterval: metricInterval}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health sampling")
			return nil
		case <-ticker.C:
			cpu, err := proc.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			ram, err := proc.MemoryPercent()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}

			w.mu.Lock()
			w.latest = domain.ProcessMetric{
				CPUPercent:    cpu,
				MemoryPercent: ram,
				SampledAt:     time.Now().Unix(),
			}
			w.mu.Unlock()

			w.log.Debug("process sampled", "cpu_percent", cpu, "memory_percent", ram)
		}
	}
}

// Latest returns the most recent sample; zero values before the first tick.
func (w *HealthMonitoringWorker) Latest() domain.ProcessMetric {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}
