// Package health reports process and dependency status.
package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/rootedapp/portal/internal/database"
	"github.com/rootedapp/portal/pkg/logger"
)

// Report is the health endpoint response.
type Report struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	UptimeSecs int64             `json:"uptime_seconds"`
	GoVersion  string            `json:"go_version"`
	Memory     MemoryStats       `json:"memory"`
	CPUPercent float64           `json:"cpu_percent"`
	PoolInUse  int               `json:"db_pool_in_use"`
	PoolIdle   int               `json:"db_pool_idle"`
	Checks     map[string]string `json:"checks"`
}

// MemoryStats is a host memory snapshot.
type MemoryStats struct {
	TotalMB     uint64  `json:"total_mb"`
	UsedMB      uint64  `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// Service collects the report.
type Service struct {
	version string
	started time.Time
	driver  database.Driver
	redis   *redis.Client
	log     *logger.Logger
}

// New creates a health service. driver and redis may be nil; their checks
// are then omitted.
func New(version string, driver database.Driver, rdb *redis.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("health")
	}
	return &Service{
		version: version,
		started: time.Now(),
		driver:  driver,
		redis:   rdb,
		log:     log,
	}
}

// Check gathers process stats and probes dependencies. A dependency failure
// degrades Status but never errors: the endpoint always answers.
func (s *Service) Check(ctx context.Context) Report {
	report := Report{
		Status:     "ok",
		Version:    s.version,
		UptimeSecs: int64(time.Since(s.started).Seconds()),
		GoVersion:  runtime.Version(),
		Checks:     make(map[string]string),
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		report.Memory = MemoryStats{
			TotalMB:     vm.Total / (1 << 20),
			UsedMB:      vm.Used / (1 << 20),
			UsedPercent: vm.UsedPercent,
		}
	} else {
		s.log.WithError(err).Warn("memory stats unavailable")
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		report.CPUPercent = percents[0]
	}

	if s.driver != nil {
		stats := s.driver.Stats()
		report.Checks["database"] = "ok"
		report.PoolInUse = stats.InUse
		report.PoolIdle = stats.Idle
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			report.Checks["redis"] = "unreachable"
			report.Status = "degraded"
			s.log.WithError(err).Warn("redis health check failed")
		} else {
			report.Checks["redis"] = "ok"
		}
	}

	return report
}
