package routes

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"webshrink/engine"
	"webshrink/logger"
	"webshrink/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a point-in-time view of the machine running the encoders.
type HostStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float64 `json:"ram_percent"`
	Busy       bool    `json:"busy"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string               `json:"status"`
	Timestamp   time.Time            `json:"timestamp"`
	Version     string               `json:"version"`
	GoVersion   string               `json:"go_version"`
	Uptime      string               `json:"uptime"`
	StartTime   string               `json:"start_time"`
	EngineState engine.State         `json:"engine_state"`
	Jobs        map[models.State]int `json:"jobs"`
	Host        *HostStats           `json:"host,omitempty"`
	Problems    string               `json:"problems,omitempty"`
}

// formatUptime formats a duration into days, hours, minutes, seconds
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// HealthHandler reports the engine state, job counts and host load. It
// answers 503 when the ledgers are unhealthy or the backend failed to load.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Health check request: remoteAddr=%s", r.RemoteAddr)

	response := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Version:     version,
		GoVersion:   runtime.Version(),
		Uptime:      formatUptime(time.Since(h.started)),
		StartTime:   h.started.Format("2006-01-02 15:04:05 MST"),
		EngineState: h.engine.State(),
		Jobs:        h.engine.JobStats(),
	}

	if stats, err := hostStats(r); err != nil {
		logger.Debugf("Host stats unavailable: %v", err)
	} else {
		response.Host = &stats
	}

	status := http.StatusOK
	if err := h.engine.CheckHealth(); err != nil {
		response.Status = "unhealthy"
		response.Problems = err.Error()
		status = http.StatusServiceUnavailable
	} else if response.EngineState == engine.StateFailed {
		response.Status = "degraded"
		response.Problems = h.engine.LoadError().Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

// hostStats samples memory and a short CPU window.
func hostStats(r *http.Request) (HostStats, error) {
	var stats HostStats
	v, err := mem.VirtualMemoryWithContext(r.Context())
	if err != nil {
		return stats, fmt.Errorf("failed to get mem stats: %w", err)
	}
	stats.RAMPercent = v.UsedPercent

	cpuPct, err := cpu.PercentWithContext(r.Context(), 200*time.Millisecond, false)
	if err != nil {
		return stats, fmt.Errorf("failed to get cpu stats: %w", err)
	}
	if len(cpuPct) > 0 {
		stats.CPUPercent = cpuPct[0]
	}
	stats.Busy = stats.CPUPercent > 80.0 || stats.RAMPercent > 90.0
	return stats, nil
}
