package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/di"
	"github.com/aristath/fundledger/internal/scheduler"
)

// SystemStatusResponse is the payload of GET /api/system/status
type SystemStatusResponse struct {
	Status        string         `json:"status"`
	Backend       string         `json:"backend"`
	Timezone      string         `json:"timezone"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Goroutines    int            `json:"goroutines"`
	CPUPercent    float64        `json:"cpu_percent"`
	MemoryPercent float64        `json:"memory_percent"`
	DiskPercent   float64        `json:"disk_percent"`
	Transactions  map[string]int `json:"transactions"`
	LastRefresh   string         `json:"last_refresh,omitempty"`
	Timestamp     string         `json:"timestamp"`
}

// DatabaseStatsResponse is the payload of GET /api/system/database
type DatabaseStatsResponse struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	SizeMB      float64 `json:"size_mb"`
	WALSizeMB   float64 `json:"wal_size_mb"`
	PageCount   int64   `json:"page_count"`
	PageSize    int64   `json:"page_size"`
	LastChecked string  `json:"last_checked"`
}

// SystemHandlers serves runtime status and manual job triggers
type SystemHandlers struct {
	log       zerolog.Logger
	cfg       *config.Config
	container *di.Container
	jobs      map[string]scheduler.Job
	startedAt time.Time
}

// NewSystemHandlers creates system handlers. jobs may be nil.
func NewSystemHandlers(log zerolog.Logger, cfg *config.Config, container *di.Container, jobs *di.JobInstances) *SystemHandlers {
	h := &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		cfg:       cfg,
		container: container,
		jobs:      make(map[string]scheduler.Job),
		startedAt: time.Now(),
	}
	if jobs != nil {
		for name, job := range map[string]scheduler.Job{
			"refresh":    jobs.Refresh,
			"confirm":    jobs.Confirm,
			"checkpoint": jobs.Checkpoint,
		} {
			if job != nil {
				h.jobs[name] = job
			}
		}
	}
	return h
}

// HandleSystemStatus returns host usage, ledger counts and the last refresh time
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:        "ok",
		Backend:       h.cfg.Store.Backend,
		Timezone:      h.cfg.Timezone,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		DiskPercent:   h.getDiskUsage(),
		Transactions:  make(map[string]int),
		Timestamp:     time.Now().Format(time.RFC3339),
	}

	rows, err := h.container.LedgerStore.LoadAll(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to load ledger for status")
		resp.Status = "degraded"
	}
	for _, tx := range rows {
		resp.Transactions[string(tx.Status)]++
	}

	if snap, err := h.container.SnapshotRepo.Load(r.Context()); err == nil {
		resp.LastRefresh = snap.GeneratedAt.Format(time.RFC3339)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleDatabaseStats returns statistics of the SQLite document store
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	db := h.container.DocumentsDB
	if db == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "backend " + h.cfg.Store.Backend + " has no local database"})
		return
	}

	stats, err := db.GetStats()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get database stats"})
		return
	}

	h.writeJSON(w, http.StatusOK, DatabaseStatsResponse{
		Name:        db.Name(),
		Path:        db.Path(),
		SizeMB:      float64(stats.SizeBytes) / 1024 / 1024,
		WALSizeMB:   float64(stats.WALSizeBytes) / 1024 / 1024,
		PageCount:   stats.PageCount,
		PageSize:    stats.PageSize,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

// HandleTriggerJob runs a job immediately
// POST /api/system/jobs/{job}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")
	job, ok := h.jobs[name]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job " + name})
		return
	}

	start := time.Now()
	if err := job.Run(r.Context()); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":         job.Name(),
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// getSystemStats samples CPU over 100ms and returns CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) getDiskUsage() float64 {
	usage, err := disk.Usage(h.cfg.DataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("dir", h.cfg.DataDir).Msg("Failed to get disk usage")
		return 0
	}
	return usage.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
