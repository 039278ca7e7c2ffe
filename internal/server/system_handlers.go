package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/ipotracker/internal/database"
	"github.com/aristath/ipotracker/internal/domain"
	"github.com/aristath/ipotracker/internal/httputil"
	"github.com/aristath/ipotracker/internal/reliability"
	"github.com/aristath/ipotracker/internal/scheduler"
)

// maxImportBytes caps uploaded snapshot archives
const maxImportBytes = 64 << 20

// SystemHandlers serves status, job triggers and backup operations
type SystemHandlers struct {
	ledgerDB  *database.DB
	scheduler *scheduler.Scheduler
	backups   *reliability.BackupService
	log       zerolog.Logger
	startedAt time.Time
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(
	ledgerDB *database.DB,
	sched *scheduler.Scheduler,
	backups *reliability.BackupService,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		ledgerDB:  ledgerDB,
		scheduler: sched,
		backups:   backups,
		log:       log.With().Str("handler", "system").Logger(),
		startedAt: time.Now(),
	}
}

// SystemStatusResponse is the payload of GET /system/status
type SystemStatusResponse struct {
	Status         string          `json:"status"`
	UptimeSeconds  int64           `json:"uptimeSeconds"`
	Database       *database.Stats `json:"database,omitempty"`
	Jobs           []string        `json:"jobs"`
	BackupsEnabled bool            `json:"backupsEnabled"`
}

// HandleSystemStatus reports uptime, database size and registered jobs
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	response := SystemStatusResponse{
		Status:         "ok",
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		Jobs:           h.scheduler.Jobs(),
		BackupsEnabled: h.backups.Enabled(),
	}

	stats, err := h.ledgerDB.GetStats()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read database stats")
		response.Status = "degraded"
	} else {
		response.Database = stats
	}

	httputil.WriteData(w, h.log, http.StatusOK, response)
}

// HandleListJobs lists the registered background jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.log, http.StatusOK, map[string]interface{}{
		"jobs": h.scheduler.Jobs(),
	})
}

// HandleTriggerJob runs a registered job immediately and waits for it
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h.log.Info().Str("job", name).Msg("Manual job trigger")

	if err := h.scheduler.Trigger(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			err = fmt.Errorf("%w: %v", domain.ErrNotFound, err)
		}
		httputil.WriteError(w, h.log, err)
		return
	}

	httputil.WriteData(w, h.log, http.StatusOK, map[string]string{
		"job":    name,
		"status": "completed",
	})
}

func backupError(err error) error {
	if errors.Is(err, reliability.ErrBackupDisabled) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidState, err)
	}
	return err
}

// HandleListBackups lists uploaded backups, newest first
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		httputil.WriteError(w, h.log, backupError(err))
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, backups)
}

// HandleCreateBackup uploads a snapshot now
func (h *SystemHandlers) HandleCreateBackup(w http.ResponseWriter, r *http.Request) {
	info, err := h.backups.CreateAndUploadBackup(r.Context())
	if err != nil {
		httputil.WriteError(w, h.log, backupError(err))
		return
	}
	httputil.WriteData(w, h.log, http.StatusCreated, info)
}

// RestoreRequest names the backup to restore
type RestoreRequest struct {
	Filename string `json:"filename"`
}

// HandleRestoreBackup replaces the store with an uploaded backup
func (h *SystemHandlers) HandleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	n, err := h.backups.RestoreBackup(r.Context(), req.Filename)
	if err != nil {
		httputil.WriteError(w, h.log, backupError(err))
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, map[string]interface{}{
		"filename": req.Filename,
		"accounts": n,
	})
}

// HandleRotateBackups prunes backups beyond the retention count
func (h *SystemHandlers) HandleRotateBackups(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	deleted, err := h.backups.RotateOldBackups(ctx)
	if err != nil {
		httputil.WriteError(w, h.log, backupError(err))
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, map[string]int{"deleted": deleted})
}

// HandleExport streams a snapshot archive of the whole store
func (h *SystemHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := h.backups.CreateSnapshot()
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	filename := fmt.Sprintf("ipotracker-export-%s.msgpack.gz", snap.CreatedAt.Format("2006-01-02-150405"))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	// Headers are sent by the first write, so a failure here truncates the body
	if err := reliability.WriteSnapshot(w, snap); err != nil {
		h.log.Error().Err(err).Msg("Export failed")
	}
}

// HandleImport replaces the store with the snapshot archive in the body
func (h *SystemHandlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	snap, err := reliability.ReadSnapshot(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		httputil.WriteError(w, h.log, fmt.Errorf("%w: %v", httputil.ErrBadRequest, err))
		return
	}

	n, err := h.backups.Restore(snap)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteData(w, h.log, http.StatusOK, map[string]int{"accounts": n})
}
