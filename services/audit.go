package services

import (
	"encoding/json"

	"stormcloud/models"
	"stormcloud/repositories"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

// OpContext carries who is acting, on whose storage, and the request
// metadata that ends up in the audit trail.
type OpContext struct {
	Actor         *models.Account
	Target        *models.Account
	IsAdminAction bool
	Justification string
	IPAddress     string
	UserAgent     string
}

// AuditEvent is one file-action emission. Exactly one durable record plus
// one monitoring-log line per event.
type AuditEvent struct {
	Op              OpContext
	Action          string
	Path            string
	Success         bool
	DestinationPath string
	PathsAffected   []string
	ErrorCode       string
	ErrorMessage    string
	FileSize        *int64
	ContentType     string
}

// AuditRecorder receives file-action events. Recording must never fail the
// triggering operation.
type AuditRecorder interface {
	Record(ev AuditEvent)
}

// Auditor persists audit events and mirrors them to the audit log sink.
type Auditor struct {
	repo *repositories.AuditRepository
	log  zerolog.Logger
}

// NewAuditor creates an auditor writing rows via repo and lines via log.
func NewAuditor(repo *repositories.AuditRepository, log zerolog.Logger) *Auditor {
	return &Auditor{repo: repo, log: log.With().Str("component", "audit").Logger()}
}

func (a *Auditor) Record(ev AuditEvent) {
	entry := &models.FileAuditLog{
		IsAdminAction:   ev.Op.IsAdminAction,
		Action:          ev.Action,
		Path:            ev.Path,
		Success:         ev.Success,
		DestinationPath: ev.DestinationPath,
		ErrorCode:       ev.ErrorCode,
		ErrorMessage:    ev.ErrorMessage,
		Justification:   ev.Op.Justification,
		IPAddress:       ev.Op.IPAddress,
		UserAgent:       truncate(ev.Op.UserAgent, 500),
		FileSize:        ev.FileSize,
		ContentType:     ev.ContentType,
	}
	if ev.Op.Actor != nil {
		id := ev.Op.Actor.ID
		entry.PerformedByID = &id
	}
	if ev.Op.Target != nil {
		id := ev.Op.Target.ID
		entry.TargetUserID = &id
	}
	if len(ev.PathsAffected) > 0 {
		if raw, err := json.Marshal(ev.PathsAffected); err == nil {
			entry.PathsAffected = datatypes.JSON(raw)
		}
	}

	if err := a.repo.Create(entry); err != nil {
		a.log.Error().Err(err).Str("action", ev.Action).Msg("failed to persist audit record")
	}

	line := a.log.Info().
		Bool("admin", ev.Op.IsAdminAction).
		Str("action", ev.Action).
		Str("path", ev.Path).
		Bool("success", ev.Success).
		Str("ip", ev.Op.IPAddress)
	if ev.Op.Actor != nil {
		line = line.Uint("performed_by", ev.Op.Actor.ID)
	}
	if ev.Op.Target != nil {
		line = line.Uint("target_user", ev.Op.Target.ID)
	}
	if !ev.Success {
		line = line.Str("error_code", ev.ErrorCode)
	}
	line.Msg("file action")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// codeOf extracts the wire code from an operation error for audit entries.
func codeOf(err error) (code, message string) {
	if err == nil {
		return "", ""
	}
	if appErr := asAppError(err); appErr != nil {
		return appErr.Code, appErr.Message
	}
	return "INTERNAL_ERROR", err.Error()
}
