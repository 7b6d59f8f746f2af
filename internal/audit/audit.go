// Package audit records who-did-what-to-what. Recording is best-effort: it
// never returns an error to the caller and never blocks the response on
// failure.
package audit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/auth"
	"github.com/festahub/backoffice/internal/models"
)

type Recorder struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewRecorder(db *gorm.DB, log *slog.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Entry describes one audited mutation.
type Entry struct {
	Module   string
	Action   string
	Entity   string
	EntityID uint
}

// Record persists an audit row. Silently no-ops when the tenant context is
// invalid or module/action are blank; failures are logged and swallowed.
func (rec *Recorder) Record(r *http.Request, c auth.Claims, e Entry) {
	if rec == nil || rec.db == nil {
		return
	}
	if c.TenantID == 0 || e.Module == "" || e.Action == "" {
		return
	}
	row := models.AuditLog{
		EmpresaID: c.TenantID,
		UserID:    c.UserID,
		UserRole:  c.Role,
		Module:    e.Module,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Route:     r.URL.Path,
		Method:    r.Method,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if err := rec.db.Create(&row).Error; err != nil {
		rec.log.Warn("audit record failed", "err", err, "module", e.Module, "action", e.Action)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
