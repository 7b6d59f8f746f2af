package audit

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/auth"
	"github.com/festahub/backoffice/internal/models"
)

func newRecorder(t *testing.T) (*Recorder, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.AuditLog{}))
	return NewRecorder(conn, slog.New(slog.NewTextHandler(io.Discard, nil))), conn
}

func TestRecordPersistsRow(t *testing.T) {
	rec, conn := newRecorder(t)

	req := httptest.NewRequest("POST", "/api/leads", nil)
	req.RemoteAddr = "192.0.2.10:51234"
	req.Header.Set("User-Agent", "teste/1.0")
	claims := auth.Claims{UserID: 5, Identity: "ana@demo.local", Role: "vendas", TenantID: 3}

	rec.Record(req, claims, Entry{Module: "leads", Action: "create", Entity: "lead", EntityID: 9})

	var row models.AuditLog
	require.NoError(t, conn.First(&row).Error)
	require.Equal(t, uint(3), row.EmpresaID)
	require.Equal(t, uint(5), row.UserID)
	require.Equal(t, "leads", row.Module)
	require.Equal(t, "create", row.Action)
	require.Equal(t, uint(9), row.EntityID)
	require.Equal(t, "/api/leads", row.Route)
	require.Equal(t, "192.0.2.10", row.IP)
}

func TestRecordSkipsInvalidContext(t *testing.T) {
	rec, conn := newRecorder(t)
	req := httptest.NewRequest("POST", "/api/leads", nil)

	rec.Record(req, auth.Claims{TenantID: 0}, Entry{Module: "leads", Action: "create"})
	rec.Record(req, auth.Claims{TenantID: 1}, Entry{Module: "", Action: "create"})
	rec.Record(req, auth.Claims{TenantID: 1}, Entry{Module: "leads", Action: ""})

	var count int64
	require.NoError(t, conn.Model(&models.AuditLog{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "203.0.113.7", clientIP(req))
}
