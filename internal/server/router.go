package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/audit"
	"github.com/festahub/backoffice/internal/auth"
	"github.com/festahub/backoffice/internal/config"
	"github.com/festahub/backoffice/internal/handlers"
	"github.com/festahub/backoffice/internal/httpx"
	"github.com/festahub/backoffice/internal/logger"
	"github.com/festahub/backoffice/internal/metrics"
	"github.com/festahub/backoffice/internal/rbac"
	"github.com/festahub/backoffice/internal/services"
)

// New wires every route and middleware into the root handler.
func New(cfg config.Config, db *gorm.DB, sessions *auth.Sessions) http.Handler {
	log := logger.L()

	eval := rbac.NewEvaluator(db, cfg.PermissionCacheTTL)
	recorder := audit.NewRecorder(db, log)

	staffing := services.NewStaffingService(db, log)
	finance := services.NewFinanceService(db, log, cfg.InstallmentDaysBeforeEvent)
	proposals := services.NewProposalService(db, log)
	contracts := services.NewContractService(db, log)
	conversion := services.NewConversionService(db, log, cfg.ContractPrefix)

	authH := handlers.NewAuthHandler(db, sessions)
	leadH := handlers.NewLeadHandler(db, eval, recorder, conversion)
	clientH := handlers.NewClientHandler(db, eval, recorder)
	eventH := handlers.NewEventHandler(db, eval, recorder, staffing, finance, proposals, cfg.ContractPrefix)
	financeH := handlers.NewFinanceHandler(db, eval, recorder, finance, staffing)
	contractH := handlers.NewContractHandler(db, eval, recorder, contracts, proposals)
	permH := handlers.NewPermissionHandler(db, eval, recorder)
	userH := handlers.NewUserHandler(db, eval, recorder)
	adminH := handlers.NewAdminHandler(db, recorder)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(sessions.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Session-free endpoints: login and the public acceptance page.
		r.Post("/login", authH.Login)
		r.Get("/contratos/aceite/{token}", contractH.PreviewAcceptance)
		r.Post("/contratos/aceite/{token}", contractH.Accept)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Get("/me", authH.Me)
			r.Post("/logout", authH.Logout)

			r.Route("/leads", func(r chi.Router) {
				r.Get("/", leadH.List)
				r.Post("/", leadH.Create)
				r.Get("/{id}", leadH.Get)
				r.Put("/{id}", leadH.Update)
				r.Patch("/{id}", leadH.Update)
				r.Delete("/{id}", leadH.Delete)
				r.Post("/{id}/converter", leadH.Convert)
			})

			r.Route("/clientes", func(r chi.Router) {
				r.Get("/", clientH.List)
				r.Post("/", clientH.Create)
				r.Get("/{id}", clientH.Get)
				r.Put("/{id}", clientH.Update)
				r.Patch("/{id}", clientH.Update)
				r.Delete("/{id}", clientH.Delete)
			})

			r.Route("/eventos", func(r chi.Router) {
				r.Get("/", eventH.List)
				r.Post("/", eventH.Create)
				r.Get("/{id}", eventH.Get)
				r.Put("/{id}", eventH.Update)
				r.Patch("/{id}", eventH.Update)
				r.Delete("/{id}", eventH.Delete)

				r.Get("/{id}/equipe", eventH.ListStaffing)
				r.Post("/{id}/equipe", eventH.AddStaffing)
				r.Put("/{id}/equipe/{rowId}", eventH.UpdateStaffing)
				r.Patch("/{id}/equipe/{rowId}", eventH.UpdateStaffing)
				r.Delete("/{id}/equipe/{rowId}", eventH.DeleteStaffing)
				r.Post("/{id}/equipe/recalcular", eventH.Recompute)

				r.Post("/{id}/gerar-parcelas", eventH.GenerateInstallments)
				r.Get("/{id}/parcelas", eventH.ListInstallments)
				r.Get("/{id}/resumo-financeiro", eventH.FinancialSummary)

				r.Get("/{id}/propostas", eventH.ListProposals)
				r.Post("/{id}/propostas", eventH.CreateProposal)
			})

			r.Route("/financeiro", func(r chi.Router) {
				r.Get("/ar", financeH.ListTitles)
				r.Post("/ar", financeH.CreateTitle)
				r.Post("/ar/gerar-padrao", financeH.GenerateDefaultTitle)
				r.Get("/ar/{id}", financeH.GetTitle)
				r.Patch("/ar/parcelas/{id}", financeH.SetInstallmentStatus)

				r.Get("/ap", financeH.ListPayables)
				r.Post("/ap", financeH.CreatePayable)
				r.Put("/ap/{id}", financeH.UpdatePayable)
				r.Patch("/ap/{id}", financeH.UpdatePayable)
				r.Delete("/ap/{id}", financeH.DeletePayable)

				r.Get("/caixa", financeH.ListLedger)
				r.Post("/caixa", financeH.CreateLedgerEntry)
				r.Delete("/caixa/{id}", financeH.DeleteLedgerEntry)

				r.Get("/custos", financeH.ListRoles)
				r.Post("/custos", financeH.CreateRole)
				r.Put("/custos/{id}", financeH.UpdateRole)
				r.Patch("/custos/{id}", financeH.UpdateRole)
				r.Delete("/custos/{id}", financeH.DeleteRole)

				r.Get("/resumo", financeH.Summary)
			})

			r.Route("/propostas", func(r chi.Router) {
				r.Patch("/{id}", contractH.TransitionProposal)
			})

			r.Route("/contratos", func(r chi.Router) {
				r.Get("/", contractH.List)
				r.Post("/", contractH.Create)
				r.Get("/{id}", contractH.Get)
				r.Post("/{id}/versoes", contractH.AddVersion)
				r.Post("/{id}/token", contractH.IssueToken)
			})

			r.Route("/permissoes", func(r chi.Router) {
				r.Get("/perfis", permH.ListMatrix)
				r.Put("/perfis", permH.ReplaceMatrix)
				r.Get("/me", permH.MyPermissions)
			})

			r.Route("/usuarios", func(r chi.Router) {
				r.Get("/", userH.List)
				r.Post("/", userH.Create)
				r.Patch("/{id}", userH.Update)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/diag-null-empresa", adminH.DiagNullEmpresa)
				r.Post("/backfill-null-empresa", adminH.BackfillNullEmpresa)
			})
		})
	})

	return r
}

// requestLogger emits one structured line per request and feeds the status
// class counter.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.ObserveRequest(strconv.Itoa(status/100) + "xx")
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
