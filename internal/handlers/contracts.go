package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/audit"
	"github.com/festahub/backoffice/internal/httpx"
	"github.com/festahub/backoffice/internal/models"
	"github.com/festahub/backoffice/internal/rbac"
	"github.com/festahub/backoffice/internal/services"
)

type ContractHandler struct {
	DB        *gorm.DB
	RBAC      *rbac.Evaluator
	Audit     *audit.Recorder
	Contracts *services.ContractService
	Proposals *services.ProposalService
}

func NewContractHandler(db *gorm.DB, eval *rbac.Evaluator, rec *audit.Recorder,
	contracts *services.ContractService, proposals *services.ProposalService) *ContractHandler {
	return &ContractHandler{DB: db, RBAC: eval, Audit: rec, Contracts: contracts, Proposals: proposals}
}

func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleContracts)
	if !ok {
		return
	}
	q := h.DB.Where("empresa_id = ?", claims.TenantID)
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var contracts []models.Contract
	if err := q.Order("id desc").Find(&contracts).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "contratos", contracts)
}

func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleContracts)
	if !ok {
		return
	}
	var req struct {
		EventID    uint   `json:"event_id"`
		ProposalID *uint  `json:"proposal_id"`
		Content    string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	contract, version, err := h.Contracts.Create(r.Context(), claims.TenantID, req.EventID, req.ProposalID, req.Content)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "contracts", Action: "create", Entity: "contract", EntityID: contract.ID})
	httpx.Envelope(w, http.StatusCreated, map[string]any{
		"contrato": contract,
		"versao":   version,
	})
}

func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleContracts)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var contract models.Contract
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&contract, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "contrato"))
		return
	}
	var versions []models.ContractVersion
	err = h.DB.Where("empresa_id = ? AND contract_id = ?", claims.TenantID, contract.ID).
		Order("version desc").Find(&versions).Error
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Envelope(w, http.StatusOK, map[string]any{
		"contrato": contract,
		"versoes":  versions,
	})
}

// AddVersion appends a new revision. Accepted contracts are immutable.
func (h *ContractHandler) AddVersion(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleContracts, rbac.ActionUpdate)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	version, err := h.Contracts.AddVersion(r.Context(), claims.TenantID, id, req.Content)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "contracts", Action: "update", Entity: "contract", EntityID: id})
	httpx.OK(w, http.StatusCreated, "versao", version)
}

// IssueToken mints a single-use acceptance link for the latest version and
// moves the contract to sent.
func (h *ContractHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleContracts, rbac.ActionUpdate)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	token, err := h.Contracts.IssueToken(r.Context(), claims.TenantID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "contracts", Action: "update", Entity: "contract", EntityID: id})
	httpx.Envelope(w, http.StatusCreated, map[string]any{
		"token": token.Token,
		"url":   "/api/contratos/aceite/" + token.Token,
	})
}

// --- proposal transitions (propostas live under the proposals module) ---

func (h *ContractHandler) TransitionProposal(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleProposals, rbac.ActionUpdate)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	proposal, err := h.Proposals.Transition(r.Context(), claims.TenantID, id, req.Status)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "proposals", Action: "update", Entity: "proposal", EntityID: proposal.ID})
	httpx.OK(w, http.StatusOK, "proposta", proposal)
}

// --- public acceptance (token is the whole credential, no session) ---

// PreviewAcceptance renders the version a token points at.
func (h *ContractHandler) PreviewAcceptance(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	version, consumed, err := h.Contracts.TokenPreview(r.Context(), token)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Envelope(w, http.StatusOK, map[string]any{
		"versao":   version,
		"consumed": consumed,
	})
}

// Accept consumes the token. Replays return 200 with already_accepted so the
// client can show the signed state instead of an error.
func (h *ContractHandler) Accept(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	result, err := h.Contracts.Accept(r.Context(), token, remoteIP(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Envelope(w, http.StatusOK, map[string]any{
		"contrato":         result.Contract,
		"already_accepted": result.AlreadyAccepted,
	})
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
