package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Emmyhack/Ahorro/internal/domain"
	"github.com/Emmyhack/Ahorro/internal/service"
)

// GroupService defines the methods the group handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service wiring.
type GroupService interface {
	CreateGroup(ctx context.Context, caller string, p service.CreateGroupParams) (domain.ThriftGroup, error)
	GetGroupState(ctx context.Context, groupID string) (domain.GroupSnapshot, error)
	ListGroups(ctx context.Context, opts domain.ListOpts) ([]domain.ThriftGroup, error)
	Contribute(ctx context.Context, caller, groupID string, amount int64) (service.ContributionResult, error)
	AdvanceCycle(ctx context.Context, caller, groupID string) (domain.Advancement, error)
	MarkDefault(ctx context.Context, caller, groupID, member string) error
	ClaimInsurance(ctx context.Context, caller, groupID, member string, claim int64) (service.ClaimResult, error)
	TerminateGroup(ctx context.Context, caller, groupID string) ([]service.Refund, error)
}

// AuditReader exposes the audit trail for the audit endpoint.
type AuditReader interface {
	List(ctx context.Context, groupID string, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// GroupHandler serves the thrift group HTTP endpoints.
type GroupHandler struct {
	groups GroupService
	audit  AuditReader // optional
	logger *slog.Logger
}

// NewGroupHandler creates a GroupHandler with the given service and logger.
func NewGroupHandler(groups GroupService, audit AuditReader, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{
		groups: groups,
		audit:  audit,
		logger: logger,
	}
}

// createGroupRequest is the group creation payload.
type createGroupRequest struct {
	ModelType          string   `json:"model_type"`
	InsuranceBps       int      `json:"insurance_bps"`
	CycleOrder         []string `json:"cycle_order"`
	ContributionAmount int64    `json:"contribution_amount"`
	GraceWindowSeconds int64    `json:"grace_window_seconds"`
	DebtPolicy         string   `json:"debt_policy"`
}

// CreateGroup creates and activates a new thrift group.
// POST /api/groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.GraceWindowSeconds < 0 {
		writeError(w, http.StatusBadRequest, "grace_window_seconds must not be negative")
		return
	}

	model := domain.ModelType(req.ModelType)
	if model == "" {
		model = domain.ModelFixedRotation
	}

	g, err := h.groups.CreateGroup(r.Context(), caller(r), service.CreateGroupParams{
		ModelType:          model,
		InsuranceBps:       req.InsuranceBps,
		CycleOrder:         req.CycleOrder,
		ContributionAmount: req.ContributionAmount,
		GraceWindow:        time.Duration(req.GraceWindowSeconds) * time.Second,
		DebtPolicy:         domain.DebtPolicy(req.DebtPolicy),
	})
	if err != nil {
		h.logError(r, "create group", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, g)
}

// listGroupsResponse wraps the list endpoint output with metadata.
type listGroupsResponse struct {
	Groups []domain.ThriftGroup `json:"groups"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// ListGroups returns groups with pagination and an optional status filter.
// GET /api/groups?limit=50&offset=0&status=active
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	groups, err := h.groups.ListGroups(r.Context(), opts)
	if err != nil {
		h.logError(r, "list groups", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listGroupsResponse{
		Groups: groups,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetGroup returns the full state snapshot of one group.
// GET /api/groups/{id}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing group id")
		return
	}

	snap, err := h.groups.GetGroupState(r.Context(), id)
	if err != nil {
		h.logError(r, "get group", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// contributeRequest is the contribution payload.
type contributeRequest struct {
	Amount int64 `json:"amount"`
}

// Contribute records the caller's contribution for the current cycle.
// POST /api/groups/{id}/contributions
func (h *GroupHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.groups.Contribute(r.Context(), caller(r), id, req.Amount)
	if err != nil {
		h.logError(r, "contribute", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// AdvanceCycle disburses the current cycle's payout.
// POST /api/groups/{id}/advance
func (h *GroupHandler) AdvanceCycle(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	adv, err := h.groups.AdvanceCycle(r.Context(), caller(r), id)
	if err != nil {
		h.logError(r, "advance cycle", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, adv)
}

// markDefaultRequest identifies the member being flagged.
type markDefaultRequest struct {
	Member string `json:"member"`
}

// MarkDefault flags a member as defaulted for the current cycle.
// POST /api/groups/{id}/defaults
func (h *GroupHandler) MarkDefault(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req markDefaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Member == "" {
		writeError(w, http.StatusBadRequest, "missing member")
		return
	}

	if err := h.groups.MarkDefault(r.Context(), caller(r), id, req.Member); err != nil {
		h.logError(r, "mark default", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "flagged"})
}

// claimRequest is the insurance claim payload.
type claimRequest struct {
	Member string `json:"member"`
	Amount int64  `json:"amount"`
}

// claimResponse wraps a claim result with a partial marker for claims the
// pool could not fully cover.
type claimResponse struct {
	service.ClaimResult
	Partial bool `json:"partial"`
}

// ClaimInsurance pays a recorded shortfall down from the insurance pool.
// A partially covered claim succeeds with "partial": true.
// POST /api/groups/{id}/claims
func (h *GroupHandler) ClaimInsurance(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Member == "" {
		writeError(w, http.StatusBadRequest, "missing member")
		return
	}

	res, err := h.groups.ClaimInsurance(r.Context(), caller(r), id, req.Member, req.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientInsurance) && res.Paid > 0 {
			writeJSON(w, http.StatusOK, claimResponse{ClaimResult: res, Partial: true})
			return
		}
		if errors.Is(err, domain.ErrInsufficientInsurance) {
			writeError(w, http.StatusConflict, "insurance pool is empty")
			return
		}
		h.logError(r, "claim insurance", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{ClaimResult: res})
}

// terminateResponse reports the refunds issued during early termination.
type terminateResponse struct {
	Refunds []service.Refund `json:"refunds"`
}

// TerminateGroup ends the group early with full refund settlement.
// POST /api/groups/{id}/terminate
func (h *GroupHandler) TerminateGroup(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	refunds, err := h.groups.TerminateGroup(r.Context(), caller(r), id)
	if err != nil {
		h.logError(r, "terminate group", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, terminateResponse{Refunds: refunds})
}

// ListAudit returns the group's audit trail.
// GET /api/groups/{id}/audit
func (h *GroupHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotFound, "audit log not available")
		return
	}
	id := pathParam(r, "id")

	entries, err := h.audit.List(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logError(r, "list audit", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *GroupHandler) logError(r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}
