package authz

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/approvals"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/audit"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/observability"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/platform/httpx"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

// Deciders race; the external layer retries bounded before surfacing.
const maxConflictAttempts = 3

// Handler binds the facade to HTTP routes. Transport only: parse, validate,
// call the facade, map errors.
type Handler struct {
	logger   *slog.Logger
	facade   *Facade
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, facade *Facade, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, facade: facade, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers the facade routes. The router wraps them with the
// token middleware, so a principal is always present in context.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Post("/assignments", h.assignRole)
	r.Delete("/assignments", h.revokeRole)
	r.Get("/principals/{principalID}/roles", h.principalRoles)
	r.Get("/can-act", h.canAct)
	r.Post("/requests", h.submitRequest)
	r.Get("/requests/pending", h.listPending)
	r.Get("/requests/{requestID}", h.getRequest)
	r.Get("/requests/{requestID}/steps", h.listSteps)
	r.Post("/requests/{requestID}/decision", h.decide)
	r.Get("/audit", h.auditTrail)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": h.facade.Roles()})
}

type assignmentPayload struct {
	PrincipalID int64  `json:"principal_id" validate:"required"`
	RoleName    string `json:"role_name" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Missing Principal", "")
		return
	}
	var payload assignmentPayload
	if !h.decode(w, r, &payload) {
		return
	}
	asg, err := h.facade.AssignRole(r.Context(), payload.PrincipalID, payload.RoleName, &actor.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, asg)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Missing Principal", "")
		return
	}
	var payload assignmentPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.facade.RevokeRole(r.Context(), payload.PrincipalID, payload.RoleName, actor.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) principalRoles(w http.ResponseWriter, r *http.Request) {
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Principal ID", err.Error())
		return
	}
	names, err := h.facade.PrincipalRoles(r.Context(), principalID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"principal_id": principalID, "roles": names})
}

func (h *Handler) canAct(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		httpx.Problem(w, http.StatusBadRequest, "Missing Role", "query parameter role is required")
		return
	}
	principalID := int64(0)
	if raw := r.URL.Query().Get("principal_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Principal ID", err.Error())
			return
		}
		principalID = parsed
	} else if actor, ok := shared.PrincipalFromContext(r.Context()); ok {
		principalID = actor.ID
	}
	allowed, err := h.facade.CanAct(r.Context(), principalID, role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"principal_id": principalID, "role": role, "can_act": allowed})
}

type submitPayload struct {
	OperationType string          `json:"operation_type" validate:"required"`
	Title         string          `json:"title" validate:"required"`
	Payload       json.RawMessage `json:"payload"`
}

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Missing Principal", "")
		return
	}
	var payload submitPayload
	if !h.decode(w, r, &payload) {
		return
	}
	req, err := h.facade.SubmitRequest(r.Context(), approvals.SubmitInput{
		OperationType: payload.OperationType,
		Title:         payload.Title,
		Payload:       payload.Payload,
		SubmitterID:   actor.ID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordSubmission(req.OperationType, string(req.Status))
	httpx.JSON(w, http.StatusCreated, req)
}

type decidePayload struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Comments string `json:"comments"`
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Missing Principal", "")
		return
	}
	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request ID", err.Error())
		return
	}
	var payload decidePayload
	if !h.decode(w, r, &payload) {
		return
	}

	var updated approvals.ApprovalRequest
	for attempt := 1; ; attempt++ {
		updated, err = h.facade.Decide(r.Context(), requestID, actor.ID, approvals.Decision(payload.Decision), payload.Comments)
		if err == nil || !errors.Is(err, shared.ErrConflict) || attempt == maxConflictAttempts {
			break
		}
		h.metrics.RecordConflictRetry()
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordDecision(payload.Decision)
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request ID", err.Error())
		return
	}
	req, err := h.facade.GetRequest(r.Context(), requestID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) listSteps(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request ID", err.Error())
		return
	}
	steps, err := h.facade.RequestSteps(r.Context(), requestID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if steps == nil {
		steps = []approvals.ApprovalStep{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"request_id": requestID, "steps": steps})
}

// listPending serves both views: ?role= for a role's queue, no parameter for
// the acting principal's own queue.
func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	var (
		pending []approvals.ApprovalRequest
		err     error
	)
	if role := r.URL.Query().Get("role"); role != "" {
		pending, err = h.facade.ListPendingByRole(r.Context(), role)
	} else {
		actor, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Missing Principal", "")
			return
		}
		pending, err = h.facade.ListPendingFor(r.Context(), actor.ID)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if pending == nil {
		pending = []approvals.ApprovalRequest{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requests": pending})
}

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := audit.Filter{
		TargetID: query.Get("target_id"),
		Kind:     audit.ActionKind(query.Get("kind")),
	}
	if raw := query.Get("actor_id"); raw != "" {
		actorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Actor ID", err.Error())
			return
		}
		filter.ActorID = actorID
	}
	var err error
	if filter.From, err = parseTimeParam(query.Get("from")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid From", err.Error())
		return
	}
	if filter.To, err = parseTimeParam(query.Get("to")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid To", err.Error())
		return
	}

	var cursor audit.Cursor
	if raw := query.Get("after_time"); raw != "" {
		if cursor.OccurredAt, err = parseTimeParam(raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Cursor", err.Error())
			return
		}
		if cursor.ID, err = uuid.Parse(query.Get("after_id")); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Cursor", err.Error())
			return
		}
	}

	limit := defaultAuditLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Limit", raw)
			return
		}
		if parsed < maxAuditLimit {
			limit = parsed
		} else {
			limit = maxAuditLimit
		}
	}

	stream := h.facade.AuditTrail(filter, cursor)
	records := make([]audit.Record, 0, limit)
	for len(records) < limit {
		rec, ok, err := stream.Next(r.Context())
		if err != nil {
			h.logger.Error("audit stream", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		if !ok {
			break
		}
		records = append(records, rec)
	}
	response := map[string]any{"records": records}
	if len(records) == limit {
		response["next_cursor"] = stream.Cursor()
	}
	httpx.JSON(w, http.StatusOK, response)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
