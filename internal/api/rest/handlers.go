package rest

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/davidleathers/callshield-core/internal/domain/errors"
	"github.com/davidleathers/callshield-core/internal/domain/rules"
	"github.com/davidleathers/callshield-core/internal/infrastructure/auth"
	"github.com/davidleathers/callshield-core/internal/service/blocker"
	"github.com/davidleathers/callshield-core/internal/service/classification"
	syncsvc "github.com/davidleathers/callshield-core/internal/service/sync"
)

// Handler exposes the filtering engine over HTTP. The reconciler and auth
// service are optional: without them, the sync endpoints report that sync
// is disabled.
type Handler struct {
	blocker    *blocker.Service
	reconciler *syncsvc.Reconciler
	auth       *auth.Service
	logger     *zap.Logger
	version    string
}

func NewHandler(b *blocker.Service, r *syncsvc.Reconciler, a *auth.Service, logger *zap.Logger, version string) *Handler {
	return &Handler{blocker: b, reconciler: r, auth: a, logger: logger, version: version}
}

func (h *Handler) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/classify", h.classify)
	mux.HandleFunc("GET /api/v1/calls", h.listCalls)
	mux.HandleFunc("DELETE /api/v1/calls", h.clearCalls)
	mux.HandleFunc("GET /api/v1/stats", h.stats)
	mux.HandleFunc("GET /api/v1/patterns/attacks", h.attacks)
	mux.HandleFunc("GET /api/v1/patterns/repeat-callers", h.repeatCallers)
	mux.HandleFunc("GET /api/v1/settings", h.getSettings)
	mux.HandleFunc("PUT /api/v1/settings", h.putSettings)
	mux.HandleFunc("GET /api/v1/custom-list", h.listEntries)
	mux.HandleFunc("POST /api/v1/custom-list", h.addEntry)
	mux.HandleFunc("DELETE /api/v1/custom-list/{id}", h.removeEntry)
	mux.HandleFunc("PUT /api/v1/security-level", h.securityLevel)
	mux.HandleFunc("PUT /api/v1/active", h.setActive)
	mux.HandleFunc("POST /api/v1/session", h.createSession)
	mux.HandleFunc("PUT /api/v1/connectivity", h.connectivity)
	mux.HandleFunc("POST /api/v1/sync", h.syncNow)
	mux.HandleFunc("POST /api/v1/sync/restore", h.restore)
	mux.HandleFunc("GET /api/v1/sync/status", h.syncStatus)
	mux.HandleFunc("GET /healthz", h.health)
}

type classifyRequest struct {
	PhoneNumber   *string `json:"phone_number"`
	SourceAddress *string `json:"source_address"`
	VoIP          bool    `json:"voip"`
}

type classifyResponse struct {
	Blocked bool    `json:"blocked"`
	Reason  *string `json:"reason,omitempty"`
}

func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidationError("INVALID_BODY", "malformed request body"))
		return
	}

	decision, err := h.blocker.HandleIncomingCall(r.Context(), classification.Input{
		PhoneNumber:   req.PhoneNumber,
		SourceAddress: req.SourceAddress,
		VoIP:          req.VoIP,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := classifyResponse{Blocked: decision.Blocked}
	if decision.Reason != nil {
		reason := string(*decision.Reason)
		resp.Reason = &reason
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listCalls(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"calls": h.blocker.CallLog()})
}

func (h *Handler) clearCalls(w http.ResponseWriter, r *http.Request) {
	h.blocker.ClearCallLog(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("detailed") == "true" {
		h.writeJSON(w, http.StatusOK, h.blocker.DetailedStats())
		return
	}
	h.writeJSON(w, http.StatusOK, h.blocker.Stats())
}

func (h *Handler) attacks(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"attacks": h.blocker.Attacks()})
}

func (h *Handler) repeatCallers(w http.ResponseWriter, r *http.Request) {
	threshold := 0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, errors.NewValidationError("INVALID_THRESHOLD", "threshold must be a positive integer"))
			return
		}
		threshold = n
	}
	h.writeJSON(w, http.StatusOK, h.blocker.RepeatCallers(threshold))
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.blocker.Settings())
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var settings rules.BlockSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, errors.NewValidationError("INVALID_BODY", "malformed request body"))
		return
	}
	h.blocker.UpdateSettings(r.Context(), settings)
	h.writeJSON(w, http.StatusOK, h.blocker.Settings())
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	list := h.blocker.CustomList()
	if term := r.URL.Query().Get("q"); term != "" {
		h.writeJSON(w, http.StatusOK, map[string]any{"entries": list.Search(term)})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": list.Entries()})
}

type addEntryRequest struct {
	Value   string `json:"value"`
	Kind    string `json:"type"`
	Blocked bool   `json:"is_blocked"`
	Notes   string `json:"notes"`
}

func (h *Handler) addEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidationError("INVALID_BODY", "malformed request body"))
		return
	}
	entry, err := h.blocker.AddEntry(r.Context(), req.Value, rules.EntryKind(req.Kind), req.Blocked, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) removeEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.blocker.RemoveEntry(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type securityLevelRequest struct {
	Level string `json:"level"`
}

func (h *Handler) securityLevel(w http.ResponseWriter, r *http.Request) {
	var req securityLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidationError("INVALID_BODY", "malformed request body"))
		return
	}
	if err := h.blocker.ApplySecurityLevel(r.Context(), rules.SecurityLevel(req.Level)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"level":    req.Level,
		"settings": h.blocker.Settings(),
		"entries":  h.blocker.CustomList().Entries(),
	})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidationError("INVALID_BODY", "malformed request body"))
		return
	}
	if err := h.blocker.SetActive(r.Context(), req.Active); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"active": h.blocker.Active()})
}

type sessionRequest struct {
	Token string `json:"token"`
}

// createSession validates a sync token and installs its identity on the
// reconciler. Remote state is keyed by the authenticated user.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil || h.auth == nil {
		h.writeError(w, errors.NewBusinessError("SYNC_DISABLED", "remote sync is not configured"))
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidationError("INVALID_BODY", "malformed request body"))
		return
	}
	claims, err := h.auth.ValidateToken(req.Token)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.reconciler.SetIdentity(claims)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    claims.UserID,
		"email":      claims.Email,
		"expires_at": claims.ExpiresAt.UnixMilli(),
	})
}

type connectivityRequest struct {
	Online bool `json:"online"`
}

// connectivity records the host's network state. Coming back online with
// pending data triggers a sync attempt inside the reconciler.
func (h *Handler) connectivity(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		h.writeError(w, errors.NewBusinessError("SYNC_DISABLED", "remote sync is not configured"))
		return
	}
	var req connectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidationError("INVALID_BODY", "malformed request body"))
		return
	}
	h.reconciler.SetOnline(r.Context(), req.Online)
	h.writeJSON(w, http.StatusOK, h.reconciler.Status())
}

// restore pulls the remote snapshot and adopts its non-empty parts into
// local state.
func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		h.writeError(w, errors.NewBusinessError("SYNC_DISABLED", "remote sync is not configured"))
		return
	}
	snap, err := h.reconciler.Pull(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.blocker.ApplyRemoteSnapshot(r.Context(), snap)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"settings_restored": snap.Settings != nil,
		"entries_restored":  len(snap.CustomList),
		"calls_restored":    len(snap.Calls),
	})
}

func (h *Handler) syncNow(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		h.writeError(w, errors.NewBusinessError("SYNC_DISABLED", "remote sync is not configured"))
		return
	}
	if err := h.reconciler.SyncNow(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.reconciler.Status())
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		h.writeJSON(w, http.StatusOK, syncsvc.Status{})
		return
	}
	h.writeJSON(w, http.StatusOK, h.reconciler.Status())
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": h.version,
		"active":  h.blocker.Active(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errors.GetStatusCode(err)
	body := errorBody{Code: "INTERNAL_ERROR", Message: "internal server error"}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		body = errorBody{Code: appErr.Code, Message: appErr.Message}
	}
	if status >= 500 {
		h.logger.Error("request failed", zap.Error(err))
	}
	h.writeJSON(w, status, map[string]any{"error": body})
}
