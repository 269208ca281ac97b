package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/audit"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
	"github.com/davidleathers/tenant-isolation-core/internal/service/accesscontrol"
	"github.com/davidleathers/tenant-isolation-core/internal/service/contextmgr"
	isolationsvc "github.com/davidleathers/tenant-isolation-core/internal/service/isolation"
)

type handler struct {
	logger *zap.Logger
	facade *isolationsvc.Service
}

type checkAccessRequest struct {
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Action       string            `json:"action"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

type checkAccessResponse struct {
	Granted bool `json:"granted"`
}

type batchAccessRequest struct {
	Requests []checkAccessRequest `json:"requests"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	var req checkAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	granted, err := h.facade.ValidateAccessWithContext(r.Context(), isolation.Resource{
		Type:       req.ResourceType,
		ID:         req.ResourceID,
		Attributes: req.Attributes,
	}, req.Action)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, checkAccessResponse{Granted: granted})
}

func (h *handler) handleBatchAccess(w http.ResponseWriter, r *http.Request) {
	var req batchAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ic, ok := contextmgr.From(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "no isolation context available")
		return
	}

	requests := make([]accesscontrol.AccessRequest, 0, len(req.Requests))
	for _, item := range req.Requests {
		requests = append(requests, accesscontrol.AccessRequest{
			Resource: isolation.Resource{
				Type:       item.ResourceType,
				ID:         item.ResourceID,
				Attributes: item.Attributes,
			},
			Action: item.Action,
		})
	}

	results := h.facade.ValidateBatchAccess(r.Context(), ic, requests)
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	summary, err := h.facade.CheckPermissionWithContext(r.Context())
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleAuditQuery returns audit entries. Non-platform contexts are pinned
// to their own tenant regardless of the filter they send.
func (h *handler) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	ic, ok := contextmgr.From(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "no isolation context available")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Type:         audit.EntryType(q.Get("type")),
		TenantID:     q.Get("tenant_id"),
		UserID:       q.Get("user_id"),
		ResourceType: q.Get("resource_type"),
		Action:       q.Get("action"),
		Operation:    q.Get("operation"),
	}
	if v := q.Get("granted"); v != "" {
		granted, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid granted parameter")
			return
		}
		filter.Granted = &granted
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		filter.Limit = limit
	}

	if ic.SharingLevel != isolation.SharingLevelPlatform {
		filter.TenantID = ic.TenantID
	}

	entries, err := h.facade.Audit().Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// handleSecurityReport returns the anomalous access report over the last N
// hours (default 24). Platform contexts only.
func (h *handler) handleSecurityReport(w http.ResponseWriter, r *http.Request) {
	ic, ok := contextmgr.From(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "no isolation context available")
		return
	}
	if ic.SharingLevel != isolation.SharingLevelPlatform {
		writeError(w, http.StatusForbidden, "security reports require platform access")
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid hours parameter")
			return
		}
		hours = parsed
	}

	end := time.Now()
	start := end.Add(-time.Duration(hours) * time.Hour)
	report := h.facade.Monitor().AnomalousAccessReport(start, end)

	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
