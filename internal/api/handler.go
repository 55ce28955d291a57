package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scan"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	scans   *scan.Service
	screens *rules.ScreenEngine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, scans *scan.Service, screens *rules.ScreenEngine, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		scans:   scans,
		screens: screens,
		version: version,
	}
}

// ScanRequest is the optional request body for POST /scan.
type ScanRequest struct {
	// Since restricts the scan to transactions at or after this time.
	// Accepts RFC 3339 or "2006-01-02 15:04:05". Empty scans everything.
	Since string `json:"since,omitempty"`
}

// ScanSummary is the headline numbers of one scan.
type ScanSummary struct {
	Transactions int                `json:"transactions"`
	Alerts       int                `json:"alerts"`
	HighRisk     int                `json:"highRisk"`
	Recent       []domain.AlertView `json:"recent,omitempty"`
}

// ScanResponse is the response for POST /scan.
type ScanResponse struct {
	Summary      ScanSummary          `json:"summary"`
	Transactions []domain.Transaction `json:"transactions"`
	Alerts       []domain.AlertView   `json:"alerts"`
	Skipped      int                  `json:"skipped,omitempty"`
}

// Scan handles POST /scan requests: a full detection run over the
// tenant's transaction history.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req ScanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	var since time.Time
	if req.Since != "" {
		parsed, err := parseTime(req.Since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC 3339 or \"2006-01-02 15:04:05\"",
			})
			return
		}
		since = parsed
	}

	result, err := h.scans.Run(ctx, tenantID, since)
	if err != nil {
		slog.Error("scan failed", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scan failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, ScanResponse{
		Summary:      summarize(result),
		Transactions: result.Transactions,
		Alerts:       result.Alerts,
		Skipped:      result.Skipped,
	})
}

// summarize computes the headline numbers for a scan result. Recent
// holds the five newest alerts by transaction time; the display format
// sorts lexicographically in chronological order.
func summarize(result *scan.Result) ScanSummary {
	summary := ScanSummary{
		Transactions: len(result.Transactions),
		Alerts:       len(result.Alerts),
	}

	for _, a := range result.Alerts {
		if worker.HighSeverity(a.Rule) {
			summary.HighRisk++
		}
	}

	recent := make([]domain.AlertView, len(result.Alerts))
	copy(recent, result.Alerts)
	sort.SliceStable(recent, func(i, j int) bool {
		if recent[i].TransactionDate != recent[j].TransactionDate {
			return recent[i].TransactionDate > recent[j].TransactionDate
		}
		return recent[i].TransactionID < recent[j].TransactionID
	})
	if len(recent) > 5 {
		recent = recent[:5]
	}
	summary.Recent = recent

	return summary
}

// IngestTransactionRequest is the request body for POST /transactions.
type IngestTransactionRequest struct {
	TransactionID   string   `json:"transactionId,omitempty"`
	CustomerID      string   `json:"customerId"`
	Type            string   `json:"type"`
	Amount          float64  `json:"amount"`
	Currency        string   `json:"currency,omitempty"`
	TransactionDate string   `json:"transactionDate"`
	Location        string   `json:"location,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	PayeeID         string   `json:"payeeId,omitempty"`
	MCC             int      `json:"mcc,omitempty"`
}

// IngestTransaction handles POST /transactions requests, adding one
// record to the scan history.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req IngestTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.CustomerID == "" || req.Type == "" || req.TransactionDate == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customerId, type, and transactionDate are required",
		})
		return
	}
	if req.Amount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must not be negative",
		})
		return
	}

	txDate, err := parseTime(req.TransactionDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactionDate must be RFC 3339 or \"2006-01-02 15:04:05\"",
		})
		return
	}

	if req.TransactionID == "" {
		req.TransactionID = uuid.New().String()
	}

	tx := &domain.Transaction{
		TransactionID:   req.TransactionID,
		CustomerID:      req.CustomerID,
		TenantID:        tenantID,
		Type:            req.Type,
		Amount:          req.Amount,
		Currency:        req.Currency,
		TransactionDate: txDate,
		Location:        req.Location,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		PayeeID:         req.PayeeID,
		MCC:             req.MCC,
	}

	if err := h.repo.SaveTransaction(ctx, tenantID, tx); err != nil {
		slog.Error("failed to save transaction", "transaction_id", tx.TransactionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save transaction",
		})
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

// CustomerRequest is the request body for POST /customers.
type CustomerRequest struct {
	CustomerID string `json:"customerId"`
	FullName   string `json:"fullName"`
}

// UpsertCustomer handles POST /customers requests.
func (h *Handler) UpsertCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.CustomerID == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customerId and fullName are required",
		})
		return
	}

	if err := h.repo.SaveCustomer(ctx, tenantID, req.CustomerID, req.FullName); err != nil {
		slog.Error("failed to save customer", "customer_id", req.CustomerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save customer",
		})
		return
	}

	// Resolved names may be cached; drop the stale entry
	if h.cache != nil {
		_ = h.cache.Delete(ctx, tenantID, "name:"+req.CustomerID)
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"customerId": req.CustomerID,
		"fullName":   req.FullName,
	})
}

// ListAlerts handles GET /alerts requests. Supports ?limit=N, newest
// first, default 100.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}

	alerts, err := h.repo.ListAlerts(ctx, tenantID, limit)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	views := make([]domain.AlertView, 0, len(alerts))
	for i := range alerts {
		views = append(views, alerts[i].View())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": views,
		"count":  len(views),
	})
}

// ListCases handles GET /cases requests.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	cases, err := h.repo.ListCases(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list cases", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list cases",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases": cases,
		"count": len(cases),
	})
}

// CaseRequest is the request body for creating a case.
type CaseRequest struct {
	TransactionID   string `json:"transactionId,omitempty"`
	CustomerID      string `json:"customerId"`
	FullName        string `json:"fullName,omitempty"`
	Rule            string `json:"rule"`
	Details         string `json:"details"`
	TransactionDate string `json:"transactionDate,omitempty"`
	FileName        string `json:"fileName,omitempty"`
}

// CreateCase handles POST /cases requests for manually opened cases.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	h.createCase(w, r, "manual")
}

// CreateCaseFromAlert handles POST /cases/from-alert requests: an
// operator promoting an alert into an investigation, optionally with an
// evidence file reference.
func (h *Handler) CreateCaseFromAlert(w http.ResponseWriter, r *http.Request) {
	h.createCase(w, r, "alert")
}

func (h *Handler) createCase(w http.ResponseWriter, r *http.Request, origin string) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.CustomerID == "" || req.Rule == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customerId and rule are required",
		})
		return
	}

	var txDate time.Time
	if req.TransactionDate != "" {
		parsed, err := parseTime(req.TransactionDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "transactionDate must be RFC 3339 or \"2006-01-02 15:04:05\"",
			})
			return
		}
		txDate = parsed
	}

	c := &domain.Case{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		TransactionID:   req.TransactionID,
		CustomerID:      req.CustomerID,
		FullName:        req.FullName,
		Rule:            req.Rule,
		Details:         req.Details,
		TransactionDate: txDate,
		FileName:        req.FileName,
		CreatedAt:       time.Now().UTC(),
	}

	if err := h.repo.SaveCase(ctx, tenantID, c); err != nil {
		slog.Error("failed to save case", "origin", origin, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save case",
		})
		return
	}

	if payload, err := json.Marshal(c); err == nil {
		if err := h.bus.Publish(ctx, tenantID, domain.TopicCaseCreated, payload); err != nil {
			slog.Warn("failed to publish case created", "case_id", c.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, c)
}

// RuleInfo describes one catalogue detector.
type RuleInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListRules handles GET /rules requests: the fixed catalogue plus the
// number of loaded custom screens.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	catalogue := rules.Catalogue()

	infos := make([]RuleInfo, 0, len(catalogue))
	for _, det := range catalogue {
		infos = append(infos, RuleInfo{
			Name:        det.Name(),
			Description: det.Description(),
		})
	}

	screens := 0
	if h.screens != nil {
		screens = h.screens.Count()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":   infos,
		"count":   len(infos),
		"screens": screens,
	})
}

// ListScreens handles GET /screens requests.
func (h *Handler) ListScreens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	cfgs, err := h.repo.ListScreenConfigs(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list screens", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list screens",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"screens": cfgs,
		"count":   len(cfgs),
	})
}

// CreateScreenRequest is the request body for creating a screen.
type CreateScreenRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Reason      string `json:"reason,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// CreateScreen handles POST /screens requests. The expression is
// compiled before anything is stored; enabled screens take effect on
// the next scan without a reload.
func (h *Handler) CreateScreen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	cfg := &domain.ScreenConfig{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	if h.screens != nil {
		if err := h.screens.Validate(cfg); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
	}

	if err := h.repo.SaveScreenConfig(ctx, tenantID, cfg); err != nil {
		slog.Error("failed to save screen", "screen_id", cfg.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save screen",
		})
		return
	}

	if h.screens != nil && cfg.Enabled {
		if err := h.screens.Load(cfg); err != nil {
			slog.Error("failed to load screen", "screen_id", cfg.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, cfg)
}

// ReloadScreens handles POST /screens/reload requests: re-reads the
// tenant's screening rules from storage into the engine.
func (h *Handler) ReloadScreens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	count, err := h.scans.ReloadScreens(ctx, tenantID)
	if err != nil {
		slog.Error("failed to reload screens", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload screens: " + err.Error(),
		})
		return
	}

	slog.Info("screens reloaded", "tenant_id", tenantID, "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "screens reloaded successfully",
		"count":   count,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// parseTime accepts RFC 3339 or the display format.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(domain.DisplayTimeFormat, s)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
