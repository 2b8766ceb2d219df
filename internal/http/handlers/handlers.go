package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/bookbalance/backend/internal/arbiter"
	"github.com/bookbalance/backend/internal/config"
	"github.com/bookbalance/backend/internal/db"
	"github.com/bookbalance/backend/internal/engine"
	"github.com/bookbalance/backend/internal/models"
	"github.com/bookbalance/backend/internal/service"
	"github.com/bookbalance/backend/internal/territory"
)

type Handler struct {
	Store     *db.Store
	Arbiter   arbiter.Reviewer
	Solver    engine.Optimizer
	Resolver  territory.Resolver
	Validator *validator.Validate
	Logger    zerolog.Logger
	Cfg       config.Config

	mappingsMu        sync.RWMutex
	territoryMappings map[string]string
}

func New(store *db.Store, reviewer arbiter.Reviewer, optimizer engine.Optimizer, resolver territory.Resolver, mappings map[string]string, logger zerolog.Logger, cfg config.Config) *Handler {
	if mappings == nil {
		mappings = map[string]string{}
	}
	return &Handler{
		Store:             store,
		Arbiter:           reviewer,
		Solver:            optimizer,
		Resolver:          resolver,
		Validator:         validator.New(),
		Logger:            logger,
		Cfg:               cfg,
		territoryMappings: mappings,
	}
}

// TerritoryMappings returns a copy of the current territory→region
// table.
func (h *Handler) TerritoryMappings() map[string]string {
	h.mappingsMu.RLock()
	defer h.mappingsMu.RUnlock()
	out := make(map[string]string, len(h.territoryMappings))
	for k, v := range h.territoryMappings {
		out[k] = v
	}
	return out
}

type ImportSummary struct {
	Accounts struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"accounts"`
	Reps struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"reps"`
	Errors []string `json:"errors"`
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Import CSV data
// @Description Upload accounts and reps CSV files, replacing the current snapshot
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param accounts formData file true "accounts.csv"
// @Param reps formData file true "reps.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	accountsFile, err := c.FormFile("accounts")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "accounts file required", nil)
		return
	}
	repsFile, err := c.FormFile("reps")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "reps file required", nil)
		return
	}
	if !validateExt(accountsFile.Filename) || !validateExt(repsFile.Filename) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "all files must be .csv", nil)
		return
	}

	summary := ImportSummary{Errors: []string{}}

	accounts, errs := parseAccountsCSV(accountsFile)
	summary.Accounts.Parsed = len(accounts)
	summary.Accounts.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	reps, errs := parseRepsCSV(repsFile)
	summary.Reps.Parsed = len(reps)
	summary.Reps.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	if len(summary.Errors) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", summary.Errors)
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.TruncateAll(ctx); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reset tables", err.Error())
		return
	}

	inserted, err := h.Store.InsertAccounts(ctx, accounts)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert accounts", err.Error())
		return
	}
	summary.Accounts.Inserted = int(inserted)

	inserted, err = h.Store.InsertReps(ctx, reps)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert reps", err.Error())
		return
	}
	summary.Reps.Inserted = int(inserted)

	// Backfill regions for territories the static map does not know.
	if h.Resolver != nil {
		resolved, failed := h.resolveUnmapped(ctx, accounts)
		for t := range resolved {
			h.Logger.Info().Str("territory", t).Str("region", resolved[t]).Msg("territory resolved at import")
		}
		for _, t := range failed {
			h.Logger.Warn().Str("territory", t).Msg("territory resolution failed at import")
		}
	}

	c.JSON(http.StatusOK, summary)
}

// resolveUnmapped asks the resolver for every distinct unmapped
// territory in the account set and merges the answers into the shared
// mapping table.
func (h *Handler) resolveUnmapped(ctx context.Context, accounts []models.Account) (map[string]string, []string) {
	mappings := h.TerritoryMappings()
	resolved := map[string]string{}
	var failed []string
	for _, a := range accounts {
		if !territory.ShouldResolve(a.Territory, mappings, false) {
			continue
		}
		if _, done := resolved[a.Territory]; done {
			continue
		}
		region, _, err := h.Resolver.Resolve(ctx, a.Territory)
		if err != nil {
			failed = append(failed, a.Territory)
			continue
		}
		resolved[a.Territory] = region
		mappings[a.Territory] = region
	}

	h.mappingsMu.Lock()
	for t, region := range resolved {
		h.territoryMappings[t] = region
	}
	h.mappingsMu.Unlock()
	return resolved, failed
}

// @Summary Run the balancing engine
// @Tags process
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/process [post]
func (h *Handler) Process(c *gin.Context) {
	runID := uuid.NewString()
	if err := h.Store.CreateRun(c.Request.Context(), runID, service.StatusRunning); err != nil {
		h.Logger.Error().Err(err).Msg("failed to create run")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create run", err.Error())
		return
	}

	processor := service.ProcessingService{
		Store:             h.Store,
		Arbiter:           h.Arbiter,
		Solver:            h.Solver,
		Cfg:               h.Cfg,
		TerritoryMappings: h.TerritoryMappings(),
		Logger:            h.Logger,
	}
	debug := c.Query("debug")
	summary, err := processor.ProcessBooks(c.Request.Context(), debug == "1" || strings.EqualFold(debug, "true"))
	status := service.StatusSuccess
	if err != nil {
		status = service.StatusFailed
	}
	b, _ := json.Marshal(summary)
	if finishErr := h.Store.FinishRun(c.Request.Context(), runID, status, b); finishErr != nil {
		h.Logger.Error().Err(finishErr).Msg("failed to finish run")
	}

	if err != nil {
		var noReps *engine.NoEligibleRepsError
		if errors.As(err, &noReps) {
			writeError(c, http.StatusConflict, "NO_ELIGIBLE_REPS", "No eligible reps configured", err.Error())
			return
		}
		h.Logger.Error().Err(err).Msg("processing failed")
		writeError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Processing failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Latest run
// @Tags runs
// @Produce json
// @Success 200 {object} models.Run
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	run, err := h.Store.GetLatestRun(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No runs found", err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) AccountsList(c *gin.Context) {
	territoryQ := strings.TrimSpace(c.Query("territory"))
	tier := strings.ToUpper(strings.TrimSpace(c.Query("tier")))
	q := c.Query("q")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Store.ListAccounts(c.Request.Context(), territoryQ, tier, q, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list accounts", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *Handler) AccountDetails(c *gin.Context) {
	id := c.Param("id")
	account, err := h.Store.GetAccount(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Account not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get account", err.Error())
		return
	}

	resp := gin.H{"account": account}
	if proposal, err := h.Store.GetProposalByAccount(c.Request.Context(), id); err == nil {
		resp["proposal"] = proposal
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) RepsList(c *gin.Context) {
	region := strings.TrimSpace(c.Query("region"))
	team := strings.TrimSpace(c.Query("team"))
	items, err := h.Store.ListReps(c.Request.Context(), region, team)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list reps", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) ProposalsList(c *gin.Context) {
	assignmentType := strings.ToLower(strings.TrimSpace(c.Query("type")))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Store.ListProposals(c.Request.Context(), assignmentType, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list proposals", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Debug eligibility
// @Tags debug
// @Produce json
// @Param account_id query string true "Account ID"
// @Success 200 {object} map[string]any
// @Router /api/debug/eligibility [get]
func (h *Handler) DebugEligibility(c *gin.Context) {
	accountID := strings.TrimSpace(c.Query("account_id"))
	if accountID == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "account_id is required", nil)
		return
	}

	account, err := h.Store.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Account not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load account", err.Error())
		return
	}

	reps, err := h.Store.ListReps(c.Request.Context(), "", "")
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load reps", err.Error())
		return
	}
	accounts, err := h.Store.GetAccountsForRun(c.Request.Context(), account.IsCustomer)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load accounts", err.Error())
		return
	}

	cfg := h.engineConfig(account.IsCustomer)
	topARR := engine.TopARRThreshold(accounts)
	elig := engine.FilterEligible(account, reps, cfg, engine.ModeGeographic, topARR)
	fallback := engine.FilterEligible(account, reps, cfg, engine.ModeFallback, topARR)

	stageIDs := map[string][]string{}
	for _, stage := range elig.Stages {
		ids := []string{}
		for _, r := range stage.Candidates {
			ids = append(ids, r.RepID)
		}
		stageIDs[stage.Name] = ids
	}
	fallbackIDs := []string{}
	for _, r := range fallback.Eligible {
		fallbackIDs = append(fallbackIDs, r.RepID)
	}
	eligibleIDs := []string{}
	for _, r := range elig.Eligible {
		eligibleIDs = append(eligibleIDs, r.RepID)
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id": account.ID,
		"region":     cfg.ResolveRegion(account.Territory, account.Geo),
		"stages":     stageIDs,
		"final": gin.H{
			"eligible":    eligibleIDs,
			"reason_code": elig.ReasonCode,
			"reason_text": elig.ReasonText,
			"fallback":    fallbackIDs,
		},
	})
}

type ReassignRequest struct {
	RepID  string `json:"rep_id" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) Reassign(c *gin.Context) {
	id := c.Param("id")
	var req ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	reps, err := h.Store.ListReps(c.Request.Context(), "", "")
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load reps", err.Error())
		return
	}
	var rep *models.SalesRep
	for i := range reps {
		if reps[i].RepID == req.RepID {
			rep = &reps[i]
			break
		}
	}
	if rep == nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Rep not found", nil)
		return
	}

	account, err := h.Store.GetAccount(c.Request.Context(), id)
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Account not found", err.Error())
		return
	}

	bookAccounts, err := h.Store.GetAccountsForRun(c.Request.Context(), account.IsCustomer)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load accounts", err.Error())
		return
	}

	cfg := h.engineConfig(account.IsCustomer)
	elig := engine.FilterEligible(account, reps, cfg, engine.ModeFallback, engine.TopARRThreshold(bookAccounts))
	override := true
	for _, r := range elig.Eligible {
		if r.RepID == rep.RepID {
			override = false
			break
		}
	}

	conflictFlag := ""
	if override {
		conflictFlag = "MANUAL_OVERRIDE"
	}
	rationale := "manual reassignment: " + req.Reason
	if err := h.Store.ReassignProposal(c.Request.Context(), id, rep.RepID, rep.Name, rationale, conflictFlag); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "No proposal for account", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reassign", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "override": override})
}

// @Summary Resolve unmapped territories
// @Description Ask the territory AI service for regions the static map lacks
// @Tags territories
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/territories/resolve [post]
func (h *Handler) ResolveTerritories(c *gin.Context) {
	if h.Resolver == nil {
		writeError(c, http.StatusBadRequest, "INVALID_STATE", "No territory resolver configured", nil)
		return
	}

	accounts, err := h.Store.ListAccounts(c.Request.Context(), "", "", "", 200, 0)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list accounts", err.Error())
		return
	}

	resolved, failed := h.resolveUnmapped(c.Request.Context(), accounts)
	if failed == nil {
		failed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"resolved": resolved, "failed": failed})
}

func (h *Handler) engineConfig(isCustomer bool) engine.Config {
	processor := service.ProcessingService{Cfg: h.Cfg, TerritoryMappings: h.TerritoryMappings()}
	return processor.EngineConfig(isCustomer)
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
