package database

import (
	"errors"

	"profile-store/core/logger"
	"profile-store/core/reconcile"
	"profile-store/core/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the database operator surface.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the database routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/database")
	group.Get("/health", h.HandleHealth)
	group.Get("/schema", h.HandleSchema)
	group.Get("/repairs", h.HandleRepairs)
	group.Get("/sync-logs", h.HandleSyncLogs)
	group.Get("/reconcile", h.HandleReconcile)
	group.Post("/sync-all", h.HandleSyncAll)
	group.Post("/sync-user/:userId", h.HandleSyncUser)
	group.Post("/sync-table/:store", h.HandleSyncTable)
	group.Post("/failover-test", h.HandleFailoverTest)
}

// HandleHealth returns the store health snapshot.
// @Summary Store Health
// @Description Returns availability, consecutive failures and the primary store.
// @Tags database
// @Produce json
// @Success 200 {object} map[string]interface{} "Status"
// @Router /database/health [get]
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"status":  h.service.Status(),
	})
}

// HandleSchema reports relational schema drift.
// @Summary Schema Drift
// @Description Lists profile columns missing from the relational table.
// @Tags database
// @Produce json
// @Success 200 {object} SchemaReport "Schema Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /database/schema [get]
func (h *Handler) HandleSchema(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.CheckSchema(c.Context())
	if err != nil {
		l.Error("Schema check failed", zap.Error(err))
		return failure(c, err)
	}
	return c.JSON(report)
}

// HandleRepairs lists pending background repairs.
// @Summary Pending Repairs
// @Tags database
// @Produce json
// @Success 200 {object} map[string]interface{} "Repairs per user"
// @Router /database/repairs [get]
func (h *Handler) HandleRepairs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"repairs": h.service.PendingRepairs(),
	})
}

// HandleSyncLogs returns the latest sync log entries.
// @Summary Sync Logs
// @Tags database
// @Produce json
// @Param user_id query string false "Only entries of this user"
// @Param limit query int false "Maximum entries (default 50)"
// @Success 200 {object} map[string]interface{} "Entries"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /database/sync-logs [get]
func (h *Handler) HandleSyncLogs(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	entries, err := h.service.sync.Journal().Recent(c.Context(), c.Query("user_id"), c.QueryInt("limit", 50))
	if err != nil {
		l.Error("Failed to read sync logs", zap.Error(err))
		return failure(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"entries": entries,
	})
}

// HandleReconcile builds a drift plan and optionally applies it.
// @Summary Reconcile Stores
// @Description Compares every available store against the relational copy. With sync=true actions are planned; with apply=true they are executed.
// @Tags database
// @Produce json
// @Param user_id query string false "Only report the drift of this user"
// @Param sync query bool false "Plan sync_store actions"
// @Param apply query bool false "Execute planned actions (implies sync)"
// @Success 200 {object} profilesync.ReconcileReport "Reconcile Report"
// @Failure 503 {object} map[string]string "No store available"
// @Router /database/reconcile [get]
func (h *Handler) HandleReconcile(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	if userID := c.Query("user_id"); userID != "" {
		drift, err := h.service.sync.ReconcileUser(c.Context(), userID)
		if err != nil {
			l.Error("User reconcile failed", zap.String("user_id", userID), zap.Error(err))
			return failure(c, err)
		}
		return c.JSON(drift)
	}

	apply := c.QueryBool("apply", false)
	opts := reconcile.ReconcileOptions{
		DoSync:    apply || c.QueryBool("sync", false),
		Confirmed: apply,
		DryRun:    !apply,
	}
	l.Info("Reconcile requested", zap.Bool("apply", apply))

	report, err := h.service.sync.Reconcile(c.Context(), opts)
	if err != nil {
		l.Error("Reconcile failed", zap.Error(err))
		return failure(c, err)
	}
	return c.JSON(report)
}

// HandleSyncAll syncs every user across the stores.
// @Summary Sync All Users
// @Tags database
// @Produce json
// @Success 200 {object} map[string]interface{} "Summary"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /database/sync-all [post]
func (h *Handler) HandleSyncAll(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Starting full database sync")

	summary, err := h.service.sync.SyncAllUsers(c.Context())
	if err != nil {
		l.Error("Full sync failed", zap.Error(err))
		return failure(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Sync completed",
		"result":  summary,
	})
}

// HandleSyncUser syncs one user across the stores.
// @Summary Sync User
// @Tags database
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} map[string]interface{} "Result"
// @Failure 404 {object} map[string]string "User not found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /database/sync-user/{userId} [post]
func (h *Handler) HandleSyncUser(c *fiber.Ctx) error {
	userID := c.Params("userId")
	l := logger.WithRayID(h.service.logger, c).With(zap.String("user_id", userID))

	res, err := h.service.sync.SyncUserToAllStores(c.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "User not found",
			})
		}
		l.Error("User sync failed", zap.Error(err))
		return failure(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "User " + userID + " synced across all stores",
		"data":    res,
	})
}

// HandleSyncTable backfills one store from the relational table.
// @Summary Sync Table
// @Tags database
// @Produce json
// @Param store path string true "Target store (document, hierarchical)"
// @Success 200 {object} profilesync.TableResult "Result"
// @Failure 400 {object} map[string]string "Unknown store"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /database/sync-table/{store} [post]
func (h *Handler) HandleSyncTable(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	target, ok := store.ParseName(c.Params("store"))
	if !ok || target == store.Relational {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "target must be document or hierarchical",
		})
	}

	res, err := h.service.sync.SyncTableToStore(c.Context(), target)
	if err != nil {
		l.Error("Table sync failed", zap.String("target", string(target)), zap.Error(err))
		return failure(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"result":  res,
	})
}

// HandleFailoverTest reads probe users through the failover path.
// @Summary Failover Test
// @Tags database
// @Produce json
// @Success 200 {object} FailoverReport "Report"
// @Router /database/failover-test [post]
func (h *Handler) HandleFailoverTest(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Failover test completed",
		"result":  h.service.FailoverTest(c.Context()),
	})
}

// failure maps err to 503 when no store could serve the call and 500
// otherwise.
func failure(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	if errors.Is(err, store.ErrAllStoresUnavailable) {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
