package syncapi

import (
	"tablesync/core/logger"
	"tablesync/core/sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for sync runs.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/", h.HandleRunSync)
	group.Get("/health", h.HandleHealth)
}

// HandleRunSync runs one sync and returns its summary. A run that fails
// still answers 200 with the failure detail in the body; only an unreadable
// request is a client error.
func (h *Handler) HandleRunSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	var req RunRequest
	if err := c.BodyParser(&req); err != nil {
		l.Warn("Rejected malformed sync request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	resp := h.service.Run(c.Context(), req)
	if resp.State == string(sync.StateFailed) {
		l.Warn("Sync run failed",
			zap.String("run_id", resp.RunID),
			zap.String("error", resp.Error))
	}
	return c.JSON(resp)
}

// HandleHealth reports service liveness.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
