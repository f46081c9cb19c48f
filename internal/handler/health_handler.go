package handler

import (
	"github.com/gofiber/fiber/v3"
)

// FileCounter reports how many files are indexed.
type FileCounter interface {
	Count() (int, error)
}

// HealthHandler serves /health.
type HealthHandler struct {
	appName string
	files   FileCounter
}

func NewHealthHandler(appName string, files FileCounter) *HealthHandler {
	return &HealthHandler{appName: appName, files: files}
}

func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
}

func (h *HealthHandler) Health(c fiber.Ctx) error {
	n, err := h.files.Count()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"app":    h.appName,
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":        "healthy",
		"app":           h.appName,
		"files_indexed": n,
	})
}
