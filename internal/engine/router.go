package engine

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the presentation API. Everything requires an
// authenticated user; metadata reload additionally requires admin.
func RegisterRoutes(app *fiber.App, h *Handler, authMW, adminMW fiber.Handler) {
	reports := app.Group("/api/reports", authMW)
	reports.Get("/", h.ListReports)
	reports.Get("/:code", h.GetReportConfig)
	reports.Post("/:code/generate", h.GenerateReport)
	reports.Get("/:code/logs", h.GetReportLogs)
	reports.Get("/:code/stats", h.GetReportStats)

	tables := app.Group("/api/tables", authMW)
	tables.Post("/:code/query", h.QueryTable)
	tables.Get("/:code/filters", h.GetTableFilters)

	forms := app.Group("/api/forms", authMW)
	forms.Post("/:code/resolve", h.ResolveForm)
	forms.Post("/:code/compute", h.ComputeForm)

	app.Post("/api/metadata/reload", authMW, adminMW, h.ReloadMetadata)
}
