package engine

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"campus-backend/internal/i18n"
	"campus-backend/internal/metadata"
	"campus-backend/internal/store"
)

// Handler serves the presentation metadata API: report listing and
// execution, dynamic table pages and dynamic form schemas.
type Handler struct {
	store         *store.Store
	registry      *metadata.Registry
	runner        *ReportRunner
	options       *OptionResolver
	forms         *FormResolver
	tables        *TableRunner
	audit         *StoreAuditSink
	defaultLocale string
}

func NewHandler(s *store.Store, reg *metadata.Registry, runner *ReportRunner, options *OptionResolver, forms *FormResolver, tables *TableRunner, audit *StoreAuditSink, defaultLocale string) *Handler {
	return &Handler{
		store:         s,
		registry:      reg,
		runner:        runner,
		options:       options,
		forms:         forms,
		tables:        tables,
		audit:         audit,
		defaultLocale: defaultLocale,
	}
}

// locale resolves the response locale: explicit query override first,
// then Accept-Language.
func (h *Handler) locale(c *fiber.Ctx) string {
	if q := c.Query("locale"); q != "" {
		return i18n.Normalize(q)
	}
	return i18n.Match(c.Get("Accept-Language"), h.defaultLocale)
}

// ListReports handles GET /api/reports.
func (h *Handler) ListReports(c *fiber.Ctx) error {
	locale := h.locale(c)

	reports := h.registry.AllReports()
	out := make([]fiber.Map, 0, len(reports))
	for _, def := range reports {
		if !def.IsActive {
			continue
		}
		out = append(out, fiber.Map{
			"code":     def.Code,
			"name":     def.Name(locale),
			"category": def.Category,
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

// GetReportConfig handles GET /api/reports/:code. It returns what a
// client needs to render the parameter form: localized labels, resolved
// option lists, dependency rules and chart descriptors.
func (h *Handler) GetReportConfig(c *fiber.Ctx) error {
	def, err := h.resolveReport(c)
	if err != nil {
		return err
	}
	locale := h.locale(c)

	params := make([]fiber.Map, 0, len(def.Parameters))
	for i := range def.Parameters {
		p := &def.Parameters[i]
		if !p.Visible() {
			continue
		}
		options := p.Options
		if len(options) == 0 && p.OptionsSource != nil {
			options = h.options.Resolve(c.Context(), p.OptionsSource, locale)
		}
		params = append(params, fiber.Map{
			"key":           p.Key,
			"label":         p.Label(locale),
			"input_type":    p.InputType,
			"required":      p.IsRequired,
			"default_value": p.DefaultValue,
			"options":       options,
			"depends_on":    p.DependsOn,
			"validation":    p.Validation,
		})
	}

	charts := make([]fiber.Map, 0, len(def.Charts))
	for i := range def.Charts {
		ch := &def.Charts[i]
		charts = append(charts, fiber.Map{
			"key":   ch.Key,
			"title": ch.Title(locale),
			"type":  ch.ChartType,
		})
	}

	return c.JSON(fiber.Map{"data": fiber.Map{
		"code":       def.Code,
		"name":       def.Name(locale),
		"category":   def.Category,
		"parameters": params,
		"charts":     charts,
	}})
}

// GenerateReport handles POST /api/reports/:code/generate.
func (h *Handler) GenerateReport(c *fiber.Ctx) error {
	def, err := h.resolveReport(c)
	if err != nil {
		return err
	}
	locale := h.locale(c)

	var body struct {
		Parameters map[string]any `json:"parameters"`
	}
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	merged := MergeParameters(def, body.Parameters)
	if details := ValidateParameters(def, merged, locale); len(details) > 0 {
		return ValidationError(details)
	}

	user := getUser(c)
	userID := ""
	if user != nil {
		userID = user.ID
	}

	result, err := h.runner.Run(c.UserContext(), def, RunRequest{
		Params: body.Parameters,
		UserID: userID,
		Locale: locale,
	})
	if err != nil {
		var execErr *ReportExecutionError
		if errors.As(err, &execErr) {
			return NewAppError("REPORT_FAILED", 500, execErr.Error())
		}
		return err
	}

	return c.JSON(fiber.Map{"data": result})
}

// GetReportLogs handles GET /api/reports/:code/logs.
func (h *Handler) GetReportLogs(c *fiber.Ctx) error {
	def, err := h.resolveReport(c)
	if err != nil {
		return err
	}
	entries, err := h.audit.RecentRuns(c.Context(), def.Code, c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// GetReportStats handles GET /api/reports/:code/stats.
func (h *Handler) GetReportStats(c *fiber.Ctx) error {
	def, err := h.resolveReport(c)
	if err != nil {
		return err
	}
	stats, err := h.audit.Stats(c.Context(), def.Code)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// ReloadMetadata handles POST /api/metadata/reload. Admin only; swaps in
// freshly loaded definitions atomically.
func (h *Handler) ReloadMetadata(c *fiber.Ctx) error {
	if err := metadata.Reload(c.Context(), h.store.DB, h.registry); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Metadata reloaded"})
}

// QueryTable handles POST /api/tables/:code/query.
func (h *Handler) QueryTable(c *fiber.Ctx) error {
	code := c.Params("code")
	def := h.registry.GetTable(code)
	if def == nil || !def.IsActive {
		return NotFoundError("table", code)
	}

	var req TableQuery
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	result, err := h.tables.Run(c.UserContext(), def, req, h.locale(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// GetTableFilters handles GET /api/tables/:code/filters, returning the
// filter controls with resolved option lists.
func (h *Handler) GetTableFilters(c *fiber.Ctx) error {
	code := c.Params("code")
	def := h.registry.GetTable(code)
	if def == nil || !def.IsActive {
		return NotFoundError("table", code)
	}
	locale := h.locale(c)

	filters := make([]fiber.Map, 0, len(def.Filters))
	for i := range def.Filters {
		f := &def.Filters[i]
		options := f.Options
		if len(options) == 0 && f.OptionsSource != nil {
			options = h.options.Resolve(c.Context(), f.OptionsSource, locale)
		}
		filters = append(filters, fiber.Map{
			"key":         f.Key,
			"label":       f.Label(locale),
			"filter_type": f.FilterType,
			"options":     options,
		})
	}
	return c.JSON(fiber.Map{"data": filters})
}

// ResolveForm handles POST /api/forms/:code/resolve. The body carries the
// current field values so conditional sections and fields reflect them.
func (h *Handler) ResolveForm(c *fiber.Ctx) error {
	def := h.registry.GetForm(c.Params("code"))
	if def == nil || !def.IsActive {
		return NotFoundError("form", c.Params("code"))
	}

	var body struct {
		Values map[string]any `json:"values"`
	}
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	schema := h.forms.ResolveSchema(c.Context(), def, body.Values, h.locale(c))
	return c.JSON(fiber.Map{"data": schema})
}

// ComputeForm handles POST /api/forms/:code/compute, returning the
// derived values of every computed field for the submitted values.
func (h *Handler) ComputeForm(c *fiber.Ctx) error {
	def := h.registry.GetForm(c.Params("code"))
	if def == nil || !def.IsActive {
		return NotFoundError("form", c.Params("code"))
	}

	var body struct {
		Values map[string]any `json:"values"`
	}
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	return c.JSON(fiber.Map{"data": h.forms.ComputeFields(def, body.Values)})
}

func (h *Handler) resolveReport(c *fiber.Ctx) (*metadata.ReportDefinition, error) {
	code := c.Params("code")
	def := h.registry.GetReport(code)
	if def == nil || !def.IsActive {
		return nil, NotFoundError("report", code)
	}
	return def, nil
}

func getUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals("user").(*metadata.UserContext)
	return user
}
