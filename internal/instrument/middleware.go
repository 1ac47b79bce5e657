package instrument

import (
	"math/rand"

	"github.com/gofiber/fiber/v2"

	"campus-backend/internal/config"
	"campus-backend/internal/metadata"
)

// Middleware returns a Fiber middleware that sets up tracing per request.
// It generates (or propagates) a trace ID, opens a root HTTP span, and
// injects the instrumenter into the request context for downstream handlers.
func Middleware(cfg config.InstrumentationConfig, buffer *EventBuffer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Enabled || buffer == nil {
			return c.Next()
		}

		// Sampling: skip tracing for a proportion of requests.
		if cfg.SamplingRate < 1.0 && rand.Float64() > cfg.SamplingRate {
			return c.Next()
		}

		traceID := c.Get("X-Trace-ID")
		if traceID == "" {
			traceID = newUUID()
		}

		ctx := c.UserContext()
		instrumenter := NewInstrumenter(buffer)
		ctx = WithTraceID(ctx, traceID)
		ctx = WithInstrumenter(ctx, instrumenter)

		ctx, span := instrumenter.StartSpan(ctx, "http", "handler", "request")
		span.SetMetadata("method", c.Method())
		span.SetMetadata("path", c.Path())
		c.SetUserContext(ctx)

		c.Set("X-Trace-ID", traceID)

		err := c.Next()

		// Auth middleware runs downstream; pick up the user afterwards.
		if user, ok := c.Locals("user").(*metadata.UserContext); ok && user != nil {
			span.SetMetadata("user_id", user.ID)
			c.SetUserContext(WithUserID(c.UserContext(), user.ID))
		}

		statusCode := c.Response().StatusCode()
		span.SetMetadata("status_code", statusCode)
		if statusCode >= 400 {
			span.SetStatus("error")
		} else {
			span.SetStatus("ok")
		}
		span.End()

		return err
	}
}
