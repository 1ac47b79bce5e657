package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"campus-backend/internal/engine"
	"campus-backend/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     *store.Store
	jwtSecret string
}

func NewAuthHandler(s *store.Store, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: s, jwtSecret: jwtSecret}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	ctx := c.Context()

	pb := h.store.Dialect.NewParamBuilder()
	user, err := store.QueryRow(ctx, h.store.DB,
		"SELECT id, email, password_hash, roles, active FROM _users WHERE email = "+pb.Add(body.Email),
		pb.Params()...)
	if err != nil {
		return engine.UnauthorizedError("Invalid email or password")
	}

	if !isActive(user["active"]) {
		return engine.UnauthorizedError("Account is disabled")
	}

	passwordHash, _ := user["password_hash"].(string)
	if !CheckPassword(body.Password, passwordHash) {
		return engine.UnauthorizedError("Invalid email or password")
	}

	userID, _ := user["id"].(string)
	roles := h.extractRoles(user["roles"])

	pair, err := h.generateTokenPair(ctx, userID, roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Refresh handles POST /api/auth/refresh. Tokens rotate: the presented
// refresh token is consumed whether or not a new pair is issued.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	ctx := c.Context()

	pb := h.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, h.store.DB,
		`SELECT rt.id, rt.user_id, rt.expires_at, u.roles, u.active
		 FROM _refresh_tokens rt
		 JOIN _users u ON u.id = rt.user_id
		 WHERE rt.token = `+pb.Add(body.RefreshToken),
		pb.Params()...)
	if err != nil {
		return engine.UnauthorizedError("Invalid refresh token")
	}

	tokenID, _ := row["id"].(string)
	h.deleteToken(ctx, tokenID)

	expiresAt, _ := row["expires_at"].(time.Time)
	if time.Now().After(expiresAt) {
		return engine.UnauthorizedError("Refresh token expired")
	}
	if !isActive(row["active"]) {
		return engine.UnauthorizedError("Account is disabled")
	}

	userID, _ := row["user_id"].(string)
	pair, err := h.generateTokenPair(ctx, userID, h.extractRoles(row["roles"]))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	pb := h.store.Dialect.NewParamBuilder()
	_, _ = store.Exec(c.Context(), h.store.DB,
		"DELETE FROM _refresh_tokens WHERE token = "+pb.Add(body.RefreshToken),
		pb.Params()...)

	return c.JSON(fiber.Map{"message": "Logged out"})
}

// RegisterAuthRoutes registers auth routes on the given Fiber app.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler) {
	group := app.Group("/api/auth")
	group.Post("/login", h.Login)
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", h.Logout)
}

// --- helpers ---

func (h *AuthHandler) generateTokenPair(ctx context.Context, userID string, roles []string) (*TokenPair, error) {
	accessToken, err := GenerateAccessToken(userID, roles, h.jwtSecret)
	if err != nil {
		return nil, engine.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}

	refreshToken := GenerateRefreshToken()
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := "INSERT INTO _refresh_tokens (id, user_id, token, expires_at) VALUES (" +
		pb.Add(uuid.New().String()) + ", " +
		pb.Add(userID) + ", " +
		pb.Add(refreshToken) + ", " +
		pb.Add(time.Now().Add(RefreshTokenTTL)) + ")"
	if _, err := store.Exec(ctx, h.store.DB, sqlStr, pb.Params()...); err != nil {
		return nil, engine.NewAppError("INTERNAL_ERROR", 500, "Failed to store refresh token")
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (h *AuthHandler) deleteToken(ctx context.Context, tokenID string) {
	pb := h.store.Dialect.NewParamBuilder()
	_, _ = store.Exec(ctx, h.store.DB,
		"DELETE FROM _refresh_tokens WHERE id = "+pb.Add(tokenID),
		pb.Params()...)
}

func (h *AuthHandler) extractRoles(v any) []string {
	roles, err := h.store.Dialect.ScanArray(v)
	if err != nil {
		return []string{}
	}
	return roles
}

// isActive tolerates SQLite integer booleans.
func isActive(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return false
	}
}
