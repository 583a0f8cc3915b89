package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	Log    *logger.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

// ----- DTOs -----

type credentialsReq struct {
	Username string `json:"username" validate:"required,min=3,max=64,alphanum"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func authError(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// Register creates a user and returns a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return authError(c, http.StatusBadRequest, "invalid body")
	}
	req.Username = repository.NormalizeUsername(req.Username)
	if err := c.Validate(&req); err != nil {
		return authError(c, http.StatusBadRequest, validationMessage(err))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return authError(c, http.StatusConflict, "username already exists")
		}
		h.Log.FromEcho(c).Error("create user failed", "error", err.Error())
		return authError(c, http.StatusInternalServerError, "create user failed")
	}
	return h.issue(ctx, c, http.StatusCreated, uid, req.Username)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return authError(c, http.StatusBadRequest, "invalid body")
	}
	req.Username = repository.NormalizeUsername(req.Username)
	if req.Username == "" || req.Password == "" {
		return authError(c, http.StatusBadRequest, "username/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return authError(c, http.StatusUnauthorized, "invalid credentials")
		}
		h.Log.FromEcho(c).Error("load user failed", "error", err.Error())
		return authError(c, http.StatusInternalServerError, "query failed")
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return authError(c, http.StatusUnauthorized, "invalid credentials")
	}
	return h.issue(ctx, c, http.StatusOK, u.ID, u.Username)
}

// Refresh validates a refresh token by hash, revokes it and issues a
// new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return authError(c, http.StatusBadRequest, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return authError(c, http.StatusUnauthorized, "invalid refresh")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil || !u.IsActive {
		return authError(c, http.StatusUnauthorized, "invalid refresh")
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		h.Log.FromEcho(c).Error("revoke refresh failed", "error", err.Error())
		return authError(c, http.StatusInternalServerError, "revoke refresh failed")
	}
	return h.issue(ctx, c, http.StatusOK, u.ID, u.Username)
}

// Logout revokes the given refresh token.  Unknown tokens are accepted
// so that logout is idempotent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return authError(c, http.StatusBadRequest, "refresh_token required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))); err != nil {
		h.Log.FromEcho(c).Error("revoke refresh failed", "error", err.Error())
		return authError(c, http.StatusInternalServerError, "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return authError(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return authError(c, http.StatusUnauthorized, "unauthorized")
		}
		return authError(c, http.StatusInternalServerError, "load user failed")
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Username: u.Username})
}

func (h *AuthHandler) issue(ctx context.Context, c echo.Context, status int, uid uint64, username string) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, username, h.Cfg.AccessTTLMin)
	if err != nil {
		return authError(c, http.StatusInternalServerError, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authError(c, http.StatusInternalServerError, "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		h.Log.FromEcho(c).Error("store refresh failed", "error", err.Error())
		return authError(c, http.StatusInternalServerError, "save refresh failed")
	}
	return c.JSON(status, authResp{
		User:    userPart{ID: uid, Username: username},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}
