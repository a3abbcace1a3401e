package handler

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-tracker/internal/middleware"
	"github.com/iliyamo/movie-tracker/internal/model"
	"github.com/iliyamo/movie-tracker/internal/repository"
	"github.com/iliyamo/movie-tracker/internal/utils"
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// TokenStore is implemented by repository.TokenRepo.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
}

// SessionRevoker is implemented by repository.SessionRepo.
type SessionRevoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
}

// AuthConfig carries the settings the auth endpoints need.
type AuthConfig struct {
	JWTSecret    string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	BcryptCost   int
	CookieSecure bool
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      AuthConfig
	Users    UserStore
	Tokens   TokenStore
	Sessions SessionRevoker
}

func NewAuthHandler(cfg AuthConfig, u UserStore, t TokenStore, s SessionRevoker) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Sessions: s}
}

// Column sizes of the users table.
const (
	maxUsernameLength = 64
	maxEmailLength    = 255
)

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    *model.User `json:"user"`
	Access  tokenPart   `json:"access"`
}

// Register: create user and start a session immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Username, email and password are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid email address")
	}
	if utf8.RuneCountInString(req.Username) > maxUsernameLength || len(req.Email) > maxEmailLength {
		return fail(c, http.StatusBadRequest, "Username or email is too long")
	}
	if len(req.Password) < utils.MinPasswordLength {
		return fail(c, http.StatusBadRequest, "Password must be at least 8 characters")
	}
	if len(req.Password) > utils.MaxPasswordLength {
		return fail(c, http.StatusBadRequest, "Password must be at most 72 bytes")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return serverError(c, "hash password", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	u := &model.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := h.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "Email already registered")
		}
		return serverError(c, "create user", err)
	}
	return h.startSession(ctx, c, http.StatusCreated, "User registered successfully", u)
}

// Login: verify credentials and start a new session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	if len(req.Password) > utils.MaxPasswordLength {
		// No stored password can be this long.
		utils.BurnPasswordCheck(req.Password, h.Cfg.BcryptCost)
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		utils.BurnPasswordCheck(req.Password, h.Cfg.BcryptCost)
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return serverError(c, "load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}
	return h.startSession(ctx, c, http.StatusOK, "Login successful", u)
}

// Refresh: validate the refresh token by hash, revoke it and issue a new pair.
// Revoking is the claim: of two requests presenting the same token only the
// one whose revoke succeeds gets a new session.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := refreshToken(c, true)
	if raw == "" {
		return fail(c, http.StatusUnauthorized, "Refresh token required")
	}
	hash := utils.HashRefreshRaw(raw)

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrInvalidRefresh) {
		h.clearCookies(c)
		return fail(c, http.StatusUnauthorized, "Invalid refresh token")
	}
	if err != nil {
		return serverError(c, "validate refresh", err)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrInvalidRefresh) {
			h.clearCookies(c)
			return fail(c, http.StatusUnauthorized, "Invalid refresh token")
		}
		return serverError(c, "revoke refresh", err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		h.clearCookies(c)
		return fail(c, http.StatusUnauthorized, "Invalid refresh token")
	}
	if err != nil {
		return serverError(c, "load user", err)
	}
	return h.startSession(ctx, c, http.StatusOK, "Session refreshed", u)
}

// Logout works with or without a valid session: it revokes whatever
// credentials the request carries and always clears the cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	if raw := middleware.AccessTokenFrom(c); raw != "" && h.Sessions != nil {
		if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw); err == nil {
			if err := h.Sessions.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
				// The access token dies on its own at expiry.
				log.WithError(err).Warn("logout: revoke access token failed")
			}
		}
	}
	if raw := refreshToken(c, false); raw != "" {
		err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw))
		if err != nil && !errors.Is(err, repository.ErrInvalidRefresh) {
			return serverError(c, "revoke refresh", err)
		}
	}
	h.clearCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Logged out successfully"})
}

// GetCurrentUser returns the authenticated user's profile.
func (h *AuthHandler) GetCurrentUser(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return storeError(c, "get user", "User not found", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": u})
}

// startSession issues an access/refresh pair for u, stores the refresh hash,
// sets both cookies and writes the response.
func (h *AuthHandler) startSession(ctx context.Context, c echo.Context, status int, msg string, u *model.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, h.Cfg.AccessTTL)
	if err != nil {
		return serverError(c, "issue access", err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTL)
	if err != nil {
		return serverError(c, "issue refresh", err)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return serverError(c, "save refresh", err)
	}

	c.SetCookie(h.cookie(middleware.AccessCookie, access.Token, access.Exp))
	c.SetCookie(h.cookie(middleware.RefreshCookie, refresh.Raw, refresh.Exp))
	return c.JSON(status, authResp{
		Success: true,
		Message: msg,
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

func (h *AuthHandler) cookie(name, value string, exp time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.Cfg.CookieSecure {
		// The browser front end may be served from another site.
		ck.SameSite = http.SameSiteNoneMode
	}
	if value == "" {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	}
	return ck
}

func (h *AuthHandler) clearCookies(c echo.Context) {
	c.SetCookie(h.cookie(middleware.AccessCookie, "", time.Time{}))
	c.SetCookie(h.cookie(middleware.RefreshCookie, "", time.Time{}))
}

// refreshToken reads the refresh token from its cookie.  When fromBody is
// set, non-browser clients may send it in a JSON body instead.
func refreshToken(c echo.Context, fromBody bool) string {
	if ck, err := c.Cookie(middleware.RefreshCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	if !fromBody {
		return ""
	}
	var req refreshReq
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		log.WithError(err).Debug("refresh: unreadable body")
		return ""
	}
	return strings.TrimSpace(req.RefreshToken)
}
