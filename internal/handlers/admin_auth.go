package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"
)

const (
	adminCookieName  = "admin_session"
	clientCookieName = "client_session"
	parentCookieName = "parent_session"

	roleAdmin  = "admin"
	roleClient = "client"
	roleParent = "parent"
)

// Sessions issues and checks the HS256 tokens carried in the session
// cookies (or an Authorization: Bearer header).
type Sessions struct {
	secret        []byte
	ttl           time.Duration
	adminPassword string
	secure        bool
	now           func() time.Time
}

// NewSessions: an empty adminPassword disables admin login. secure marks
// cookies Secure.
func NewSessions(secret []byte, ttl time.Duration, adminPassword string, secure bool) *Sessions {
	return &Sessions{
		secret:        secret,
		ttl:           ttl,
		adminPassword: adminPassword,
		secure:        secure,
		now:           time.Now,
	}
}

func (s *Sessions) Issue(role, subject string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return tok, exp, err
}

// Parse validates tokenString and returns its subject if it was issued
// for role.
func (s *Sessions) Parse(tokenString, role string) (string, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", errors.New("invalid token")
	}
	if r, _ := claims["role"].(string); r != role {
		return "", errors.New("token issued for another role")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("token does not contain a valid 'sub' claim")
	}
	return sub, nil
}

func (s *Sessions) setCookie(w http.ResponseWriter, name, value string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

func (s *Sessions) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func requestToken(r *http.Request, cookie string) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(cookie); err == nil {
		return c.Value
	}
	return ""
}

type ctxKey int

const (
	clientIDKey ctxKey = iota
	parentIDKey
)

func clientIDFrom(ctx context.Context) uint {
	id, _ := ctx.Value(clientIDKey).(uint)
	return id
}

func parentIDFrom(ctx context.Context) uint {
	id, _ := ctx.Value(parentIDKey).(uint)
	return id
}

// RequireAdmin is middleware: blocks access unless logged in as admin.
func (s *Sessions) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.Parse(requestToken(r, adminCookieName), roleAdmin); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireClient is middleware: blocks access unless logged in as a client
// and puts the client ID on the request context.
func (s *Sessions) RequireClient(next http.Handler) http.Handler {
	return s.requireAccount(roleClient, clientCookieName, clientIDKey, next)
}

// RequireParent is RequireClient for parent accounts.
func (s *Sessions) RequireParent(next http.Handler) http.Handler {
	return s.requireAccount(roleParent, parentCookieName, parentIDKey, next)
}

func (s *Sessions) requireAccount(role, cookie string, key ctxKey, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := s.Parse(requestToken(r, cookie), role)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		id, err := strconv.ParseUint(sub, 10, 64)
		if err != nil || id == 0 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), key, uint(id))))
	})
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// POST /admin/login
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	pw := r.FormValue("password")
	want := h.Sessions.adminPassword
	if want == "" || subtle.ConstantTimeCompare([]byte(pw), []byte(want)) != 1 {
		h.Log.Warn("admin login failed", zap.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid password.")
		return
	}
	tok, exp, err := h.Sessions.Issue(roleAdmin, "admin")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Sessions.setCookie(w, adminCookieName, tok, exp)
	writeJSON(w, http.StatusOK, sessionResponse{Token: tok, ExpiresAt: exp})
}

// POST /admin/logout
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.clearCookie(w, adminCookieName)
	w.WriteHeader(http.StatusNoContent)
}

// POST /client/login
func (h *Handler) ClientLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	c, err := h.Shoots.AuthenticateClient(r.Context(), r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tok, exp, err := h.Sessions.Issue(roleClient, strconv.FormatUint(uint64(c.ID), 10))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Sessions.setCookie(w, clientCookieName, tok, exp)
	writeJSON(w, http.StatusOK, sessionResponse{Token: tok, ExpiresAt: exp})
}

// POST /client/logout
func (h *Handler) ClientLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.clearCookie(w, clientCookieName)
	w.WriteHeader(http.StatusNoContent)
}

// POST /parent/login
func (h *Handler) ParentLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	u, err := h.Intake.AuthenticateParent(r.Context(), r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tok, exp, err := h.Sessions.Issue(roleParent, strconv.FormatUint(uint64(u.ID), 10))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Sessions.setCookie(w, parentCookieName, tok, exp)
	writeJSON(w, http.StatusOK, sessionResponse{Token: tok, ExpiresAt: exp})
}

// POST /parent/logout
func (h *Handler) ParentLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.clearCookie(w, parentCookieName)
	w.WriteHeader(http.StatusNoContent)
}
