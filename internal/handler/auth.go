package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/auth"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/service"
)

const oauthStateCookie = "oauth_state"

// GitHubLogin is the part of the OAuth provider the handler needs.
// *auth.GitHubProvider satisfies it.
type GitHubLogin interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler serves sign-up, sign-in, sign-out, the current-user lookup and
// the optional GitHub login flow. All of them end in the same opaque session
// cookie.
type AuthHandler struct {
	users   *service.AuthService
	cookies auth.CookiePolicy
	github  GitHubLogin
	states  *auth.StateSigner
	// appURL is where the browser lands after a GitHub login.
	appURL string
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler with GitHub login disabled.
func NewAuthHandler(users *service.AuthService, cookies auth.CookiePolicy, appURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:   users,
		cookies: cookies,
		appURL:  strings.TrimRight(appURL, "/"),
		logger:  logger,
	}
}

// WithGitHub enables the GitHub login routes.
func (h *AuthHandler) WithGitHub(github GitHubLogin, states *auth.StateSigner) *AuthHandler {
	h.github = github
	h.states = states
	return h
}

// GitHubEnabled reports whether the GitHub routes should be mounted.
func (h *AuthHandler) GitHubEnabled() bool {
	return h.github != nil && h.states != nil
}

type signUpRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	User *model.PublicUser `json:"user"`
}

// HandleSignUp creates an account. It does not sign the user in.
//
// HTTP: POST /auth/sign-up
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	public := user.Public()
	writeJSON(w, http.StatusOK, userResponse{User: &public})
}

// HandleSignIn checks credentials and sets the session cookie.
//
// HTTP: POST /auth/sign-in
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, raw, err := h.users.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.Set(w, raw)
	public := user.Public()
	writeJSON(w, http.StatusOK, userResponse{User: &public})
}

// HandleSignOut deletes the session behind the cookie, if any, and clears
// the cookie. It always succeeds from the client's point of view.
//
// HTTP: POST /auth/sign-out
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if raw := auth.SessionToken(r); raw != "" {
		if err := h.users.SignOut(r.Context(), raw); err != nil {
			h.logger.Error("sign-out: revoking session failed", slog.String("error", err.Error()))
		}
	}

	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleMe returns the signed-in user, or 401 with {"user": null}.
//
// HTTP: GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	email, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, userResponse{})
		return
	}

	user, err := h.users.Me(r.Context(), email)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, userResponse{})
			return
		}
		writeError(w, err)
		return
	}

	public := user.Public()
	writeJSON(w, http.StatusOK, userResponse{User: &public})
}

// HandleGitHubLogin redirects the browser to GitHub's consent page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random nonce goes into a short-lived HttpOnly cookie, and the same nonce,
// signed and time-limited, goes to GitHub as the state parameter. The
// callback only proceeds when the signature verifies and both nonces match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	nonce := xid.New().String()
	state, err := h.states.Sign(nonce)
	if err != nil {
		writeError(w, apperror.Internal("could not start GitHub login", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    nonce,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the GitHub login.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Verify the signed state and match its nonce against the cookie
//  2. Exchange the code for the GitHub profile and verified email
//  3. Upsert the account by email and start a session
//  4. Set the session cookie and redirect to the app
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: CSRF state ---
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	nonce, err := h.states.Verify(r.URL.Query().Get("state"))
	if err != nil || nonce != stateCookie.Value {
		h.logger.Warn("auth callback: state rejected")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.appURL+"/sign-in?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: code exchange ---
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrNoVerifiedEmail) {
			writeError(w, apperror.Unauthorized("GitHub account has no verified email"))
			return
		}
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Internal("authentication failed", err))
		return
	}

	// --- Step 3: account and session ---
	_, raw, err := h.users.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	// --- Step 4: cookie and redirect ---
	h.cookies.Set(w, raw)
	http.Redirect(w, r, h.appURL+"/", http.StatusSeeOther)
}
