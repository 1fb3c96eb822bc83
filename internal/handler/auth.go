package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/auth"
	"github.com/sakif/timekeeper/internal/service"
)

const (
	oauthStateCookie = "oauth_state"
	// AuthTokenHeader carries the new session token on sign-in responses, for
	// clients that can't read the JSON body before redirecting.
	AuthTokenHeader = "Set-Auth-Token"
)

// AuthHandler serves the /api/auth endpoints that mint and revoke sessions.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignUpEmail / HandleSignInEmail → email + password
//   - HandleGoogleLogin / HandleGoogleCallback → OAuth2 code flow
//   - HandleSignOut → delete the calling session
//   - HandleGetSession → describe the calling session
//
// google may be nil, in which case the Google endpoints answer NOT_FOUND.
type AuthHandler struct {
	service *service.AuthService
	google  *auth.GoogleProvider
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(svc *service.AuthService, google *auth.GoogleProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		google:  google,
		logger:  logger,
	}
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignUpEmail creates an account and signs it in.
//
// HTTP: POST /api/auth/sign-up/email {name, email, password}
func (h *AuthHandler) HandleSignUpEmail(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.SignUpEmail(r.Context(), req.Name, req.Email, req.Password, clientInfo(r))
	if err != nil {
		h.writeAuthError(w, "sign-up", err)
		return
	}
	writeAuthResult(w, res)
}

// HandleSignInEmail opens a session for valid credentials.
//
// HTTP: POST /api/auth/sign-in/email {email, password}
func (h *AuthHandler) HandleSignInEmail(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.SignInEmail(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		h.writeAuthError(w, "sign-in", err)
		return
	}
	writeAuthResult(w, res)
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /api/auth/sign-in/google
//
// CSRF PROTECTION VIA STATE:
// A random state value goes both into a short-lived HttpOnly cookie and into
// the authorization URL. The callback only proceeds if the two match, which
// proves the flow was started by this browser.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeErrorCode(w, http.StatusNotFound, CodeNotFound, "Google sign-in is not configured", "")
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow and returns a session.
//
// HTTP: GET /api/auth/callback/google?code=xxx&state=yyy
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeErrorCode(w, http.StatusNotFound, CodeNotFound, "Google sign-in is not configured", "")
		return
	}

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		writeError(w, apperror.Unauthorized("Google sign-in was cancelled"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	// --- Step 2: Exchange code for the Google profile ---
	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Google exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Unauthorized("Google sign-in failed"))
		return
	}

	// --- Step 3: Link or create the account, open a session ---
	res, err := h.service.SignInGoogle(r.Context(), profile, clientInfo(r))
	if err != nil {
		h.writeAuthError(w, "google callback", err)
		return
	}
	writeAuthResult(w, res)
}

// HandleSignOut deletes the session the request authenticated with.
//
// HTTP: POST /api/auth/sign-out
// Auth: Required (Gate.Require puts the session in the context)
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())
	if err := h.service.SignOut(r.Context(), session); err != nil {
		h.writeAuthError(w, "sign-out", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleGetSession returns the calling session and its user.
//
// HTTP: GET /api/auth/get-session
// Auth: Required
func (h *AuthHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())
	view, err := h.service.GetSession(r.Context(), session)
	if err != nil {
		h.writeAuthError(w, "get-session", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, service.ErrIssuanceDisabled) {
		writeErrorCode(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "Sign-in is disabled on this server", "")
		return
	}
	if !errors.As(err, new(*apperror.AppError)) {
		h.logger.Error("auth request failed", slog.String("op", op), slog.String("error", err.Error()))
	}
	writeError(w, err)
}

func writeAuthResult(w http.ResponseWriter, res *service.AuthResult) {
	w.Header().Set(AuthTokenHeader, res.Token)
	writeJSON(w, http.StatusOK, res)
}

// decodeBody reads a JSON body into dst, writing BAD_REQUEST on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInputBytes)).Decode(dst); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return false
	}
	return true
}

// clientInfo records where a session was opened from. RemoteAddr has
// already been rewritten by chi's RealIP middleware when behind a proxy.
func clientInfo(r *http.Request) service.ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return service.ClientInfo{IPAddress: ip, UserAgent: r.UserAgent()}
}
