package sloth

import (
	"time"

	"github.com/goliatone/go-router"
)

// Cookie and header names the client contract fixes. The same names are
// used for cookies and for headers on the API routes.
const (
	CookieSessionToken = "x-sloth-session-token"
	CookieRefreshToken = "x-sloth-refresh-token"
)

// Cookie lifetimes in seconds; deliberately longer than the token TTLs so
// the browser keeps presenting expired tokens for the refresh path.
const (
	sessionCookieMaxAge = 3600
	refreshCookieMaxAge = 10800
)

// AuthState is the outcome of running the session gate on a request. When a
// silent refresh happened the fresh pair is exposed so handlers can pass the
// new tokens along.
type AuthState struct {
	Authenticated bool
	Refreshed     *Session
}

// SessionGate checks the session cookie on page requests and silently
// refreshes expired sessions when a usable refresh token is present. Any
// outcome other than valid-or-refreshed clears the cookies.
type SessionGate struct {
	sessions      *SessionManager
	cookieDomain  string
	sessionMaxAge int
	refreshMaxAge int
	Logger        Logger
}

// NewSessionGate wires a gate for the given manager.
func NewSessionGate(sessions *SessionManager, cfg *Config) *SessionGate {
	return &SessionGate{
		sessions:      sessions,
		cookieDomain:  cfg.GetCookieDomain(),
		sessionMaxAge: sessionCookieMaxAge,
		refreshMaxAge: refreshCookieMaxAge,
		Logger:        defLogger{},
	}
}

// Establish classifies the request's session. An absent cookie short
// circuits to anonymous. A valid token authenticates. An expired token with
// a usable refresh token (cookie first, header as fallback) is exchanged for
// a fresh pair and the cookies are replaced. Everything else clears the
// cookies and falls back to anonymous.
func (g *SessionGate) Establish(c router.Context) AuthState {
	sessionToken := c.Cookies(CookieSessionToken)
	if sessionToken == "" {
		g.ClearSessionCookies(c)
		return AuthState{}
	}

	result, _ := g.sessions.VerifySession(c.Context(), sessionToken, false)

	switch result {
	case TokenValid:
		return AuthState{Authenticated: true}
	case TokenExpired:
		refreshToken := c.Cookies(CookieRefreshToken, c.Header(CookieRefreshToken))
		if refreshToken == "" {
			g.ClearSessionCookies(c)
			return AuthState{}
		}

		session, err := g.sessions.Refresh(c.Context(), refreshToken)
		if err != nil {
			g.Logger.Debug("silent refresh failed: %v", err)
			g.ClearSessionCookies(c)
			return AuthState{}
		}

		g.SetSessionCookies(c, session)
		return AuthState{Authenticated: true, Refreshed: session}
	default:
		g.Logger.Debug("session gate rejecting token: %s", result)
		g.ClearSessionCookies(c)
		return AuthState{}
	}
}

// SetSessionCookies writes the pair with their fixed lifetimes.
func (g *SessionGate) SetSessionCookies(c router.Context, session *Session) {
	g.setCookie(c, CookieSessionToken, session.SessionToken, g.sessionMaxAge)
	g.setCookie(c, CookieRefreshToken, session.RefreshToken, g.refreshMaxAge)
}

// ClearSessionCookies expires both cookies.
func (g *SessionGate) ClearSessionCookies(c router.Context) {
	g.cookieDel(c, CookieSessionToken)
	g.cookieDel(c, CookieRefreshToken)
}

func (g *SessionGate) setCookie(c router.Context, name, val string, maxAge int) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Path:     "/",
		Domain:   g.cookieDomain,
		Expires:  time.Now().Add(time.Duration(maxAge) * time.Second),
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *SessionGate) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   g.cookieDomain,
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}
