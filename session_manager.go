package sloth

import (
	"context"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyResult classifies a session token check. Only TokenExpired is
// eligible for a silent refresh; every other non-valid result means the
// client must log in again.
type VerifyResult int

const (
	// TokenValid means signature, stored secret, and expiry all check out.
	TokenValid VerifyResult = iota
	// TokenMalformed means the token failed structural or signature checks,
	// or carries no usable claims.
	TokenMalformed
	// TokenMismatch means the token is well formed but its secret no longer
	// matches the account record: revoked or superseded.
	TokenMismatch
	// TokenExpired means everything matches except the expiry has passed.
	TokenExpired
	// TokenStoreError means the account lookup itself failed.
	TokenStoreError
)

func (r VerifyResult) String() string {
	switch r {
	case TokenValid:
		return "valid"
	case TokenMalformed:
		return "malformed"
	case TokenMismatch:
		return "mismatch"
	case TokenExpired:
		return "expired"
	case TokenStoreError:
		return "store_error"
	default:
		return "unknown"
	}
}

// Claim names used in the signed tokens.
const (
	ClaimCode         = "code"
	ClaimAccountID    = "id"
	ClaimSessionToken = "sessionToken"
	ClaimRefreshToken = "refreshToken"
)

// Default lifetimes for the three token kinds.
const (
	DefaultLoginCodeTTL = 15 * time.Minute
	DefaultSessionTTL   = time.Hour
	DefaultRefreshTTL   = 3 * time.Hour
)

var (
	// emailPattern is intentionally loose; the mail round trip is the real
	// proof of ownership.
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	// entryCodePattern matches the shape of codes produced by RandomCode.
	entryCodePattern = regexp.MustCompile(`^[a-zA-Z0-9]{9}`)
)

// ValidEmail reports whether the address has the minimal user@host.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidEntryCode reports whether the code has the shape of a login code.
func ValidEntryCode(code string) bool {
	return entryCodePattern.MatchString(code)
}

// SessionManager drives the email-code login flow: it hands out one-time
// entry codes, exchanges them for a session/refresh token pair, verifies
// presented tokens against the stored secrets, and rotates expired sessions
// through the refresh token.
type SessionManager struct {
	codec    *TokenCodec
	accounts Accounts
	notifier Notifier
	logger   Logger

	loginCodeTTL time.Duration
	sessionTTL   time.Duration
	refreshTTL   time.Duration
}

// NewSessionManager wires the manager with default lifetimes.
func NewSessionManager(codec *TokenCodec, accounts Accounts, notifier Notifier) *SessionManager {
	return &SessionManager{
		codec:        codec,
		accounts:     accounts,
		notifier:     notifier,
		logger:       defLogger{},
		loginCodeTTL: DefaultLoginCodeTTL,
		sessionTTL:   DefaultSessionTTL,
		refreshTTL:   DefaultRefreshTTL,
	}
}

// WithLogger replaces the default logger.
func (m *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithDurations overrides the token lifetimes. Zero values keep defaults.
func (m *SessionManager) WithDurations(loginCode, session, refresh time.Duration) *SessionManager {
	if loginCode > 0 {
		m.loginCodeTTL = loginCode
	}
	if session > 0 {
		m.sessionTTL = session
	}
	if refresh > 0 {
		m.refreshTTL = refresh
	}
	return m
}

// RequestCode mints a fresh entry code for the address, stores its signed
// form on the account (creating the account on first contact), and asks the
// notifier to deliver the raw code. A repeated request simply supersedes the
// previous code.
func (m *SessionManager) RequestCode(ctx context.Context, email string) error {
	if !ValidEmail(email) {
		return ErrInvalidEmail
	}

	code := RandomCode(EntryCodeLength)

	loginToken, err := m.codec.Sign(map[string]any{ClaimCode: code}, m.loginCodeTTL)
	if err != nil {
		return err
	}

	if err := m.accounts.EnsureMetaInitialized(ctx); err != nil {
		return err
	}

	account, err := m.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if account == nil {
		account = &Account{
			Email:      email,
			CreatedAt:  time.Now().UnixMilli(),
			LoginToken: loginToken,
		}
	} else {
		account.LoginToken = loginToken
	}

	if err := m.accounts.CreateOrUpdate(ctx, account); err != nil {
		return err
	}

	m.logger.Debug("login code issued for %s", email)

	return m.notifier.Send(ctx, email, EventLoginCode, code)
}

// StartSession exchanges an entry code for a signed session/refresh pair.
// The code is single use: a successful exchange clears it.
func (m *SessionManager) StartSession(ctx context.Context, email, code string) (*Session, error) {
	account, err := m.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return m.start(ctx, account, code)
}

// StartSessionByID mints a fresh pair for an already-authenticated account,
// bypassing the entry code check. Used by the refresh flow.
func (m *SessionManager) StartSessionByID(ctx context.Context, id int64) (*Session, error) {
	account, err := m.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.start(ctx, account, "")
}

func (m *SessionManager) start(ctx context.Context, account *Account, code string) (*Session, error) {
	if account == nil {
		return nil, ErrAccountNotFound
	}

	consumedCode := false
	if code != "" {
		if account.LoginToken == "" {
			return nil, ErrInvalidEntryCode
		}

		claims, err := m.codec.Verify(account.LoginToken)
		if err != nil {
			m.logger.Debug("stored login token failed verification: %v", err)
			return nil, ErrInvalidEntryCode
		}

		stored, _ := claims[ClaimCode].(string)
		if stored == "" || stored != code {
			return nil, ErrInvalidEntryCode
		}

		exp, ok := expiryFromClaims(claims)
		if !ok || !time.Now().Before(exp) {
			return nil, ErrInvalidEntryCode
		}

		consumedCode = true
	}

	account.SessionToken = RandomSecret(SessionSecretLength)
	account.RefreshToken = RandomSecret(SessionSecretLength)
	if consumedCode {
		account.LoginToken = ""
	}

	if err := m.accounts.CreateOrUpdate(ctx, account); err != nil {
		return nil, err
	}

	sessionToken, err := m.codec.Sign(map[string]any{
		ClaimSessionToken: account.SessionToken,
		ClaimAccountID:    account.ID,
	}, m.sessionTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := m.codec.Sign(map[string]any{
		ClaimRefreshToken: account.RefreshToken,
		ClaimAccountID:    account.ID,
	}, m.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &Session{SessionToken: sessionToken, RefreshToken: refreshToken}, nil
}

// VerifySession classifies a presented token. Pass isRefresh true to check
// the refresh secret instead of the session secret. On TokenValid the parsed
// claims are returned so callers can read the account id.
func (m *SessionManager) VerifySession(ctx context.Context, tokenString string, isRefresh bool) (VerifyResult, jwt.MapClaims) {
	claims, err := m.codec.Verify(tokenString)
	if err != nil {
		return TokenMalformed, nil
	}

	id, ok := accountIDFromClaims(claims)
	if !ok {
		return TokenMalformed, nil
	}

	claimName := ClaimSessionToken
	if isRefresh {
		claimName = ClaimRefreshToken
	}
	secret, _ := claims[claimName].(string)
	if secret == "" {
		return TokenMalformed, nil
	}

	account, err := m.accounts.GetByID(ctx, id)
	if err != nil {
		m.logger.Error("account lookup failed during verification: %v", err)
		return TokenStoreError, nil
	}
	if account == nil {
		return TokenMismatch, nil
	}

	stored := account.SessionToken
	if isRefresh {
		stored = account.RefreshToken
	}
	if stored == "" || stored != secret {
		return TokenMismatch, nil
	}

	exp, ok := expiryFromClaims(claims)
	if !ok || !time.Now().Before(exp) {
		return TokenExpired, nil
	}

	return TokenValid, claims
}

// Refresh exchanges a valid refresh token for a brand new pair, rotating
// both stored secrets so older tokens stop matching.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	result, claims := m.VerifySession(ctx, refreshToken, true)
	if result != TokenValid {
		m.logger.Debug("refresh rejected: token %s", result)
		return nil, ErrInvalidRefreshToken
	}

	id, ok := accountIDFromClaims(claims)
	if !ok {
		return nil, ErrInvalidRefreshToken
	}

	return m.StartSessionByID(ctx, id)
}

func accountIDFromClaims(claims jwt.MapClaims) (int64, bool) {
	switch v := claims[ClaimAccountID].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func expiryFromClaims(claims jwt.MapClaims) (time.Time, bool) {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
