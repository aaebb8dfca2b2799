package sloth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenCodec signs and verifies compact, expiring claim tokens using a
// single process-wide HS256 secret. Verification checks signing method,
// signature, and structure only; it deliberately skips claim validation so
// that callers can tell an expired token apart from a malformed one (the
// session manager owns the expiry check and its richer result codes).
type TokenCodec struct {
	signingKey []byte
	logger     Logger
}

// NewTokenCodec creates a codec for the given secret.
func NewTokenCodec(signingKey []byte) *TokenCodec {
	return &TokenCodec{
		signingKey: signingKey,
		logger:     defLogger{},
	}
}

// WithLogger replaces the default logger.
func (tc *TokenCodec) WithLogger(logger Logger) *TokenCodec {
	if logger != nil {
		tc.logger = logger
	}
	return tc
}

// Sign wraps the given claims in a signed token carrying an issued-at time
// and an absolute expiry computed from ttl, plus a token id.
func (tc *TokenCodec) Sign(claims map[string]any, ttl time.Duration) (string, error) {
	now := time.Now()

	full := jwt.MapClaims{}
	for name, value := range claims {
		full[name] = value
	}
	full["iat"] = jwt.NewNumericDate(now)
	full["exp"] = jwt.NewNumericDate(now.Add(ttl))
	if _, ok := full["jti"]; !ok {
		full["jti"] = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, full)

	signed, err := token.SignedString(tc.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Verify parses the token and checks its signature. It fails closed: any
// malformed input, wrong signing method, or bad signature yields an error
// and nil claims. Expiry is NOT enforced here.
func (tc *TokenCodec) Verify(tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	token, err := parser.ParseWithClaims(tokenString, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			tc.logger.Error("token codec encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tc.signingKey, nil
	})
	if err != nil {
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		tc.logger.Error("token codec could not decode claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
