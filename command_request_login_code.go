package sloth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RequestLoginCodeMessage struct {
	Email string `json:"email"`
}

func (e RequestLoginCodeMessage) Type() string { return "session.request_code" }

// RequestLoginCodeHandler wraps SessionManager.RequestCode as a command so
// it can be dispatched from route handlers or a message bus.
type RequestLoginCodeHandler struct {
	sessions *SessionManager
}

func NewRequestLoginCodeHandler(sessions *SessionManager) *RequestLoginCodeHandler {
	return &RequestLoginCodeHandler{sessions: sessions}
}

func (h *RequestLoginCodeHandler) Execute(ctx context.Context, event RequestLoginCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login code request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestLoginCodeHandler) execute(ctx context.Context, event RequestLoginCodeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.TrimSpace(event.Email)

	if err := h.sessions.RequestCode(ctx, email); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "login code request failed")
	}

	return nil
}
