package sloth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// EventLoginCode is the notification event for a freshly minted entry code.
const EventLoginCode = "login-code"

const (
	notifierHeader      = "x-sloth-sesh"
	notifierHeaderValue = "request-a-sesh"
)

// EmailNotifier delivers login codes by POSTing a form-encoded payload to an
// external email API. Requests carry a fixed marker header so the API can
// tell session traffic apart from other senders.
type EmailNotifier struct {
	endpoint string
	event    string
	subject  string
	text     string
	client   *http.Client
	logger   Logger
}

// NewEmailNotifier builds a notifier from config.
func NewEmailNotifier(cfg *Config) *EmailNotifier {
	return &EmailNotifier{
		endpoint: cfg.GetEmailAPI(),
		event:    cfg.GetEmailEventLogin(),
		subject:  cfg.GetEmailSubjectLogin(),
		text:     cfg.GetEmailTextLogin(),
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   defLogger{},
	}
}

// WithHTTPClient replaces the default client, mainly for tests.
func (n *EmailNotifier) WithHTTPClient(client *http.Client) *EmailNotifier {
	if client != nil {
		n.client = client
	}
	return n
}

// WithLogger replaces the default logger.
func (n *EmailNotifier) WithLogger(logger Logger) *EmailNotifier {
	if logger != nil {
		n.logger = logger
	}
	return n
}

// Send posts the code to the email API. An event the notifier has no
// template for is rejected before any network call.
func (n *EmailNotifier) Send(ctx context.Context, to, event, code string) error {
	if event != n.event {
		n.logger.Error("notifier asked to send unknown event %q", event)
		return ErrUnknownEvent
	}

	form := url.Values{}
	form.Set("to", to)
	form.Set("subject", n.subject)
	form.Set("text", n.text+code)
	form.Set("evt", n.event)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build notification request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(notifierHeader, notifierHeaderValue)

	resp, err := n.client.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "email api request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		n.logger.Error("email api returned %d: %s", resp.StatusCode, body)
		return goerrors.New(
			fmt.Sprintf("email api returned status %d", resp.StatusCode),
			goerrors.CategoryOperation,
		)
	}

	n.logger.Info("login code sent to %s", to)

	return nil
}
