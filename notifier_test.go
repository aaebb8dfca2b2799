package sloth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slothworks/sloth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notifierConfig(endpoint string) *sloth.Config {
	return &sloth.Config{
		EmailAPI:          endpoint,
		EmailEventLogin:   sloth.EventLoginCode,
		EmailSubjectLogin: "Your login code",
		EmailTextLogin:    "Enter this code to log in: ",
	}
}

func TestEmailNotifierPostsTheForm(t *testing.T) {
	var got struct {
		header string
		form   map[string]string
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got.header = r.Header.Get("x-sloth-sesh")
		got.form = map[string]string{
			"to":      r.PostFormValue("to"),
			"subject": r.PostFormValue("subject"),
			"text":    r.PostFormValue("text"),
			"evt":     r.PostFormValue("evt"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := sloth.NewEmailNotifier(notifierConfig(srv.URL))

	err := notifier.Send(context.Background(), "a@b.co", sloth.EventLoginCode, "abc123XYZ")
	require.NoError(t, err)

	assert.Equal(t, "request-a-sesh", got.header)
	assert.Equal(t, "a@b.co", got.form["to"])
	assert.Equal(t, "Your login code", got.form["subject"])
	assert.Equal(t, "Enter this code to log in: abc123XYZ", got.form["text"])
	assert.Equal(t, sloth.EventLoginCode, got.form["evt"])
}

func TestEmailNotifierRejectsUnknownEvents(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	notifier := sloth.NewEmailNotifier(notifierConfig(srv.URL))

	err := notifier.Send(context.Background(), "a@b.co", "password-reset", "abc123XYZ")
	assert.ErrorIs(t, err, sloth.ErrUnknownEvent)
	assert.False(t, called, "unknown events must not reach the wire")
}

func TestEmailNotifierSurfacesAPIFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := sloth.NewEmailNotifier(notifierConfig(srv.URL))

	err := notifier.Send(context.Background(), "a@b.co", sloth.EventLoginCode, "abc123XYZ")
	assert.Error(t, err)
}

func TestEmailNotifierSurfacesTransportFailures(t *testing.T) {
	notifier := sloth.NewEmailNotifier(notifierConfig("http://127.0.0.1:1"))

	err := notifier.Send(context.Background(), "a@b.co", sloth.EventLoginCode, "abc123XYZ")
	assert.Error(t, err)
}
