package sloth

import (
	"fmt"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// Action slugs for the session API route.
const (
	ActionRequestCode  = "req"
	ActionStartSession = "start"
	ActionVerify       = "verify"
)

// RegisterWebRoutes mounts the page and API routes on the router.
func RegisterWebRoutes[T any](app router.Router[T], opts ...WebControllerOption) {

	controller := NewWebController(opts...)

	app.
		Get(controller.Routes.Home, controller.HomeShow).
		SetName("home.get")

	app.
		Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Post(controller.Routes.SessionAPI, controller.SessionAction).
		SetName("session-api.post")

	app.Post(controller.Routes.EmailAPI, controller.EmailSend).
		SetName("email-api.post")
}

type WebControllerRoutes struct {
	Home       string
	Login      string
	Logout     string
	SessionAPI string
	EmailAPI   string
}

type WebControllerViews struct {
	Home  string
	Login string
}

type WebController struct {
	Debug        bool
	Logger       Logger
	Sessions     *SessionManager
	Gate         *SessionGate
	Mailer       Mailer
	Routes       *WebControllerRoutes
	Views        *WebControllerViews
	ErrorHandler router.ErrorHandler
}

type WebControllerOption func(*WebController) *WebController

func NewWebController(opts ...WebControllerOption) *WebController {
	c := &WebController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &WebControllerRoutes{
			Home:       "/",
			Login:      "/login",
			Logout:     "/logout",
			SessionAPI: "/api/session/:action",
			EmailAPI:   "/api/email/send",
		},
		Views: &WebControllerViews{
			Home:  "home",
			Login: "login",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Sessions == nil {
		panic("Missing SessionManager in web controller...")
	}

	if c.Gate == nil {
		panic("Missing SessionGate in web controller...")
	}

	return c
}

// WithSessionManager sets the session manager.
func WithSessionManager(sessions *SessionManager) WebControllerOption {
	return func(c *WebController) *WebController {
		c.Sessions = sessions
		return c
	}
}

// WithSessionGate sets the gate used by the page routes.
func WithSessionGate(gate *SessionGate) WebControllerOption {
	return func(c *WebController) *WebController {
		c.Gate = gate
		return c
	}
}

// WithMailer sets the outbound mailer behind the email API.
func WithMailer(mailer Mailer) WebControllerOption {
	return func(c *WebController) *WebController {
		c.Mailer = mailer
		return c
	}
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) WebControllerOption {
	return func(c *WebController) *WebController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// HomeShow renders the landing page. The gate decides whether the visitor
// gets the authenticated variant, transparently refreshing when it can.
func (a *WebController) HomeShow(ctx router.Context) error {
	state := a.Gate.Establish(ctx)

	return ctx.Render(a.Views.Home, router.ViewContext{
		"is_author": state.Authenticated,
	})
}

// LoginShow renders the two step login form. Without an email query the form
// asks for an address; with one it asks for the code that was mailed there.
// Visitors who already hold a live session are sent home.
func (a *WebController) LoginShow(ctx router.Context) error {
	state := a.Gate.Establish(ctx)
	if state.Authenticated {
		return ctx.Redirect(a.Routes.Home, router.StatusSeeOther)
	}

	email := ctx.Query("email", "")

	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"form":   loginFormValues(email),
	})
}

func loginFormValues(email string) map[string]string {
	if email == "" {
		return map[string]string{
			"step":        "email",
			"email":       "",
			"input_name":  "email",
			"placeholder": "you@example.com",
			"submit":      "Send me a code",
		}
	}
	return map[string]string{
		"step":        "code",
		"email":       email,
		"input_name":  "code",
		"placeholder": "9 character code",
		"submit":      "Log in",
	}
}

// LoginFormPayload carries both steps of the login form.
type LoginFormPayload struct {
	Email string `form:"email" json:"email"`
	Code  string `form:"code" json:"code"`
}

// Validate runs validation rules
func (r LoginFormPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			validation.Match(emailPattern),
		),
	)
}

// LoginPost handles both steps of the form. An email-only submission mints
// and mails a code, then re-renders asking for it. An email plus code
// submission starts the session and sends the visitor home.
func (a *WebController) LoginPost(ctx router.Context) error {
	payload := new(LoginFormPayload)
	errors := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		errors["form"] = "Failed to parse form"
		a.Logger.Error("login parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"errors": errors,
			"form":   loginFormValues(""),
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("login validate payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Login, router.ViewContext{
			"errors": formatValidationErrors(err),
			"form":   loginFormValues(""),
		})
	}

	if payload.Code == "" {
		handler := NewRequestLoginCodeHandler(a.Sessions)
		if err := handler.Execute(ctx.Context(), RequestLoginCodeMessage{Email: payload.Email}); err != nil {
			a.Logger.Error("login code request error: %v", err)
			errors["request"] = "Could not send a login code"
			return flash.WithError(ctx, router.ViewContext{
				"error_message":  err.Error(),
				"system_message": "Could not send a login code",
			}).Render(a.Views.Login, router.ViewContext{
				"errors": errors,
				"form":   loginFormValues(""),
			})
		}

		return ctx.Redirect(
			fmt.Sprintf("%s?email=%s", a.Routes.Login, url.QueryEscape(payload.Email)),
			router.StatusSeeOther,
		)
	}

	if !ValidEntryCode(payload.Code) {
		errors["code"] = "That code does not look right"
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "That code does not look right",
		}).Render(a.Views.Login, router.ViewContext{
			"errors": errors,
			"form":   loginFormValues(payload.Email),
		})
	}

	session, err := a.Sessions.StartSession(ctx.Context(), payload.Email, payload.Code)
	if err != nil {
		if !IsAuthError(err) {
			return a.ErrorHandler(ctx, err)
		}
		errors["code"] = "Invalid or expired code"
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Invalid or expired code",
		}).Render(a.Views.Login, router.ViewContext{
			"errors": errors,
			"form":   loginFormValues(payload.Email),
		})
	}

	a.Gate.SetSessionCookies(ctx, session)

	return ctx.Redirect(a.Routes.Home, router.StatusSeeOther)
}

// LogOut clears the cookies and goes home. The stored secrets stay put; they
// die with the next login or by expiry.
func (a *WebController) LogOut(ctx router.Context) error {
	a.Gate.ClearSessionCookies(ctx)
	return ctx.Redirect(a.Routes.Home, router.StatusTemporaryRedirect)
}

// RequestCodePayload is the session API request body for the req action.
type RequestCodePayload struct {
	Email string `form:"email" json:"email"`
}

// Validate runs validation rules
func (r RequestCodePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			validation.Match(emailPattern),
		),
	)
}

// StartSessionPayload is the session API request body for the start action.
type StartSessionPayload struct {
	Email string `form:"email" json:"email"`
	Code  string `form:"code" json:"code"`
}

// Validate runs validation rules
func (r StartSessionPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			validation.Match(emailPattern),
		),
		validation.Field(
			&r.Code,
			validation.Required,
			validation.Match(entryCodePattern),
		),
	)
}

// SessionAction dispatches the session API by action slug: req mints and
// mails a code, start exchanges it for cookies, verify classifies the
// tokens presented in headers and refreshes when it can.
func (a *WebController) SessionAction(ctx router.Context) error {
	switch ctx.Param("action", "") {
	case ActionRequestCode:
		return a.sessionRequestCode(ctx)
	case ActionStartSession:
		return a.sessionStart(ctx)
	case ActionVerify:
		return a.sessionVerify(ctx)
	default:
		return ctx.Status(fiber.StatusBadRequest).SendString("bad")
	}
}

func (a *WebController) sessionRequestCode(ctx router.Context) error {
	payload := new(RequestCodePayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.Status(fiber.StatusBadRequest).SendString("bad")
	}

	if err := payload.Validate(); err != nil {
		return ctx.Status(fiber.StatusBadRequest).SendString("bad")
	}

	handler := NewRequestLoginCodeHandler(a.Sessions)
	if err := handler.Execute(ctx.Context(), RequestLoginCodeMessage{Email: payload.Email}); err != nil {
		a.Logger.Error("session api code request error: %v", err)
		if IsValidationError(err) {
			return ctx.Status(fiber.StatusBadRequest).SendString("bad")
		}
		return ctx.Status(fiber.StatusInternalServerError).SendString("error")
	}

	return ctx.Redirect(
		fmt.Sprintf("%s?email=%s", a.Routes.Login, url.QueryEscape(payload.Email)),
		fiber.StatusFound,
	)
}

func (a *WebController) sessionStart(ctx router.Context) error {
	payload := new(StartSessionPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.Status(fiber.StatusBadRequest).SendString("bad")
	}

	if err := payload.Validate(); err != nil {
		return ctx.Status(fiber.StatusBadRequest).SendString("bad")
	}

	session, err := a.Sessions.StartSession(ctx.Context(), payload.Email, payload.Code)
	if err != nil {
		if IsAuthError(err) {
			a.Gate.ClearSessionCookies(ctx)
			return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
		}
		a.Logger.Error("session api start error: %v", err)
		return ctx.Status(fiber.StatusInternalServerError).SendString("error")
	}

	a.Gate.SetSessionCookies(ctx, session)

	return ctx.Redirect(a.Routes.Home, fiber.StatusFound)
}

func (a *WebController) sessionVerify(ctx router.Context) error {
	sessionToken := ctx.Header(CookieSessionToken)
	if sessionToken == "" {
		a.Gate.ClearSessionCookies(ctx)
		return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
	}

	result, _ := a.Sessions.VerifySession(ctx.Context(), sessionToken, false)

	switch result {
	case TokenValid:
		return ctx.Status(fiber.StatusOK).SendString("ok")
	case TokenMalformed, TokenMismatch:
		a.Gate.ClearSessionCookies(ctx)
		return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
	case TokenExpired:
		refreshToken := ctx.Header(CookieRefreshToken)
		if refreshToken == "" {
			a.Gate.ClearSessionCookies(ctx)
			return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
		}

		session, err := a.Sessions.Refresh(ctx.Context(), refreshToken)
		if err != nil {
			if IsAuthError(err) {
				a.Gate.ClearSessionCookies(ctx)
				return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
			}
			a.Logger.Error("session api refresh error: %v", err)
			return ctx.Status(fiber.StatusInternalServerError).SendString("failed to get a new sesh")
		}

		a.Gate.SetSessionCookies(ctx, session)
		return ctx.Status(fiber.StatusOK).SendString("ok")
	default:
		return ctx.Status(fiber.StatusInternalServerError).SendString("error")
	}
}

// SendEmailPayload is the outbound email API request body.
type SendEmailPayload struct {
	To      string `form:"to" json:"to"`
	Subject string `form:"subject" json:"subject"`
	Text    string `form:"text" json:"text"`
	Event   string `form:"evt" json:"evt"`
}

// Validate runs validation rules
func (r SendEmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.To,
			validation.Required,
			validation.Match(emailPattern),
		),
	)
}

// EmailSend delivers a plain-text message through the configured mailer.
// This is the endpoint the notifier of a peer deployment posts to.
func (a *WebController) EmailSend(ctx router.Context) error {
	payload := new(SendEmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.Status(fiber.StatusBadRequest).SendString("bad")
	}

	if err := payload.Validate(); err != nil {
		return ctx.Status(fiber.StatusBadRequest).SendString("bad")
	}

	if a.Debug {
		fmt.Println("======= EMAIL SEND ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	if a.Mailer == nil {
		a.Logger.Error("email api called without a configured mailer")
		return ctx.Status(fiber.StatusInternalServerError).SendString("error")
	}

	if err := a.Mailer.Deliver(ctx.Context(), payload.To, payload.Subject, payload.Text); err != nil {
		a.Logger.Error("email delivery error: %v", err)
		return ctx.Status(fiber.StatusInternalServerError).SendString("error")
	}

	return ctx.Status(fiber.StatusOK).SendString("ok")
}

func formatValidationErrors(err error) map[string]string {
	out := map[string]string{}
	if errs, ok := err.(validation.Errors); ok {
		for field, fieldErr := range errs {
			out[field] = fieldErr.Error()
		}
		return out
	}
	out["validation"] = err.Error()
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
