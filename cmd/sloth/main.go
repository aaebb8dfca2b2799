package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/slothworks/sloth"
	"github.com/slothworks/sloth/kv"
)

type App struct {
	config   *sloth.Config
	bunDB    *bun.DB
	store    kv.Store
	sessions *sloth.SessionManager
	gate     *sloth.SessionGate
	mailer   sloth.Mailer
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Debug),
		glog.WithName("sloth"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := sloth.LoadConfig()
	if err != nil {
		lgr.Error("unable to load configuration", "error", err)
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	WithSessions(app)

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(cfg.GetServerAddress())

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.config.GetStoreDSN())
	if err != nil {
		return err
	}

	app.bunDB = bun.NewDB(db, sqlitedialect.New())

	store := kv.NewBun(app.bunDB)
	if err := store.Init(ctx); err != nil {
		return err
	}

	app.store = store

	return nil
}

func WithSessions(app *App) {
	accounts := sloth.NewAccounts(app.store)

	codec := sloth.NewTokenCodec([]byte(app.config.GetSigningSecret())).
		WithLogger(app.GetLogger("codec"))

	notifier := sloth.NewEmailNotifier(app.config).
		WithLogger(app.GetLogger("notifier"))

	app.sessions = sloth.NewSessionManager(codec, accounts, notifier).
		WithLogger(app.GetLogger("sessions")).
		WithDurations(
			app.config.GetLoginCodeTTL(),
			app.config.GetSessionTTL(),
			app.config.GetRefreshTTL(),
		)

	app.gate = sloth.NewSessionGate(app.sessions, app.config)
	app.gate.Logger = app.GetLogger("gate")

	app.mailer = sloth.NewSMTPMailer(app.config).
		WithLogger(app.GetLogger("mailer"))
}

func WithHTTPServer(ctx context.Context, app *App) error {
	engine := django.New("./views", ".html")

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	srv.Router().Use(mflash.New(mflash.ConfigDefault))

	sloth.RegisterWebRoutes(srv.Router().Group("/"),
		func(c *sloth.WebController) *sloth.WebController {
			c.Sessions = app.sessions
			c.Gate = app.gate
			c.Mailer = app.mailer
			c.Logger = app.GetLogger("web")
			return c
		})

	app.srv = srv

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
