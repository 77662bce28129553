package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-oidc-gate/authflow"
	"github.com/jrsteele09/go-oidc-gate/internal/config"
	"github.com/jrsteele09/go-oidc-gate/internal/db"
	"github.com/jrsteele09/go-oidc-gate/internal/logging"
	"github.com/jrsteele09/go-oidc-gate/lifecycle"
	"github.com/jrsteele09/go-oidc-gate/oidcclient"
	"github.com/jrsteele09/go-oidc-gate/server"
	"github.com/jrsteele09/go-oidc-gate/sessions"
	"github.com/jrsteele09/go-oidc-gate/token"
	"github.com/jrsteele09/go-oidc-gate/token/bunrepo"
	tokenfakerepo "github.com/jrsteele09/go-oidc-gate/token/repofake"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName())

	if err := config.Validate(c); err != nil {
		return err
	}
	if !c.IsKnownProvider() {
		log.Info().Str("provider", c.GetProviderName()).Msg("provider has not been tested with this gate")
	}

	ctx := context.Background()
	tokens, closeTokens, err := openTokenRepo(ctx, c.GetDatabaseURL())
	if err != nil {
		return err
	}
	defer closeTokens()

	client, err := oidcclient.New(ctx, oidcclient.Settings{
		Name:         c.GetProviderName(),
		IssuerURL:    c.GetIssuerURL(),
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		Scopes:       c.GetScopes(),
	})
	if err != nil {
		return err
	}
	log.Info().Str("provider", client.Name()).Str("client_id", c.GetClientID()).Str("client_secret", logging.Redact(c.GetClientSecret())).Msg("provider configured")

	manager := lifecycle.NewManager(tokens, client)
	client.Register(manager)

	handler, err := server.New(c, server.Repos{
		Tokens:    tokens,
		Sessions:  sessions.NewInMemoryRepo(),
		AuthState: authflow.NewInMemoryRepo(),
	}, client, manager)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(srv) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

// openTokenRepo picks the token store from DATABASE_URL: "memory" keeps tokens in
// process, anything else is opened through bun.
func openTokenRepo(ctx context.Context, dsn string) (token.Repo, func(), error) {
	if dsn == "memory" {
		log.Warn().Msg("tokens are kept in memory and lost on restart")
		return tokenfakerepo.NewFakeTokensRepo(), func() {}, nil
	}

	bunDB, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	repo := bunrepo.NewBunTokenRepository(bunDB)
	if err := repo.CreateSchema(ctx); err != nil {
		_ = db.Close(bunDB)
		return nil, nil, err
	}
	log.Info().Str("type", string(db.DetectType(dsn))).Msg("token store ready")
	return repo, func() { _ = db.Close(bunDB) }, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
