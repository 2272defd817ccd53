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
	"github.com/jrsteele09/classroom-portal/server"
	"github.com/jrsteele09/classroom-portal/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web front-end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags)
		},
	}
}

func run(flags *globalFlags) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	a, err := newApp(flags)
	if err != nil {
		return err
	}
	displayAppname(a.config.GetAppName())

	handler, err := server.New(a.config, a.session, a.classes, a.registry)
	if err != nil {
		return err
	}

	if a.config.GetRestoreOnStart() {
		go restoreSession(a)
	} else if a.session.State().Status == session.StatusAuthenticating {
		// Credentials from a previous run are not reused.
		a.session.Logout(context.Background())
	}

	srv := &http.Server{Addr: a.config.GetPort(), Handler: handler}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(srv) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

// restoreSession revalidates a credential left by a previous run.
func restoreSession(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.GetRequestTimeout())
	defer cancel()
	if err := a.session.RefreshIdentity(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore the previous session")
		return
	}
	if identity := a.session.State().Identity; identity != nil {
		log.Info().Str("teacher", identity.DisplayName()).Msg("session restored")
	}
}

func listenAndServe(srv *http.Server) error {
	log.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
