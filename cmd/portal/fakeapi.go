package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/classroom-portal/authapi"
	"github.com/jrsteele09/classroom-portal/internal/config"
	"github.com/jrsteele09/classroom-portal/internal/fakeapi"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type fakeAPIFlags struct {
	addr      string
	prefix    string
	secret    string
	accessTTL time.Duration
	seedID    string
	seedPass  string
}

func fakeAPICmd(flags *globalFlags) *cobra.Command {
	opts := &fakeAPIFlags{}

	cmd := &cobra.Command{
		Use:   "fakeapi",
		Short: "Run an in-memory classroom API for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(flags); err != nil {
				return err
			}
			return runFakeAPI(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "/api", "Path prefix the API is mounted under")
	cmd.Flags().StringVar(&opts.secret, "secret", config.GetEnv("JWT_SECRET", ""), "Access token signing secret")
	cmd.Flags().DurationVar(&opts.accessTTL, "access-ttl", 15*time.Minute, "Access token lifetime")
	cmd.Flags().StringVar(&opts.seedID, "seed-civil-id", "290010112345", "Civil ID of a demo teacher (empty to skip)")
	cmd.Flags().StringVar(&opts.seedPass, "seed-password", "password", "Password of the demo teacher")
	return cmd
}

func runFakeAPI(ctx context.Context, opts *fakeAPIFlags) error {
	api := fakeapi.New(fakeapi.Options{Secret: opts.secret, AccessTTL: opts.accessTTL})

	if opts.seedID != "" {
		identity, err := api.SeedTeacher(authapi.RegisterRequest{
			CivilID:  opts.seedID,
			FullName: "Demo Teacher",
			Email:    "demo@example.com",
			Password: opts.seedPass,
			SchoolID: uuid.NewString(),
		})
		if err != nil {
			return err
		}
		log.Info().Str("civil_id", identity.CivilID).Msg("seeded demo teacher")
	}

	var handler http.Handler = api
	if prefix := strings.TrimRight(opts.prefix, "/"); prefix != "" {
		handler = http.StripPrefix(prefix, api)
	}

	srv := &http.Server{Addr: opts.addr, Handler: handler}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(srv) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
	}
	return shutdown(srv)
}
