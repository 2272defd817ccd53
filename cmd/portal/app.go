package main

import (
	"net/http"
	"os"
	"strings"

	"github.com/jrsteele09/classroom-portal/authapi"
	"github.com/jrsteele09/classroom-portal/classes"
	"github.com/jrsteele09/classroom-portal/credentials"
	"github.com/jrsteele09/classroom-portal/gateway"
	"github.com/jrsteele09/classroom-portal/internal/config"
	"github.com/jrsteele09/classroom-portal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app is the wired object graph shared by every command.
type app struct {
	config   config.Config
	registry *prometheus.Registry
	store    *credentials.FileStore
	gateway  *gateway.Gateway
	session  *session.Controller
	classes  *classes.Client
}

func newApp(flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := credentials.NewFileStore(cfg.GetCredentialFile())
	gw := gateway.New(store, gateway.Options{
		BaseURL:     cfg.GetAPIBaseURL(),
		RefreshPath: cfg.GetRefreshPath(),
		HTTPClient:  &http.Client{Timeout: cfg.GetRequestTimeout()},
		Metrics:     gateway.NewMetrics(registry),
	})
	api := authapi.New(gw, authapi.Paths{
		Login:    cfg.GetLoginPath(),
		Register: cfg.GetRegisterPath(),
		Identity: cfg.GetIdentityPath(),
		Logout:   cfg.GetLogoutPath(),
	})
	controller := session.New(api, store)
	gw.Attach(controller)

	return &app{
		config:   cfg,
		registry: registry,
		store:    store,
		gateway:  gw,
		session:  controller,
		classes:  classes.New(gw),
	}, nil
}

// loadConfig resolves the config file and applies the logging settings.
func loadConfig(flags *globalFlags) (config.Config, error) {
	path := flags.configPath
	if path == "" {
		path = config.GetEnv("CONFIG_FILE", "")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.GetLogLevel()
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	setupLogging(cfg.GetEnv(), level)
	return cfg, nil
}

func setupLogging(env, level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}
