// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	apiconnect "github.com/osa030/decobox/internal/api/connect"
	"github.com/osa030/decobox/internal/app/filter"
	"github.com/osa030/decobox/internal/app/notification"
	"github.com/osa030/decobox/internal/app/playback"
	"github.com/osa030/decobox/internal/app/plugin"
	"github.com/osa030/decobox/internal/app/resolver"
	"github.com/osa030/decobox/internal/app/session"
	"github.com/osa030/decobox/internal/domain/voice"
	"github.com/osa030/decobox/internal/infra/audio"
	"github.com/osa030/decobox/internal/infra/config"
	"github.com/osa030/decobox/internal/infra/discord"
	"github.com/osa030/decobox/internal/infra/logger"
	"github.com/osa030/decobox/internal/infra/metrics"
	"github.com/osa030/decobox/internal/infra/spotify"
	"github.com/osa030/decobox/internal/infra/store"
	"github.com/osa030/decobox/internal/infra/text"

	_ "github.com/osa030/decobox/internal/plugins/core"
	_ "github.com/osa030/decobox/internal/plugins/repl"
	_ "github.com/osa030/decobox/internal/plugins/voice"
)

var (
	app        = kingpin.New("decobox", "decobox chat bot")
	configPath = app.Flag("config", "Path to config file").Default("config/decobox.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
	listPluginsCmd = app.Command("list-plugins", "List available plugins and exit")
)

func init() {
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case listFiltersCmd.FullCommand():
		printFilters()
		return
	case listPluginsCmd.FullCommand():
		printPlugins()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %+v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run executes the main bot logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	startedAt := time.Now()

	if err := filter.ValidateConfig(cfg); err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	texts, err := text.NewStore(cfg.Text.Dir)
	if err != nil {
		return errors.Wrap(err, "failed to load templates")
	}

	st, err := store.Open(cfg.Voice.StateDB)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()

	discord.RouteLogs()
	client, err := discord.New(discord.Config{
		Token:     cfg.Bot.Token,
		SendRate:  cfg.Bot.SendRate,
		SendBurst: cfg.Bot.SendBurst,
	}, m)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	downloader, err := newDownloader(ctx, cfg)
	if err != nil {
		return err
	}

	sessions := session.NewManager(
		session.Config{
			QueueCapacity: cfg.Voice.QueueCapacity,
			DefaultVolume: cfg.Voice.DefaultVolume,
		},
		client,
		st,
		func(conn voice.Conn) playback.Player {
			return audio.NewPlayer(downloader, conn, m)
		},
		notification.NewManager(),
		m,
	)

	chain, err := filter.BuildChain(cfg, sessions)
	if err != nil {
		return errors.Wrap(err, "failed to build filter chain")
	}

	host := &plugin.Host{
		Config:    cfg,
		Sender:    client,
		Texts:     texts,
		Sessions:  sessions,
		Metrics:   m,
		StartedAt: startedAt,
	}
	plugins := plugin.NewManager(host, chain)
	loaded := plugins.LoadAll(ctx, cfg.Bot.Plugins)
	zlog.Info().Msgf("Loaded plugins: %d/%d %v", loaded, len(cfg.Bot.Plugins), plugins.Loaded())

	client.OnMessage(ctx, plugins.Dispatch)
	client.OnReady(ctx, plugins.Ready)
	if err := client.Open(); err != nil {
		return err
	}

	server := newAdminServer(cfg, apiconnect.NewAdminService(sessions, plugins, chain, startedAt), m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Info().Msgf("Starting admin server: addr=%s", cfg.Admin.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "admin server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown admin server: %v", err)
		}
		return nil
	})

	executeHooks(cfg.Admin.Hooks.OnStarted, "on_started")

	err = g.Wait()

	// Plugins first so they can say goodbye while the gateway is still up.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	plugins.UnloadAll(shutdownCtx)
	sessions.Close()
	if cerr := client.Close(); cerr != nil {
		zlog.Error().Msgf("Failed to close discord session: %v", cerr)
	}

	zlog.Info().Msg("Bot stopped")
	executeHooks(cfg.Admin.Hooks.OnStopped, "on_stopped")

	return err
}

// newDownloader creates the track downloader with its resolver chain.
// Spotify link resolution is enabled only when credentials are configured.
func newDownloader(ctx context.Context, cfg *config.Config) (*audio.Downloader, error) {
	var sp resolver.SpotifyClient
	if cfg.Spotify.ClientID != "" {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Spotify client")
		}
		sp = client
	} else {
		zlog.Info().Msg("Spotify not configured, Spotify links will not resolve")
	}

	resolvers, err := resolver.NewChainFromConfig(cfg, sp)
	if err != nil {
		return nil, err
	}

	downloader, err := audio.NewDownloader(audio.Config{
		CacheDir:    cfg.Voice.CacheDir,
		YtdlpPath:   cfg.Voice.YtdlpPath,
		FFmpegPath:  cfg.Voice.FFmpegPath,
		BitrateKbps: cfg.Voice.BitrateKbps,
	}, resolvers)
	if err != nil {
		return nil, err
	}
	if err := downloader.Prepare(ctx); err != nil {
		return nil, err
	}
	return downloader, nil
}

// newAdminServer creates the admin HTTP server with h2c (HTTP/2 cleartext)
// support. It serves the admin RPCs and Prometheus metrics.
func newAdminServer(cfg *config.Config, svc *apiconnect.AdminService, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	path, handler := apiconnect.NewAdminServiceHandler(
		svc,
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)),
	)
	mux.Handle(path, handler)
	mux.Handle("/metrics", m.Handler())

	return &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// printFilters prints available filters.
func printFilters() {
	registry := filter.GetRegistered()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Filters:")
	for _, name := range names {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-20s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// printPlugins prints available plugins.
func printPlugins() {
	fmt.Println("Available Plugins:")
	for _, reg := range plugin.GetRegistered() {
		fmt.Printf("  %-20s - %s\n", reg.Name, reg.Description)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
