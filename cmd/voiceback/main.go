// Voiceback answers phone calls with an emotionally attuned historical quote.
// It serves the telephony platform's webhook, classifies caller transcripts
// into emotions, and composes spoken replies from a validated response
// configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voiceback/voiceback/internal/api"
	"github.com/voiceback/voiceback/internal/call"
	"github.com/voiceback/voiceback/internal/emotion"
	"github.com/voiceback/voiceback/internal/genai"
	"github.com/voiceback/voiceback/internal/respconfig"
	"github.com/voiceback/voiceback/internal/response"
	"github.com/voiceback/voiceback/internal/util"
	"github.com/voiceback/voiceback/internal/vapi"
)

// Config aggregates all runtime settings. Flags default from environment
// variables so both styles of deployment work.
type Config struct {
	Addr          string
	ConfigPath    string
	CrisisFile    string
	WatchConfig   bool
	Greeting      string
	EnableGenAI   bool
	ServerURL     string
	PhoneNumberID string
	HealthCheck   bool
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Addr, "addr", envOr("PORT_ADDR", ""), "listen address (defaults to :$PORT or :8080)")
	flag.StringVar(&cfg.ConfigPath, "config", envOr("RESPONSES_CONFIG_PATH", "config/responses.json"), "path to the response configuration file")
	flag.StringVar(&cfg.CrisisFile, "crisis-file", os.Getenv("CRISIS_KEYWORDS_FILE"), "optional crisis keyword file (.json or line per keyword)")
	flag.BoolVar(&cfg.WatchConfig, "watch-config", util.ParseBoolEnv("WATCH_CONFIG", true), "watch the configuration file for changes")
	flag.StringVar(&cfg.Greeting, "greeting", envOr("GREETING", call.DefaultGreeting), "first message spoken on a new call")
	flag.BoolVar(&cfg.EnableGenAI, "genai", util.ParseBoolEnv("ENABLE_GENAI", false), "generate replies with the OpenAI API instead of the quote pipeline")
	flag.StringVar(&cfg.ServerURL, "server-url", os.Getenv("SERVER_URL"), "public webhook URL to register with the platform")
	flag.StringVar(&cfg.PhoneNumberID, "phone-number-id", os.Getenv("VAPI_PHONE_NUMBER_ID"), "platform phone number ID for webhook registration")
	flag.BoolVar(&cfg.HealthCheck, "health-check", false, "verify platform connectivity and exit")
	flag.Parse()
	return cfg
}

func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	if err := godotenv.Load(); err != nil {
		// Not an error: production deployments set real environment variables.
		slog.Debug("main: no .env file loaded", "error", err)
	}
	initializeLogger()

	cfg := parseFlags()

	if cfg.HealthCheck {
		os.Exit(runHealthCheck())
	}

	if err := run(cfg); err != nil {
		slog.Error("main: fatal error", "error", err)
		os.Exit(1)
	}
}

func runHealthCheck() int {
	client, err := vapi.NewClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "health check failed:", err)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "health check failed:", err)
		return 1
	}
	fmt.Println("ok")
	return 0
}

// validateEnvironment checks that the variables the service cannot run
// without are set.
func validateEnvironment() error {
	var missing []string
	for _, key := range []string{"VAPI_API_KEY", "PHONE_NUMBER"} {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	slog.Info("main: environment validation passed")
	return nil
}

func checkVapiConnectivity() error {
	client, err := vapi.NewClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.HealthCheck(ctx)
}

func run(cfg Config) error {
	if err := validateEnvironment(); err != nil {
		return err
	}
	if err := checkVapiConnectivity(); err != nil {
		return fmt.Errorf("vapi connectivity check: %w", err)
	}

	storeOpts := []respconfig.Option{}
	if cfg.WatchConfig {
		storeOpts = append(storeOpts, respconfig.WithWatcher())
	}
	store, err := respconfig.NewStore(cfg.ConfigPath, storeOpts...)
	if err != nil {
		return fmt.Errorf("configuration store: %w", err)
	}
	defer store.Close()
	if err := store.Load(false); err != nil {
		return fmt.Errorf("load response configuration: %w", err)
	}

	detectorOpts := []emotion.Option{}
	if cfg.CrisisFile != "" {
		detectorOpts = append(detectorOpts, emotion.WithCrisisKeywordsFile(cfg.CrisisFile))
	}
	detector, err := emotion.NewDetector(detectorOpts...)
	if err != nil {
		return fmt.Errorf("emotion detector: %w", err)
	}

	builder := response.NewBuilder()

	registerOpts := []call.Option{call.WithGreeting(cfg.Greeting)}
	if cfg.EnableGenAI {
		agent, err := genai.NewClient()
		if err != nil {
			return fmt.Errorf("genai client: %w", err)
		}
		registerOpts = append(registerOpts, call.WithAgent(agent))
		slog.Info("main: generative replies enabled")
	}
	register := call.NewRegister(detector, store, builder, registerOpts...)

	if cfg.ServerURL != "" {
		if err := registerWebhook(cfg); err != nil {
			return err
		}
	}

	serverOpts := []api.Option{}
	if cfg.Addr != "" {
		serverOpts = append(serverOpts, api.WithAddr(cfg.Addr))
	}
	server := api.NewServer(register, store, serverOpts...)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("main: shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func registerWebhook(cfg Config) error {
	if cfg.PhoneNumberID == "" {
		return fmt.Errorf("webhook registration requires -phone-number-id (or VAPI_PHONE_NUMBER_ID)")
	}
	client, err := vapi.NewClient()
	if err != nil {
		return fmt.Errorf("vapi client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.RegisterWebhook(ctx, cfg.PhoneNumberID, cfg.ServerURL); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	return nil
}
