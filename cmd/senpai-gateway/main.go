// ABOUTME: Entry point for the senpai-gateway server
// ABOUTME: Wires the store, Cognito credentials, agent transport, and HTTP surface

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/senpai-gateway/internal/agent"
	"github.com/2389/senpai-gateway/internal/auth"
	"github.com/2389/senpai-gateway/internal/config"
	"github.com/2389/senpai-gateway/internal/conversation"
	"github.com/2389/senpai-gateway/internal/gateway"
	"github.com/2389/senpai-gateway/internal/session"
	"github.com/2389/senpai-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                 _
 ___  ___ _ __  _ __   __ _(_)       __ _  __ _| |_ _____      ____ _ _   _
/ __|/ _ \ '_ \| '_ \ / _' | |_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
\__ \  __/ | | | |_) | (_| | |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
|___/\___|_| |_| .__/ \__,_|_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
               |_|                  |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: SENPAI_CONFIG env var > XDG_CONFIG_HOME/senpai/gateway.yaml > ~/.config/senpai/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SENPAI_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "senpai", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: senpai-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the gateway server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Region:  %s\n", cfg.AWS.Region)
	green.Print("    ▶ ")
	fmt.Printf("Mentors: %d\n", len(cfg.Mentors))

	// Tailscale status
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting senpai-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"region", cfg.AWS.Region,
	)

	// Assemble components
	memStore := store.NewMemoryStore()

	tokens := auth.StaticTokenSource(cfg.AWS.IDToken)
	creds := auth.NewCognitoProvider(cfg.AWS.Region, cfg.AWS.UserPoolID, cfg.AWS.IdentityPoolID,
		tokens, logger.With("component", "auth"))

	invoker := agent.NewBedrockInvoker(cfg.AWS.Region, cfg.Agent.Qualifier, creds,
		logger.With("component", "agent"))

	broadcaster := conversation.NewBroadcaster(logger)

	svc, err := conversation.New(conversation.Options{
		Store:         memStore,
		Invoker:       invoker,
		Credentials:   creds,
		Sessions:      session.NewBuilder(cfg.Session.MinTokenLength),
		Mentors:       cfg.MentorList(),
		Broadcaster:   broadcaster,
		InvokeTimeout: cfg.Agent.InvokeTimeout,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("creating conversation service: %w", err)
	}

	gw, err := gateway.New(gateway.Options{
		Config:       cfg,
		Conversation: svc,
		Broadcaster:  broadcaster,
		Credentials:  creds,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("senpai-gateway configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	// AWS
	fmt.Println("\n--- AWS Configuration ---")
	region := prompt(reader, "AWS region", "us-east-1")
	userPoolID := prompt(reader, "Cognito user pool ID", "")
	identityPoolID := prompt(reader, "Cognito identity pool ID", "")

	// Mentors
	fmt.Println("\n--- Mentor Endpoints ---")
	fmt.Println("Paste the agent runtime ARN for each mentor (leave empty to skip).")
	mentorNames := []string{"general", "learning", "communication", "counseling"}
	endpoints := make(map[string]string, len(mentorNames))
	for _, name := range mentorNames {
		endpoints[name] = prompt(reader, name+" endpoint", "")
	}

	// Tailscale
	fmt.Println("\n--- Tailscale Configuration ---")
	enableTailscale := prompt(reader, "Enable Tailscale?", "no")
	tailscaleEnabled := strings.ToLower(enableTailscale) == "yes" || strings.ToLower(enableTailscale) == "y"

	var tsHostname, tsAuthKey string
	var tsEphemeral, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "senpai-gateway")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty for TS_AUTHKEY)", "")
		ephemeralStr := prompt(reader, "Ephemeral node?", "no")
		tsEphemeral = strings.ToLower(ephemeralStr) == "yes" || strings.ToLower(ephemeralStr) == "y"
		funnelStr := prompt(reader, "Enable Funnel (public HTTPS)?", "no")
		tsFunnel = strings.ToLower(funnelStr) == "yes" || strings.ToLower(funnelStr) == "y"
	}

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	cfg := renderInitConfig(initAnswers{
		httpAddr:       httpAddr,
		region:         region,
		userPoolID:     userPoolID,
		identityPoolID: identityPoolID,
		mentorNames:    mentorNames,
		endpoints:      endpoints,
		tailscale:      tailscaleEnabled,
		tsHostname:     tsHostname,
		tsAuthKey:      tsAuthKey,
		tsEphemeral:    tsEphemeral,
		tsFunnel:       tsFunnel,
		logLevel:       logLevel,
		logFormat:      logFormat,
	})

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  SENPAI_ID_TOKEN=<cognito id token> senpai-gateway serve\n")

	return nil
}

// initAnswers collects the operator's answers from the init prompts.
type initAnswers struct {
	httpAddr       string
	region         string
	userPoolID     string
	identityPoolID string
	mentorNames    []string
	endpoints      map[string]string
	tailscale      bool
	tsHostname     string
	tsAuthKey      string
	tsEphemeral    bool
	tsFunnel       bool
	logLevel       string
	logFormat      string
}

// renderInitConfig produces the gateway YAML for a set of init answers.
// The invoke timeout has no sensible universal value, so the generated file
// leaves it unset and the operator opts in.
func renderInitConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# senpai-gateway configuration\n")
	cfg.WriteString("# Generated by senpai-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", a.httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("aws:\n")
	cfg.WriteString(fmt.Sprintf("  region: \"%s\"\n", a.region))
	cfg.WriteString(fmt.Sprintf("  user_pool_id: \"%s\"\n", a.userPoolID))
	cfg.WriteString(fmt.Sprintf("  identity_pool_id: \"%s\"\n", a.identityPoolID))
	cfg.WriteString("  id_token: \"${SENPAI_ID_TOKEN}\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("agent:\n")
	cfg.WriteString("  qualifier: \"DEFAULT\"\n")
	cfg.WriteString("  # invoke_timeout: unset means no per-call bound; set e.g. \"90s\" to cap agent calls\n")
	cfg.WriteString("\n")

	cfg.WriteString("mentors:\n")
	for _, name := range a.mentorNames {
		if a.endpoints[name] == "" {
			continue
		}
		cfg.WriteString(fmt.Sprintf("  - name: \"%s\"\n", name))
		cfg.WriteString(fmt.Sprintf("    endpoint: \"%s\"\n", a.endpoints[name]))
	}
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.tailscale))
	if a.tailscale {
		cfg.WriteString(fmt.Sprintf("  hostname: \"%s\"\n", a.tsHostname))
		if a.tsAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: \"%s\"\n", a.tsAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", a.tsEphemeral))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", a.tsFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", a.logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", a.logFormat))

	return cfg.String()
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
