// ABOUTME: Entry point for coven-contactcenter, the agent allocation server
// ABOUTME: Provides serve, init, token, health and agents subcommands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-contactcenter/internal/auth"
	"github.com/2389/coven-contactcenter/internal/config"
	"github.com/2389/coven-contactcenter/internal/dashboard"
	"github.com/2389/coven-contactcenter/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                    _             _
  ___ _____   _____ _ __        ___| |_ _ __ ___ | |_ __
 / __/ _ \ \ / / _ \ '_ \ _____/ __| __| '__/ _ \| | '__|
| (_| (_) \ V /  __/ | | |_____| (__| |_| | | (_) | | |
 \___\___/ \_/ \___|_| |_|      \___|\__|_|  \___/|_|_|
`

// defaultTokenTTL is how long generated tokens stay valid unless --expires is given.
const defaultTokenTTL = 30 * 24 * time.Hour

// getConfigPath returns the path to the config file.
// Priority: COVEN_CC_CONFIG env var > XDG_CONFIG_HOME/coven/contactcenter.yaml > ~/.config/coven/contactcenter.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_CC_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "contactcenter.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "contactcenter.yaml")
}

// getDataPath returns the path to the coven data directory.
// Priority: XDG_DATA_HOME/coven > ~/.local/share/coven
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven")
}

// getTokenPath returns where `token --save` writes and the client commands read.
func getTokenPath() string {
	return filepath.Join(filepath.Dir(getConfigPath()), "contactcenter.token")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: coven-contactcenter <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                              Start the allocation server")
		fmt.Println("  init                               Create a new config file interactively")
		fmt.Println("  token --name ID [--role R] [--save] Issue an API token")
		fmt.Println("  health                             Check server health")
		fmt.Println("  agents [--supervisor ADDR]         List agents and their allocation state")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "agents":
		err = runAgents(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
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

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Routing:   %s\n", cfg.Routing.Strategy)
	green.Print("    ▶ ")
	fmt.Printf("Directory: %d skills, %d supervisors, %d agents\n",
		len(cfg.Directory.Skills), len(cfg.Directory.Supervisors), len(cfg.Directory.Agents))
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! API authentication disabled (auth.jwt_secret not set)")
	}

	fmt.Println()

	logger.Info("starting coven-contactcenter",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"strategy", cfg.Routing.Strategy,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// tokenArgs holds the parsed flags of the token subcommand.
type tokenArgs struct {
	name    string
	roles   []string
	expires time.Duration
	save    bool
}

// parseTokenArgs accepts both "--flag value" and "--flag=value".
func parseTokenArgs(args []string) (tokenArgs, error) {
	out := tokenArgs{expires: defaultTokenTTL}

	value := func(i *int, arg, flag string) (string, error) {
		if v, ok := strings.CutPrefix(arg, flag+"="); ok {
			return v, nil
		}
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		flag, _, _ := strings.Cut(arg, "=")
		switch flag {
		case "--name", "-n":
			v, err := value(&i, arg, flag)
			if err != nil {
				return out, err
			}
			out.name = strings.TrimSpace(v)
		case "--role", "-r":
			v, err := value(&i, arg, flag)
			if err != nil {
				return out, err
			}
			for _, role := range strings.Split(v, ",") {
				role = strings.TrimSpace(role)
				if !isKnownRole(role) {
					return out, fmt.Errorf("unknown role %q", role)
				}
				out.roles = append(out.roles, role)
			}
		case "--expires":
			v, err := value(&i, arg, flag)
			if err != nil {
				return out, err
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return out, fmt.Errorf("parsing --expires: %w", err)
			}
			if d <= 0 {
				return out, fmt.Errorf("--expires must be positive")
			}
			out.expires = d
		case "--save":
			out.save = true
		default:
			if strings.HasPrefix(arg, "-") {
				return out, fmt.Errorf("unknown flag: %s", arg)
			}
			return out, fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	if out.name == "" {
		return out, fmt.Errorf("--name flag is required")
	}
	if len(out.name) > 100 {
		return out, fmt.Errorf("name exceeds maximum length of 100 characters")
	}
	if len(out.roles) == 0 {
		out.roles = []string{auth.RoleSupervisor}
	}
	return out, nil
}

func isKnownRole(role string) bool {
	switch role {
	case auth.RoleAdmin, auth.RoleSupervisor, auth.RoleRouter, auth.RolePresence:
		return true
	}
	return false
}

// runToken signs a token with the configured secret and prints it.
func runToken(args []string) error {
	parsed, err := parseTokenArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(parsed.name, parsed.roles, parsed.expires)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	if parsed.save {
		tokenPath := getTokenPath()
		if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
			return fmt.Errorf("writing token file: %w", err)
		}
		color.New(color.FgGreen).Fprintf(os.Stderr, "  ✓ Saved token: %s\n", tokenPath)
	}

	fmt.Println(token)
	return nil
}

// loadToken returns the API token from COVEN_CC_TOKEN or the saved token file.
// An empty string means no token is available.
func loadToken() string {
	if t := os.Getenv("COVEN_CC_TOKEN"); t != "" {
		return strings.TrimSpace(t)
	}
	data, err := os.ReadFile(getTokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// apiGet performs an authenticated GET against the configured server.
func apiGet(ctx context.Context, cfg *config.Config, path string) (*http.Response, error) {
	url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if token := loadToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resp, err := apiGet(ctx, cfg, "/health/ready")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("not ready: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

func runAgents(ctx context.Context, args []string) error {
	path := "/api/agents"
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--supervisor" && i+1 < len(args):
			path += "?supervisor=" + args[i+1]
			i++
		case strings.HasPrefix(arg, "--supervisor="):
			path += "?supervisor=" + strings.TrimPrefix(arg, "--supervisor=")
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resp, err := apiGet(ctx, cfg, path)
	if err != nil {
		return fmt.Errorf("agents request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("listing agents: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var records []dashboard.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	printAgents(os.Stdout, records)
	return nil
}

// printAgents renders agent records as an aligned table.
func printAgents(w io.Writer, records []dashboard.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tNAME\tONLINE\tSTATUS\tSUPERVISOR\tSKILLS")
	for _, r := range records {
		online := "no"
		if r.Online {
			online = "yes"
		}
		supervisor := r.Supervisor
		if supervisor == "" {
			supervisor = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.SignInAddress, r.DisplayName, online, r.Status, supervisor, strings.Join(r.Skills, ", "))
	}
	tw.Flush()
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "coven-contactcenter configuration setup")
	fmt.Fprintln(out, "=======================================")
	fmt.Fprintln(out)

	defaultDbPath := filepath.Join(getDataPath(), "contactcenter.db")

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	httpAddr := prompt(reader, out, "HTTP address", "localhost:8080")

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	dbPath := prompt(reader, out, "SQLite database path", defaultDbPath)

	fmt.Fprintln(out, "\n--- Routing Configuration ---")
	strategy := prompt(reader, out, "Strategy (longest_idle/round_robin)", "longest_idle")

	fmt.Fprintln(out, "\n--- Authentication ---")
	var jwtSecret string
	if isYes(prompt(reader, out, "Generate a JWT secret?", "yes")) {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# coven-contactcenter configuration\n")
	cfg.WriteString("# Generated by coven-contactcenter init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n\n", httpAddr))

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", dbPath))

	if jwtSecret != "" {
		cfg.WriteString("auth:\n")
		cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n\n", jwtSecret))
	}

	cfg.WriteString("routing:\n")
	cfg.WriteString(fmt.Sprintf("  strategy: %q\n", strategy))
	cfg.WriteString("  max_attempts: 0\n\n")

	cfg.WriteString("dashboard:\n")
	cfg.WriteString("  poll_interval: \"2s\"\n\n")

	cfg.WriteString("presence:\n")
	cfg.WriteString("  dedupe_ttl: \"5m\"\n")
	cfg.WriteString("  dedupe_size: 10000\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n\n", logFormat))

	cfg.WriteString(sampleDirectory)

	// Catch typos before anything is written.
	if _, err := config.Parse([]byte(cfg.String()), outputFile); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nEdit the directory section, then start the server:")
	fmt.Fprintln(out, "  coven-contactcenter serve")

	return nil
}

const sampleDirectory = `directory:
  skills:
    - name: Language
      values: ["English", "Spanish"]
      prompts:
        main: "Which language would you like to use?"
        no_recognition: "Sorry, please say English or Spanish."
    - name: Product
      values: ["Routers", "Switches"]
  supervisors:
    - sign_in_address: "sip:supervisor@example.com"
      public_name: "Supervisor"
      instant_message_color: "Blue"
  agents:
    - sign_in_address: "sip:agent1@example.com"
      public_name: "Agent One"
      supervisor: "sip:supervisor@example.com"
      online: true
      skills:
        Language: English
        Product: Routers
`

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
