package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/invoiceai/invoice-ledger/internal/extraction"
	"github.com/invoiceai/invoice-ledger/internal/invoice"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Best-effort .env load for local development
	godotenv.Load()

	fs := ff.NewFlagSet("invoice-ledger")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		dbPath       = fs.StringLong("db", "invoice-ledger.db", "Local cache database file path")
		sheetURL     = fs.StringLong("sheet-url", "", "Google Sheet webhook URL (authoritative remote store)")
		providers    = fs.StringLong("providers", "gemini", "Comma-separated provider priority order: 'gemini' and/or 'ollama', best first")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModels = fs.StringLong("gemini-models", "gemini-2.5-flash", "Comma-separated Gemini model names, best first")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_LEDGER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.Info("Initializing local cache...", "path", *dbPath)
	cache, err := invoice.NewBoltCache(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize local cache", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	remote, err := invoice.NewSheetClient(*sheetURL)
	if err != nil {
		slog.Error("Failed to initialize remote store client", "error", err)
		os.Exit(1)
	}

	pipeline, err := buildPipeline(*providers, *geminiKey, *geminiModels, *ollamaURL, *ollamaModel)
	if err != nil {
		slog.Error("Failed to initialize extraction pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	service := invoice.NewService(cache, remote)

	// Startup refresh: the remote list is authoritative. Failure is
	// tolerated; the cached collection serves until the next refresh.
	ctx, cancelRefresh := context.WithTimeout(context.Background(), 30*time.Second)
	if err := service.Refresh(ctx); err != nil {
		slog.Warn("Initial refresh failed, serving cached collection", "error", err)
	}
	cancelRefresh()

	server := invoice.NewServer(service, pipeline, invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// buildPipeline assembles the ordered provider chain from flags. The order
// given is the fallback order: best-quality first, broadest-availability
// last.
func buildPipeline(providerList, geminiKey, geminiModels, ollamaURL, ollamaModel string) (*extraction.Pipeline, error) {
	var chain []extraction.Provider

	for _, name := range strings.Split(providerList, ",") {
		switch strings.TrimSpace(name) {
		case "gemini":
			apiKey := geminiKey
			if apiKey == "" {
				apiKey = os.Getenv("GEMINI_API_KEY")
			}
			for _, model := range strings.Split(geminiModels, ",") {
				model = strings.TrimSpace(model)
				if model == "" {
					continue
				}
				slog.Info("Adding Gemini provider", "model", model)
				provider, err := extraction.NewGemini(apiKey, model)
				if err != nil {
					return nil, err
				}
				chain = append(chain, provider)
			}
		case "ollama":
			slog.Info("Adding Ollama provider", "url", ollamaURL, "model", ollamaModel)
			provider, err := extraction.NewOllama(ollamaURL, ollamaModel)
			if err != nil {
				return nil, err
			}
			chain = append(chain, provider)
		case "":
		default:
			return nil, fmt.Errorf("unknown provider %q (valid: gemini, ollama)", name)
		}
	}

	return extraction.NewPipeline(chain...)
}
