// Package main provides the vecquery CLI: provision a vector collection,
// index documents into it and run similarity queries.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mike-a-ellis/vecquery/internal/config"
	"github.com/mike-a-ellis/vecquery/internal/corpus"
	"github.com/mike-a-ellis/vecquery/internal/embedding"
	ghclient "github.com/mike-a-ellis/vecquery/internal/github"
	"github.com/mike-a-ellis/vecquery/internal/indexer"
	"github.com/mike-a-ellis/vecquery/internal/storage"
	"github.com/mike-a-ellis/vecquery/internal/workflow"
)

const envHelp = `Environment variables:
  STORE_BACKEND    qdrant (default), bolt or memory
  QDRANT_HOST      Qdrant hostname (default: localhost)
  QDRANT_PORT      Qdrant gRPC port (default: 6334)
  QDRANT_API_KEY   Qdrant API key (required for qdrant)
  QDRANT_USE_TLS   Use TLS for the Qdrant connection (default: false)
  BOLT_PATH        Database file for the bolt backend (default: vecquery.db)
  OPENAI_API_KEY   OpenAI API key for embeddings (required)
  OPENAI_BASE_URL  Alternative OpenAI-compatible endpoint
  EMBEDDING_MODEL  Embedding model (default: text-embedding-3-small)
  CALL_TIMEOUT     Timeout for each store or embedding call (default: 5s)
  GITHUB_TOKEN     GitHub token for higher rate limits (optional)
  LOG_LEVEL        debug, info, warn or error (default: info)`

var planPath string

// status receives progress lines; serve points it at stderr in stdio mode.
var status io.Writer = os.Stdout

var rootCmd = &cobra.Command{
	Use:           "vecquery",
	Short:         "Vector collection provisioning, indexing and similarity search",
	Long:          "Provision a vector collection, index embedded documents into it and query it by similarity.\n\n" + envHelp,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision, index and query in one go",
	Long: `Runs the whole plan:

1. Connects to the store and verifies health
2. Creates the collection (an existing collection is reused)
3. Embeds and stores every document of the plan
4. Runs the plan's query and prints the hits

Without --plan the built-in pets demo is used.`,
	RunE: runAll,
}

var (
	recreate bool

	provisionCmd = &cobra.Command{
		Use:   "provision",
		Short: "Create the plan's collection",
		RunE:  runProvision,
	}
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed and store the plan's documents",
	RunE:  runIndex,
}

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Run a similarity query",
	Long:  "Runs the plan's query, or the given text with the plan's k and candidate pool.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&planPath, "plan", "p", "", "YAML plan file (default: built-in pets demo)")
	provisionCmd.Flags().BoolVar(&recreate, "recreate", false, "drop the collection first if it exists")

	rootCmd.AddCommand(runCmd, provisionCmd, indexCmd, queryCmd, serveCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every command needs.
type app struct {
	cfg      *config.Config
	plan     *config.Plan
	schema   storage.Schema
	store    storage.Store
	embedder *embedding.Embedder
	workflow *workflow.Workflow
	logger   *slog.Logger
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	plan, err := config.LoadPlan(planPath)
	if err != nil {
		return nil, err
	}
	schema, err := plan.Schema()
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(status, "Connecting to %s store...\n", cfg.Store.Backend)
	store, err := storage.Open(ctx, storage.Options{
		Backend: cfg.Store.Backend,
		Qdrant: storage.QdrantConfig{
			Host:   cfg.Store.Host,
			Port:   cfg.Store.Port,
			APIKey: cfg.Store.APIKey,
			UseTLS: cfg.Store.UseTLS,
		},
		BoltPath: cfg.Store.BoltPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	fmt.Fprintln(status, "Store healthy")

	client, err := embedding.NewClient(cfg.Embedding.APIKey, cfg.Embedding.BaseURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(client, cfg.Embedding.Model, schema.Dimensions)

	fmt.Fprintf(status, "Checking embedding model %s...\n", embedder.Model())
	healthCtx, cancel := context.WithTimeout(ctx, time.Minute)
	err = embedder.Health(healthCtx)
	cancel()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("embedding service check failed: %w", err)
	}
	fmt.Fprintln(status, "Embedding service healthy")

	var fetcher corpus.DocFetcher
	if gh := plan.GitHub; gh != nil {
		ghClient, err := ghclient.NewClient(cfg.GitHubToken)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		fetcher = ghclient.NewFetcher(ghClient, gh.Owner, gh.Repo, gh.Path, gh.Ref)
	}

	return &app{
		cfg:      cfg,
		plan:     plan,
		schema:   schema,
		store:    store,
		embedder: embedder,
		workflow: workflow.New(store, embedder, corpus.NewLoader(fetcher, logger), cfg.CallTimeout, logger),
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close store", "error", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func runAll(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.workflow.Run(ctx, a.plan)
	printReport(os.Stdout, a.plan, report, err)
	if err != nil {
		return err
	}

	fmt.Printf("\nTotal time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.workflow.Provision(ctx, a.schema, recreate)
	if err != nil {
		return err
	}
	printProvision(os.Stdout, a.schema, created)
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.workflow.Index(ctx, a.plan)
	if err != nil {
		return err
	}
	printIndexResult(os.Stdout, result)
	if result.Failed > 0 && result.Succeeded == 0 {
		return errors.New("no document was indexed")
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		a.plan.Query.Text = args[0]
	}
	if a.plan.Query.Text == "" {
		return errors.New("no query text: pass one as an argument or set query.text in the plan")
	}

	hits, err := a.workflow.Query(ctx, a.plan)
	if err != nil {
		return err
	}
	printHits(os.Stdout, a.plan.Query.Text, hits)
	return nil
}

// printReport writes what a run got through. When provisioning itself fails
// nothing is printed; the returned error carries the diagnosis.
func printReport(w io.Writer, plan *config.Plan, report *workflow.Report, err error) {
	if report == nil || !report.Provisioned {
		return
	}
	printProvision(w, report.Schema, report.Created)
	if report.Index != nil {
		printIndexResult(w, report.Index)
	}
	if err == nil {
		printHits(w, plan.Query.Text, report.Hits)
	}
}

func printProvision(w io.Writer, s storage.Schema, created bool) {
	if created {
		fmt.Fprintf(w, "Collection %q created (%s, %d dims, %s)\n", s.Name, s.VectorField, s.Dimensions, s.Metric)
		return
	}
	fmt.Fprintf(w, "Collection %q already exists\n", s.Name)
}

func printIndexResult(w io.Writer, r *indexer.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Indexing complete")
	fmt.Fprintf(w, "  Documents: %d/%d\n", r.Succeeded, len(r.Outcomes))
	fmt.Fprintf(w, "  Duration: %s\n", r.Duration.Round(time.Millisecond))

	if r.Failed > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failed documents:")
		for _, err := range r.Errors() {
			fmt.Fprintf(w, "  - %v\n", err)
		}
	}
}

func printHits(w io.Writer, query string, hits []storage.ScoredDocument) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Results for %q:\n", query)
	if len(hits) == 0 {
		fmt.Fprintln(w, "  (no documents)")
		return
	}
	for i, h := range hits {
		fmt.Fprintf(w, "  %d. %s (score %.4f)\n", i+1, h.Text, h.Score)
	}
}
