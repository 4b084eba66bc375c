package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"atlas-advisor-backend/internal/catalog"
	"atlas-advisor-backend/internal/envelope"
	"atlas-advisor-backend/internal/pipeline"
	"atlas-advisor-backend/internal/server"
	"atlas-advisor-backend/internal/types"
	"atlas-advisor-backend/internal/validation"
)

var (
	timeoutFlag    time.Duration
	portFlag       string
	categoryFlag   string
	limitFlag      int
	offsetFlag     int
	sortFlag       string
	selectedFlag   []string
	shutdownPeriod = 15 * time.Second

	rootCmd = &cobra.Command{
		Use:          "atlas-advisor",
		Short:        "Chat advisor and Living Atlas dataset search API",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	recommendCmd = &cobra.Command{
		Use:   "recommend [message]",
		Short: "Print the advisor's reply for a message as a JSON envelope",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRecommend,
	}

	searchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Search the dataset catalog and print the JSON envelope",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	importCmd = &cobra.Command{
		Use:   "import-datasets",
		Short: "Migrate the Postgres mirror and load the embedded dataset catalog into it",
		Args:  cobra.NoArgs,
		RunE:  runImport,
	}
)

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 0, "upstream call timeout (overrides UPSTREAM_TIMEOUT)")
	serveCmd.Flags().StringVar(&portFlag, "port", "", "listen port (overrides PORT)")
	recommendCmd.Flags().StringSliceVar(&selectedFlag, "dataset", nil, "selected dataset id (repeatable)")
	searchCmd.Flags().StringVar(&categoryFlag, "category", "", "restrict results to one category")
	searchCmd.Flags().IntVar(&limitFlag, "limit", validation.DefaultLimit, "page size")
	searchCmd.Flags().IntVar(&offsetFlag, "offset", 0, "results to skip")
	searchCmd.Flags().StringVar(&sortFlag, "sort", validation.SortRelevance, "relevance, title, modified or popularity")

	rootCmd.AddCommand(serveCmd, recommendCmd, searchCmd, importCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if portFlag != "" {
		cfg.Port = portFlag
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := server.BuildDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build providers: %w", err)
	}
	defer cleanup()
	s, err := server.NewServer(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 10*time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("atlas advisor listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runRecommend(cmd *cobra.Command, args []string) error {
	deps, cleanup, err := server.BuildDeps(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	req := types.ChatRequest{Message: strings.Join(args, " ")}
	if len(selectedFlag) > 0 {
		req.Context = &types.ChatContext{SelectedDatasets: selectedFlag}
	}
	resp := pipeline.Run[types.ChatRequest, types.ChatInput, types.ChatReply](
		cmd.Context(), pipeline.Pipeline{Sink: deps.Sink, Logger: logger}, "chat", req, validation.ValidateChat, deps.Chat)
	return printEnvelope(cmd.OutOrStdout(), resp)
}

func runSearch(cmd *cobra.Command, args []string) error {
	deps, cleanup, err := server.BuildDeps(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	req := types.SearchRequest{
		Q:        strings.Join(args, " "),
		Category: categoryFlag,
		Limit:    strconv.Itoa(limitFlag),
		Offset:   strconv.Itoa(offsetFlag),
		SortBy:   sortFlag,
	}
	resp := pipeline.Run[types.SearchRequest, types.SearchInput, types.SearchResponse](
		cmd.Context(), pipeline.Pipeline{Sink: deps.Sink, Logger: logger}, "search", req, validation.ValidateSearch, deps.Search)
	return printEnvelope(cmd.OutOrStdout(), resp)
}

func runImport(cmd *cobra.Command, _ []string) error {
	cat, err := catalog.Load()
	if err != nil {
		return err
	}
	conn, err := server.OpenCatalogDB(cmd.Context(), cfg.DatabaseURL, cat)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("datasets imported", "count", len(cat.Datasets()))
	return nil
}

// printEnvelope writes resp as indented JSON. A failure envelope is still
// printed, and the command exits non-zero.
func printEnvelope(w io.Writer, resp envelope.Response) error {
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(b))
	if f, ok := resp.(envelope.Failure); ok {
		return fmt.Errorf("request failed: %s", f.Error.Code)
	}
	return nil
}
