package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/cli"
	"github.com/hyperjump/tenderwise/internal/config"
	"github.com/hyperjump/tenderwise/internal/extract"
	"github.com/hyperjump/tenderwise/internal/indexer"
	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/internal/server"
	"github.com/hyperjump/tenderwise/internal/watcher"
)

// InterfaceSourceCLI is recorded on queries issued from the command line.
const InterfaceSourceCLI = "CLI"

func newServerCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server, ingest queue and inbox watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Watch.Enabled && cfg.Watch.Directory != "" {
				inbox := watcher.NewWatcher(cfg.Watch.Directory, cfg.Ingest.Extensions,
					func(path, tender string) error {
						_, err := components.Queue.Submit(path, tender)
						return err
					},
					watcher.WithLogger(logger.Named("watcher")),
				)
				if err := inbox.Start(ctx); err != nil {
					return fmt.Errorf("failed to start watcher: %w", err)
				}
				defer inbox.Stop()
				logger.Info("watching inbox", zap.String("directory", inbox.Root()))
			}

			srv := server.NewServer(&cfg.Server, components.Controller,
				server.WithIngestQueue(components.Queue, cfg.Storage.UploadDir),
				server.WithUploadFilter(acceptsUpload(cfg)),
				server.WithTenders(components.Store),
				server.WithClauses(components.Graph),
				server.WithStatus(components.Status),
				server.WithRequestTimeout(cfg.Timeouts.Query+10*time.Second),
				server.WithLogger(logger.Named("server")),
			)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
			}
			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}

func newIngestCmd(g *globalFlags) *cobra.Command {
	var tender, output string
	cmd := &cobra.Command{
		Use:   "ingest <file-or-directory>",
		Short: "Ingest a document (or every supported file in a directory) into a tender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx := cmd.Context()
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			var results []*indexer.IngestResult
			if info.IsDir() {
				results, err = components.Indexer.IngestDirectory(ctx, path, tender)
			} else {
				if ext := filepath.Ext(path); !acceptsUpload(cfg)(ext) {
					return fmt.Errorf("%w: extension %q is not enabled (supported: %s)",
						models.ErrUnsupportedInput, ext, strings.Join(extract.SupportedExtensions(), ", "))
				}
				var res *indexer.IngestResult
				if res, err = components.Indexer.IngestFile(ctx, path, tender); err == nil {
					results = append(results, res)
				}
			}
			if werr := cli.WriteIngestResults(cmd.OutOrStdout(), results, format); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&tender, "tender", "", "tender name (created when it does not exist)")
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("tender")
	return cmd
}

func newQueryCmd(g *globalFlags) *cobra.Command {
	var tender, strategyName, output, serverURL string
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question about a tender",
		Long: `Ask a question about a tender. The question is all remaining arguments joined by
spaces. The tender may be given by ID or by name.

Examples:
  tenderwise query --tender "Hospital Extension" What does Clause 5.1 say?
  tenderwise query --tender "Hospital Extension" --strategy hybrid fire rating of doors
  tenderwise query --tender T1 --server http://localhost:8080 --output json drainage`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			strategy, err := models.ParseStrategy(strategyName)
			if err != nil {
				return err
			}
			req := models.QueryRequest{
				TenderID:        tender,
				Query:           buildQuery(args),
				InterfaceSource: InterfaceSourceCLI,
				Strategy:        strategy,
			}

			var resp models.QueryResponse
			if serverURL != "" {
				// the server holds the store locks; go through its API
				resp, err = queryViaHTTP(cmd.Context(), serverURL, req, strategyName)
				if err != nil {
					return err
				}
			} else {
				cfg, logger, err := g.setup()
				if err != nil {
					return err
				}
				defer logger.Sync()
				components, err := initializeComponents(cfg, logger)
				if err != nil {
					return err
				}
				defer components.Close()
				resp = components.Controller.Handle(cmd.Context(), req)
			}
			if err := cli.WriteResponse(cmd.OutOrStdout(), resp, format); err != nil {
				return err
			}
			if resp.Status != models.StatusAnswered {
				return fmt.Errorf("query %s", strings.ToLower(string(resp.Status)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tender, "tender", "", "tender ID or name")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "override the selected strategy: exact_lookup, vector or hybrid")
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
	cmd.Flags().StringVar(&serverURL, "server", "", "server URL; when set the query is sent to a running server")
	return cmd
}

// buildQuery joins positional args so multi-word questions work with or without quotes.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func queryViaHTTP(ctx context.Context, baseURL string, req models.QueryRequest, strategy string) (models.QueryResponse, error) {
	var resp models.QueryResponse
	body, err := json.Marshal(map[string]string{
		"tender_id": req.TenderID,
		"query":     req.Query,
		"strategy":  strategy,
	})
	if err != nil {
		return resp, err
	}
	url := strings.TrimRight(baseURL, "/") + "/api/v1/query"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return resp, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return resp, fmt.Errorf("query server: %w", err)
	}
	defer httpResp.Body.Close()
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("decode server response (status %d): %w", httpResp.StatusCode, err)
	}
	if resp.Status == "" {
		return resp, fmt.Errorf("server returned status %d", httpResp.StatusCode)
	}
	return resp, nil
}

func newReprojectCmd(g *globalFlags) *cobra.Command {
	var tender string
	cmd := &cobra.Command{
		Use:   "reproject",
		Short: "Rewrite a tender's clauses into the graph store and keyword index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			t, err := components.Store.ResolveTender(cmd.Context(), tender)
			if err != nil {
				return err
			}
			n, err := components.Indexer.Reproject(cmd.Context(), t.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Reprojected %d clauses of tender %q\n", n, t.Name)
			if err != nil {
				return err
			}
			nodes, err := components.Graph.ClausesByTender(cmd.Context(), t.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Graph holds %d clauses for this tender\n", len(nodes))
			return nil
		},
	}
	cmd.Flags().StringVar(&tender, "tender", "", "tender ID or name")
	_ = cmd.MarkFlagRequired("tender")
	return cmd
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show corpus, projection and disk usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			st, err := components.Status.Collect(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), st, format)
		},
	}
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
	return cmd
}

func newTendersCmd(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "tenders",
		Short: "List tenders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			tenders, err := components.Store.ListTenders(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteTenders(cmd.OutOrStdout(), tenders, format)
		},
	}
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
	return cmd
}

func newInitCmd(g *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(g.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", g.configPath)
			}
			if err := os.MkdirAll(filepath.Dir(g.configPath), 0o755); err != nil {
				return err
			}
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			if err := config.Save(g.configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", g.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("tenderwise version %s\n", version)
		},
	}
}
