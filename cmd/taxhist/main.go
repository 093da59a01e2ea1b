package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	chartadapter "github.com/seqlab/taxhist/internal/adapter/chart"
	"github.com/seqlab/taxhist/internal/adapter/mcp"
	"github.com/seqlab/taxhist/internal/adapter/postgres"
	"github.com/seqlab/taxhist/internal/adapter/tabfile"
	"github.com/seqlab/taxhist/internal/audit"
	"github.com/seqlab/taxhist/internal/config"
	"github.com/seqlab/taxhist/internal/core/domain"
	"github.com/seqlab/taxhist/internal/core/port"
	"github.com/seqlab/taxhist/internal/core/service"
	"github.com/seqlab/taxhist/internal/telemetry"
)

var version = "dev"

// flags shared by all subcommands; resolved into config.Overrides.
type rootFlags struct {
	hierarchy   string
	source      string
	inputDir    string
	manifest    string
	metadata    string
	databaseURL string
	outputDir   string
	logLevel    string
	logFormat   string
	chartWidth  int
	chartHeight int
	otelEnabled bool
	auditLog    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "taxhist",
		Short:         "Taxonomic abundance histograms across metagenomic samples",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.hierarchy, "hierarchy", "", "comma-separated taxonomy levels, coarsest first")
	pf.StringVar(&flags.source, "source", "", `sample source: "files" or "postgres"`)
	pf.StringVar(&flags.inputDir, "input-dir", "", "directory of per-sample classification TSVs")
	pf.StringVar(&flags.manifest, "manifest", "", "YAML manifest listing samples explicitly")
	pf.StringVar(&flags.metadata, "metadata", "", "per-sample metadata TSV")
	pf.StringVar(&flags.databaseURL, "database-url", "", "PostgreSQL connection string")
	pf.StringVar(&flags.outputDir, "output-dir", "", "directory for result files")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", `log format: "text" or "json"`)
	pf.IntVar(&flags.chartWidth, "chart-width", 0, "chart canvas width in pixels")
	pf.IntVar(&flags.chartHeight, "chart-height", 0, "chart canvas height in pixels")
	pf.BoolVar(&flags.otelEnabled, "otel", false, "enable OpenTelemetry tracing and metrics")
	pf.StringVar(&flags.auditLog, "audit-log", "", "path to NDJSON audit log file")

	root.AddCommand(newComputeCmd(flags))
	root.AddCommand(newMergeCmd(flags))
	root.AddCommand(newPlotCmd(flags))
	root.AddCommand(newMCPCmd(flags))

	return root
}

// loadConfig resolves env vars (including a .env file when present) and CLI
// flags into the final configuration.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	_ = godotenv.Load() // missing .env is fine

	o := config.Overrides{
		OTelEnabled: flags.otelEnabled,
		AuditLog:    flags.auditLog,
	}
	set := func(name string, dst **string, v *string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("hierarchy", &o.Hierarchy, &flags.hierarchy)
	set("source", &o.Source, &flags.source)
	set("input-dir", &o.InputDir, &flags.inputDir)
	set("manifest", &o.ManifestFile, &flags.manifest)
	set("metadata", &o.MetadataFile, &flags.metadata)
	set("database-url", &o.DatabaseURL, &flags.databaseURL)
	set("output-dir", &o.OutputDir, &flags.outputDir)
	set("log-level", &o.LogLevel, &flags.logLevel)
	set("log-format", &o.LogFormat, &flags.logFormat)
	if cmd.Flags().Changed("chart-width") {
		o.ChartWidth = &flags.chartWidth
	}
	if cmd.Flags().Changed("chart-height") {
		o.ChartHeight = &flags.chartHeight
	}

	return config.Load(o)
}

// newLogger builds the process logger. Logs go to stderr — stdout is
// reserved for the MCP stdio transport.
func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: cfg.LogLevel,
	}))
}

// runtime bundles everything a subcommand needs, plus a cleanup chain.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	svc     *service.HistogramService
	cleanup []func()
}

func (r *runtime) close() {
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		r.cleanup[i]()
	}
}

// setup wires configuration, logging, telemetry, the sample source, the
// renderer, and the audit sink into a HistogramService.
func setup(ctx context.Context, cmd *cobra.Command, flags *rootFlags) (*runtime, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)
	rt := &runtime{cfg: cfg, logger: logger}

	logger.Info("starting taxhist",
		slog.String("version", version),
		slog.String("source", cfg.Source),
		slog.Any("hierarchy", cfg.Hierarchy),
	)

	tracer := telemetry.NoopTracer()
	inst := telemetry.NoopInstruments()
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "taxhist", version)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		rt.cleanup = append(rt.cleanup, func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				logger.Warn("telemetry shutdown", slog.Any("error", err))
			}
		})
		tracer = otel.Tracer("github.com/seqlab/taxhist")
		inst = telemetry.NewInstruments()
	}

	var auditor port.OpAuditor = port.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		rt.cleanup = append(rt.cleanup, func() { _ = fa.Close() })
		auditor = fa
	}

	hierarchy := domain.Hierarchy(cfg.Hierarchy)
	source, err := buildSource(ctx, cfg, rt, &hierarchy)
	if err != nil {
		rt.close()
		return nil, err
	}
	cfg.Hierarchy = hierarchy

	renderer := chartadapter.NewStackedBarRenderer(cfg.ChartWidth, cfg.ChartHeight)

	rt.svc = service.NewHistogramService(hierarchy, source, renderer, auditor, logger, tracer, inst)
	return rt, nil
}

// buildSource selects the configured sample source. A manifest may override
// the hierarchy, so the hierarchy is passed by pointer.
func buildSource(ctx context.Context, cfg *config.Config, rt *runtime, hierarchy *domain.Hierarchy) (port.SampleSource, error) {
	switch cfg.Source {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		rt.cleanup = append(rt.cleanup, pool.Close)
		rt.logger.Info("database pool connected", slog.String("db.system", "postgresql"))
		return postgres.NewSource(pool, *hierarchy, cfg.ClassificationsTable, cfg.MetadataTable), nil

	default: // "files", validated by config
		if cfg.ManifestFile == "" {
			return tabfile.NewDirSource(cfg.InputDir, cfg.MetadataFile), nil
		}
		m, err := config.LoadManifest(cfg.ManifestFile)
		if err != nil {
			return nil, fmt.Errorf("loading manifest: %w", err)
		}
		if len(m.Hierarchy) > 0 {
			h := domain.Hierarchy(m.Hierarchy)
			if err := h.Validate(); err != nil {
				return nil, fmt.Errorf("manifest hierarchy: %w", err)
			}
			*hierarchy = h
		}
		refs := make([]tabfile.SampleRef, len(m.Samples))
		base := filepath.Dir(cfg.ManifestFile)
		for i, s := range m.Samples {
			refs[i] = tabfile.SampleRef{ID: s.ID, Path: resolvePath(base, s.Path)}
		}
		metadataPath := cfg.MetadataFile
		if m.Metadata != "" {
			metadataPath = resolvePath(base, m.Metadata)
		}
		return tabfile.NewManifestSource(refs, metadataPath), nil
	}
}

// resolvePath makes manifest-relative paths absolute against the manifest's
// own directory.
func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func histFileName(sample, level string) string {
	return fmt.Sprintf("%s.%s.tsv", sample, level)
}

func mergedFileName(level string) string {
	return fmt.Sprintf("merged.%s.tsv", level)
}

func newComputeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "compute",
		Short: "Compute per-sample abundance histograms and write them as TSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			rt, err := setup(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer rt.close()

			hc, err := rt.svc.ComputeAll(ctx)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(rt.cfg.OutputDir, 0755); err != nil {
				return fmt.Errorf("creating output dir: %w", err)
			}
			for _, id := range hc.IDs() {
				set, _ := hc.Get(id)
				for _, level := range rt.cfg.Hierarchy {
					path := filepath.Join(rt.cfg.OutputDir, histFileName(id, level))
					if err := tabfile.WriteFrameFile(path, set[level]); err != nil {
						return fmt.Errorf("writing %s: %w", path, err)
					}
				}
			}
			rt.logger.Info("histograms written",
				slog.Int("samples", hc.Len()),
				slog.String("dir", rt.cfg.OutputDir),
			)
			return nil
		},
	}
}

func newMergeCmd(flags *rootFlags) *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge histograms across samples and write the result as TSV",
		Long: "Merge per-sample histograms into one table per taxonomy level " +
			"(or a single level with --level), enriched with sample metadata when configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			rt, err := setup(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := os.MkdirAll(rt.cfg.OutputDir, 0755); err != nil {
				return fmt.Errorf("creating output dir: %w", err)
			}

			if level != "" {
				merged, err := rt.svc.MergeLevel(ctx, level)
				if err != nil {
					return err
				}
				path := filepath.Join(rt.cfg.OutputDir, mergedFileName(level))
				if err := tabfile.WriteFrameFile(path, merged); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
				rt.logger.Info("merged table written", slog.String("path", path))
				return nil
			}

			byLevel, err := rt.svc.MergeAllLevels(ctx)
			if err != nil {
				return err
			}
			for _, lvl := range rt.cfg.Hierarchy {
				path := filepath.Join(rt.cfg.OutputDir, mergedFileName(lvl))
				if err := tabfile.WriteFrameFile(path, byLevel[lvl]); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
			}
			rt.logger.Info("merged tables written",
				slog.Int("levels", len(byLevel)),
				slog.String("dir", rt.cfg.OutputDir),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "merge a single taxonomy level instead of all")
	return cmd
}

func newPlotCmd(flags *rootFlags) *cobra.Command {
	var level, out string

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render merged percentages at one level as a stacked bar chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			rt, err := setup(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer rt.close()

			if out == "" {
				out = filepath.Join(rt.cfg.OutputDir, level+".png")
				if err := os.MkdirAll(rt.cfg.OutputDir, 0755); err != nil {
					return fmt.Errorf("creating output dir: %w", err)
				}
			}
			return rt.svc.RenderChart(ctx, level, out)
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "taxonomy level to chart")
	cmd.Flags().StringVar(&out, "out", "", "chart file path (.png or .svg); defaults to <output-dir>/<level>.png")
	_ = cmd.MarkFlagRequired("level")
	return cmd
}

func newMCPCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the histogram engine as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			rt, err := setup(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer rt.close()

			var tracer = telemetry.NoopTracer()
			var inst port.Instrumentation = telemetry.NoopInstruments()
			if rt.cfg.OTelEnabled {
				tracer = otel.Tracer("github.com/seqlab/taxhist")
				inst = telemetry.NewInstruments()
			}

			mcpServer := mcp.NewServer(version, rt.svc, rt.logger, tracer, inst)
			stdioServer := mcpserver.NewStdioServer(mcpServer)

			rt.logger.Info("serving MCP over stdio")
			if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
				return fmt.Errorf("stdio server: %w", err)
			}

			rt.logger.Info("shutdown complete")
			return nil
		},
	}
}
