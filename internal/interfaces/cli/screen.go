package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystalytics/fragscreen/internal/application/screening"
	"github.com/crystalytics/fragscreen/internal/config"
	"github.com/crystalytics/fragscreen/internal/domain/structure"
	"github.com/crystalytics/fragscreen/internal/infrastructure/chemio/sdf"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/logging"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/prometheus"
	"github.com/crystalytics/fragscreen/internal/infrastructure/report"
	"github.com/crystalytics/fragscreen/internal/infrastructure/storage/csvstore"
	storageminio "github.com/crystalytics/fragscreen/internal/infrastructure/storage/minio"
	"github.com/crystalytics/fragscreen/internal/infrastructure/storage/source"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// Screen command flags.
var (
	screenTargets    string
	screenDataset    string
	screenIndex      string
	screenPopulation string
	screenOutDir     string
	screenWorkers    int
	screenTopK       int
)

// newScreenCmd creates the screen subcommand, the main entry point of the
// pipeline.
func newScreenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Screen target structures against the fragment population",
		Long: "Screen reads target structures from an SDF file, extracts coordination\n" +
			"fragments from each target's component of interest, and compares them\n" +
			"against the population fragments selected by the population id list.\n" +
			"Per-target match reports are written to the output directory.",
		Example: `  fragscreen screen --targets targets.sdf
  fragscreen screen -t targets.sdf.gz --dataset frags.csv.gz --index frags_index.csv \
      --population population.csv --out results/`,
		RunE: runScreen,
	}

	f := cmd.Flags()
	f.StringVarP(&screenTargets, "targets", "t", "", "SDF file with target structures (required)")
	f.StringVar(&screenDataset, "dataset", "", "fragment dataset CSV, overrides dataset.path")
	f.StringVar(&screenIndex, "index", "", "row index CSV, overrides dataset.index_path")
	f.StringVar(&screenPopulation, "population", "", "population id list, overrides dataset.population_path")
	f.StringVarP(&screenOutDir, "out", "o", "", "report directory, overrides output.dir")
	f.IntVar(&screenWorkers, "workers", 0, "comparison workers, overrides screening.workers")
	f.IntVar(&screenTopK, "top-k", 0, "matches kept per fragment, overrides screening.top_k")

	return cmd
}

func runScreen(cmd *cobra.Command, _ []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg, logger := cliCtx.Config, cliCtx.Logger
	ctx := cmd.Context()

	if screenTargets == "" {
		return errors.New(errors.ErrCodeInvalidInput, "--targets is required")
	}
	applyScreenOverrides(cfg)
	if cfg.Dataset.Path == "" || cfg.Dataset.IndexPath == "" || cfg.Dataset.PopulationPath == "" {
		return errors.New(errors.ErrCodeInvalidInput,
			"dataset, index and population paths must be set via config or --dataset/--index/--population")
	}

	targets, err := readTargets(ctx, logger, screenTargets)
	if err != nil {
		return err
	}

	opener, err := newOpener(cfg, logger)
	if err != nil {
		return err
	}
	loader, err := csvstore.NewLoader(opener, cfg.Dataset.ChunkSize, logger)
	if err != nil {
		return err
	}

	metrics, err := initMetrics(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var reports screening.ReportWriter
	if cfg.Output.WriteSDF || cfg.Output.WriteSummary {
		w, err := report.NewWriter(cfg.Output.Dir, logger)
		if err != nil {
			return err
		}
		reports = w
	}

	svc, err := screening.NewService(cfg.Screening, cfg.Output, screening.Deps{
		Loader:  loader,
		Reports: reports,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	res, err := svc.Run(ctx, &screening.Request{
		Targets: targets,
		Sources: csvstore.Sources{
			Population: cfg.Dataset.PopulationPath,
			Index:      cfg.Dataset.IndexPath,
			Dataset:    cfg.Dataset.Path,
		},
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrCodePopulationEmpty) {
			logger.Warn("population selection is empty", logging.Err(err))
			fmt.Fprintln(cmd.OutOrStdout(), "Population selection is empty; nothing to screen.")
			return nil
		}
		return err
	}

	printRunSummary(cmd, res)
	return nil
}

// applyScreenOverrides folds non-empty flag values into the loaded config so
// the rest of the pipeline sees a single source of truth.
func applyScreenOverrides(cfg *config.Config) {
	if screenDataset != "" {
		cfg.Dataset.Path = screenDataset
	}
	if screenIndex != "" {
		cfg.Dataset.IndexPath = screenIndex
	}
	if screenPopulation != "" {
		cfg.Dataset.PopulationPath = screenPopulation
	}
	if screenOutDir != "" {
		cfg.Output.Dir = screenOutDir
	}
	if screenWorkers > 0 {
		cfg.Screening.Workers = screenWorkers
	}
	if screenTopK > 0 {
		cfg.Screening.TopK = screenTopK
	}
}

// readTargets parses the target structures from an SDF file.  Unreadable
// entries are skipped with a diagnostic; a file with no parsable structure
// at all is a usage error.
func readTargets(ctx context.Context, logger logging.Logger, path string) ([]*structure.Molecule, error) {
	rc, err := source.NewFileOpener().Open(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "cannot open targets file").
			WithDetail(path)
	}
	defer rc.Close()

	var targets []*structure.Molecule
	skipped := 0
	r := sdf.NewReader(rc)
	for i := 0; ; i++ {
		entry, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			logger.Warn("skipping unreadable target entry",
				logging.Int("entry", i),
				logging.Err(err))
			continue
		}
		targets = append(targets, entry.Molecule)
	}
	if len(targets) == 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "no parsable structures in targets file %s", path)
	}

	logger.Info("targets loaded",
		logging.String("path", path),
		logging.Int("count", len(targets)),
		logging.Int("skipped", skipped))
	return targets, nil
}

// newOpener builds the input source selected by dataset.source.
func newOpener(cfg *config.Config, logger logging.Logger) (source.Opener, error) {
	if cfg.Dataset.Source == "s3" {
		return storageminio.NewClient(&storageminio.Config{
			Endpoint:  cfg.Dataset.S3.Endpoint,
			AccessKey: cfg.Dataset.S3.AccessKey,
			SecretKey: cfg.Dataset.S3.SecretKey,
			Bucket:    cfg.Dataset.S3.Bucket,
			Region:    cfg.Dataset.S3.Region,
			UseSSL:    cfg.Dataset.S3.UseSSL,
		}, logger)
	}
	return source.NewFileOpener(), nil
}

// initMetrics wires the pipeline instrumentation.  With metrics disabled the
// pipeline runs against a no-op collector; with a listen address configured
// the /metrics endpoint serves until the command context ends.
func initMetrics(ctx context.Context, cfg *config.Config, logger logging.Logger) (*prometheus.PipelineMetrics, error) {
	if !cfg.Metrics.Enabled {
		return prometheus.NewPipelineMetrics(prometheus.NewNopCollector()), nil
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "metrics collector setup failed")
	}

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := prometheus.ListenAndServe(ctx, cfg.Metrics.Listen, collector, logger); err != nil {
				logger.Warn("metrics endpoint terminated", logging.Err(err))
			}
		}()
	}

	return prometheus.NewPipelineMetrics(collector), nil
}

// printRunSummary writes a short human-readable digest of the run to stdout.
func printRunSummary(cmd *cobra.Command, res *screening.RunResult) {
	s := res.Summary
	if s == nil {
		return
	}
	out := cmd.OutOrStdout()

	skipped := 0
	for _, t := range s.Targets {
		if t.Skipped {
			skipped++
		}
	}

	fmt.Fprintf(out, "Run %s finished in %s\n", s.RunID, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "Targets:     %d screened, %d skipped\n", len(s.Targets)-skipped, skipped)
	fmt.Fprintf(out, "Population:  %d fragment(s) selected, %d record(s) loaded\n", s.PopulationSize, s.RecordsLoaded)
	fmt.Fprintf(out, "Comparisons: %d task(s), %d fragment(s) compared, %d matched\n", s.Comparisons, s.Compared, s.Matched)
	for _, p := range res.Paths {
		fmt.Fprintf(out, "  wrote %s\n", p)
	}
}
