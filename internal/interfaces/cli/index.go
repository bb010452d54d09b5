package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystalytics/fragscreen/internal/infrastructure/storage/csvstore"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// Index command flags.
var (
	indexDataset   string
	indexOut       string
	indexChunkSize int
)

// newIndexCmd creates the index subcommand.  The row index maps entry ids to
// chunk positions so screening runs only decompress the chunks that hold
// selected population fragments.
func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the row index for a fragment dataset",
		Long: "Index streams a fragment dataset CSV once and writes one index line per\n" +
			"usable row (chunk_id, row_in_chunk, entry_id, formula).  The dataset is\n" +
			"read through the configured source, so both local files and object\n" +
			"storage work; the index is always written locally.",
		Example: `  fragscreen index --dataset frags.csv.gz --out frags_index.csv
  fragscreen index --dataset frags.csv --out frags_index.csv --chunk-size 50000`,
		RunE: runIndex,
	}

	f := cmd.Flags()
	f.StringVar(&indexDataset, "dataset", "", "fragment dataset CSV to index (required)")
	f.StringVarP(&indexOut, "out", "o", "", "index file to write (required)")
	f.IntVar(&indexChunkSize, "chunk-size", 0, "rows per chunk, overrides dataset.chunk_size")

	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg, logger := cliCtx.Config, cliCtx.Logger
	ctx := cmd.Context()

	if indexDataset == "" {
		return errors.New(errors.ErrCodeInvalidInput, "--dataset is required")
	}
	if indexOut == "" {
		return errors.New(errors.ErrCodeInvalidInput, "--out is required")
	}
	chunkSize := cfg.Dataset.ChunkSize
	if indexChunkSize > 0 {
		chunkSize = indexChunkSize
	}

	opener, err := newOpener(cfg, logger)
	if err != nil {
		return err
	}
	rc, err := opener.Open(ctx, indexDataset)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatasetOpenFailed, "cannot open fragment dataset").
			WithDetail(indexDataset)
	}
	defer rc.Close()

	out, err := os.Create(indexOut)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexWriteFailed, "cannot create index file").
			WithDetail(indexOut)
	}

	stats, err := csvstore.BuildIndex(ctx, rc, out, chunkSize, logger)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, errors.ErrCodeIndexWriteFailed, "cannot finalize index file").
			WithDetail(indexOut)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Indexed %d of %d dataset row(s) into %d chunk(s)\n", stats.Indexed, stats.Rows, stats.Chunks)
	if stats.Skipped > 0 {
		fmt.Fprintf(w, "  skipped %d malformed row(s)\n", stats.Skipped)
	}
	fmt.Fprintf(w, "  wrote %s\n", indexOut)
	return nil
}
