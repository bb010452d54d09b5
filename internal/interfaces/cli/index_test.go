package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crystalytics/fragscreen/pkg/errors"
)

func TestNewIndexCmd_Flags(t *testing.T) {
	cmd := newIndexCmd()
	f := cmd.Flags()

	if f.Lookup("dataset") == nil {
		t.Error("dataset flag should exist")
	}
	outFlag := f.Lookup("out")
	if outFlag == nil {
		t.Fatal("out flag should exist")
	}
	if outFlag.Shorthand != "o" {
		t.Errorf("out shorthand should be 'o', got %q", outFlag.Shorthand)
	}
	if f.Lookup("chunk-size") == nil {
		t.Error("chunk-size flag should exist")
	}
}

func TestIndex_RequiresFlags(t *testing.T) {
	cfgPath := writeConfig(t, quietConfig)

	_, err := execute(t, "index", "--config", cfgPath)
	if err == nil {
		t.Fatal("expected error when --dataset is missing")
	}
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected ErrCodeInvalidInput, got %v", err)
	}

	_, err = execute(t, "index", "--config", cfgPath, "--dataset", "frags.csv")
	if err == nil {
		t.Fatal("expected error when --out is missing")
	}
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected ErrCodeInvalidInput, got %v", err)
	}
}

func TestIndex_MissingDataset(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, quietConfig)

	_, err := execute(t, "index",
		"--config", cfgPath,
		"--dataset", filepath.Join(dir, "absent.csv"),
		"--out", filepath.Join(dir, "index.csv"))
	if err == nil {
		t.Fatal("expected error for missing dataset")
	}
	if !errors.IsCode(err, errors.ErrCodeDatasetOpenFailed) {
		t.Errorf("expected ErrCodeDatasetOpenFailed, got %v", err)
	}
	if errors.ExitStatusForCode(errors.GetCode(err)) != errors.ExitNoSource {
		t.Error("missing dataset should map to the no-source exit status")
	}
}

func TestIndex_BuildsAndReportsStats(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, quietConfig)
	datasetPath := filepath.Join(dir, "frags.csv")
	indexPath := filepath.Join(dir, "frags_index.csv")

	// Row three has no identifier, row four a malformed formula; both keep
	// their row positions but produce no index line.
	dataset := strings.Join([]string{
		`identifier,formula`,
		`aaa,"('C', 5, 'C1H4')"`,
		`bbb,"('C', 5, 'C1H4')"`,
		`,"('C', 5, 'C1H4')"`,
		`ccc,not-a-signature`,
		`ddd,"('H', 2, 'C1H1')"`,
	}, "\n") + "\n"
	if err := os.WriteFile(datasetPath, []byte(dataset), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	out, err := execute(t, "index",
		"--config", cfgPath,
		"--dataset", datasetPath,
		"--out", indexPath,
		"--chunk-size", "2")
	if err != nil {
		t.Fatalf("index command failed: %v", err)
	}
	if !strings.Contains(out, "Indexed 3 of 5 dataset row(s) into 3 chunk(s)") {
		t.Errorf("unexpected stats line: %q", out)
	}
	if !strings.Contains(out, "skipped 2 malformed row(s)") {
		t.Errorf("expected skip notice, got %q", out)
	}

	raw, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	content := string(raw)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus three index rows, got %d lines:\n%s", len(lines), content)
	}
	if lines[0] != "chunk_id,row_in_chunk,entry_id,formula" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	// Identifiers are canonicalised, positions are chunk-local.
	if !strings.HasPrefix(lines[1], "0,0,AAA,") {
		t.Errorf("unexpected first index row: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "0,1,BBB,") {
		t.Errorf("unexpected second index row: %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "2,0,DDD,") {
		t.Errorf("unexpected third index row: %q", lines[3])
	}
}
