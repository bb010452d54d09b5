// Package integration drives the screening pipeline end to end against real
// files on disk.  Unlike the package unit tests, these tests wire the
// production SDF reader, dataset loader, report writer and screening service
// together the same way the CLI does.  Everything runs under t.TempDir();
// no external services are involved.
package integration

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/crystalytics/fragscreen/internal/application/screening"
	"github.com/crystalytics/fragscreen/internal/config"
	"github.com/crystalytics/fragscreen/internal/domain/fragment"
	"github.com/crystalytics/fragscreen/internal/domain/structure"
	"github.com/crystalytics/fragscreen/internal/infrastructure/chemio/sdf"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/logging"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/prometheus"
	"github.com/crystalytics/fragscreen/internal/infrastructure/report"
	"github.com/crystalytics/fragscreen/internal/infrastructure/storage/csvstore"
	"github.com/crystalytics/fragscreen/internal/infrastructure/storage/source"
	"github.com/crystalytics/fragscreen/internal/intelligence/shapefp"
)

const defaultTestTimeout = 2 * time.Minute

// TestEnvironment bundles what every pipeline test needs: a bounded context,
// a scratch directory and a quiet logger.
type TestEnvironment struct {
	Ctx    context.Context
	Dir    string
	Logger logging.Logger
}

// SetupTestEnvironment prepares a fresh environment for one test.  The
// context is cancelled automatically when the test finishes.
func SetupTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	t.Cleanup(cancel)

	return &TestEnvironment{
		Ctx:    ctx,
		Dir:    t.TempDir(),
		Logger: logging.NewNopLogger(),
	}
}

// ---------------------------------------------------------------------------
// Target fixtures
// ---------------------------------------------------------------------------

// tetrahedralShell places four atoms at equal distance around the origin.
var tetrahedralShell = [][3]float64{
	{0.63, 0.63, 0.63},
	{0.63, -0.63, -0.63},
	{-0.63, 0.63, -0.63},
	{-0.63, -0.63, 0.63},
}

// squarePlanarShell places four atoms at exactly 2 Å from the origin.  The
// round coordinates survive molfile formatting unchanged, so distances stay
// exact through the write-read round trip.
var squarePlanarShell = [][3]float64{
	{2, 0, 0},
	{-2, 0, 0},
	{0, 2, 0},
	{0, -2, 0},
}

// methaneEntry builds a five-atom CH4 target: C at the origin bonded to
// four H.
func methaneEntry(id string) *structure.Molecule {
	m := structure.NewMolecule(id)
	m.AddAtom(structure.Atom{Symbol: "C"})
	for _, c := range tetrahedralShell {
		m.AddAtom(structure.Atom{Symbol: "H", Coord: structure.Vec3{X: c[0], Y: c[1], Z: c[2]}})
	}
	for i := 1; i <= 4; i++ {
		_ = m.AddBond(structure.Bond{A1: 0, A2: i, Order: structure.BondSingle})
	}
	return m
}

// copperComplexEntry builds a two-component entry: a square planar CuN4
// centre plus a free water molecule.  The copper component takes the
// organometallic, heaviest and largest votes, so screening works on it and
// the water is discarded.
func copperComplexEntry(id string) *structure.Molecule {
	m := structure.NewMolecule(id)
	m.AddAtom(structure.Atom{Symbol: "Cu"})
	for i, c := range squarePlanarShell {
		m.AddAtom(structure.Atom{Symbol: "N", Coord: structure.Vec3{X: c[0], Y: c[1], Z: c[2]}})
		_ = m.AddBond(structure.Bond{A1: 0, A2: i + 1, Order: structure.BondSingle})
	}
	o := m.AddAtom(structure.Atom{Symbol: "O", Coord: structure.Vec3{X: 8, Y: 8, Z: 8}})
	h1 := m.AddAtom(structure.Atom{Symbol: "H", Coord: structure.Vec3{X: 8.96, Y: 8, Z: 8}})
	h2 := m.AddAtom(structure.Atom{Symbol: "H", Coord: structure.Vec3{X: 7.76, Y: 8.59, Z: 8}})
	_ = m.AddBond(structure.Bond{A1: o, A2: h1, Order: structure.BondSingle})
	_ = m.AddBond(structure.Bond{A1: o, A2: h2, Order: structure.BondSingle})
	return m
}

// waterEntry is a single three-atom component, too small for any component
// of interest to qualify.
func waterEntry(id string) *structure.Molecule {
	m := structure.NewMolecule(id)
	o := m.AddAtom(structure.Atom{Symbol: "O"})
	h1 := m.AddAtom(structure.Atom{Symbol: "H", Coord: structure.Vec3{X: 0.96}})
	h2 := m.AddAtom(structure.Atom{Symbol: "H", Coord: structure.Vec3{X: -0.24, Y: 0.93}})
	_ = m.AddBond(structure.Bond{A1: o, A2: h1, Order: structure.BondSingle})
	_ = m.AddBond(structure.Bond{A1: o, A2: h2, Order: structure.BondSingle})
	return m
}

// writeTargets encodes the entries into one SDF document at path.
func writeTargets(t *testing.T, path string, mols ...*structure.Molecule) {
	t.Helper()
	var buf bytes.Buffer
	for _, m := range mols {
		block, err := sdf.Encode(m)
		if err != nil {
			t.Fatalf("encode target %s: %v", m.Identifier, err)
		}
		buf.WriteString(block)
		buf.WriteString("$$$$\n")
	}
	write(t, path, buf.Bytes())
}

// loadTargets reads the targets back through the production reader, so the
// fixtures see the same coordinate rounding as a real run.
func loadTargets(t *testing.T, env *TestEnvironment, path string) []*structure.Molecule {
	t.Helper()
	rc, err := source.NewFileOpener().Open(env.Ctx, path)
	if err != nil {
		t.Fatalf("open targets file: %v", err)
	}
	defer rc.Close()

	var targets []*structure.Molecule
	r := sdf.NewReader(rc)
	for {
		entry, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read target entry: %v", err)
		}
		targets = append(targets, entry.Molecule)
	}
	return targets
}

// ---------------------------------------------------------------------------
// Population fixtures
// ---------------------------------------------------------------------------

// record runs a candidate fragment through the production record builder, so
// dataset rows are consistent with what the live pipeline computes.
func record(t *testing.T, m *structure.Molecule) *fragment.Record {
	t.Helper()
	b := fragment.NewBuilder(
		fragment.EncoderFunc(sdf.Encode),
		fragment.FingerprinterFunc(shapefp.Fingerprint))
	rec, err := b.Build(m)
	if err != nil {
		t.Fatalf("build candidate record %s: %v", m.Identifier, err)
	}
	return rec
}

// carbonCandidate reproduces the methane carbon fragment with its H shell
// scaled by f.  f = 1 is geometrically identical to the target fragment.
func carbonCandidate(t *testing.T, id string, f float64) *fragment.Record {
	m := structure.NewMolecule(id)
	m.AddAtom(structure.Atom{Symbol: "C"})
	for _, c := range tetrahedralShell {
		m.AddAtom(structure.Atom{Symbol: "H", Coord: structure.Vec3{X: c[0] * f, Y: c[1] * f, Z: c[2] * f}})
	}
	return record(t, m)
}

// copperCandidate reproduces the CuN4 fragment of the copper complex.
func copperCandidate(t *testing.T, id string) *fragment.Record {
	m := structure.NewMolecule(id)
	m.AddAtom(structure.Atom{Symbol: "Cu"})
	for _, c := range squarePlanarShell {
		m.AddAtom(structure.Atom{Symbol: "N", Coord: structure.Vec3{X: c[0], Y: c[1], Z: c[2]}})
	}
	return record(t, m)
}

// nitrogenCandidate is a two-atom N-Cu fragment with the given separation.
func nitrogenCandidate(t *testing.T, id string, dist float64) *fragment.Record {
	m := structure.NewMolecule(id)
	m.AddAtom(structure.Atom{Symbol: "N", Coord: structure.Vec3{X: dist}})
	m.AddAtom(structure.Atom{Symbol: "Cu"})
	return record(t, m)
}

// decoyCandidate has a signature no fixture target shares, so the index scan
// must never select its row.
func decoyCandidate(t *testing.T, id string) *fragment.Record {
	m := structure.NewMolecule(id)
	m.AddAtom(structure.Atom{Symbol: "C"})
	m.AddAtom(structure.Atom{Symbol: "H", Coord: structure.Vec3{X: 1.09}})
	m.AddAtom(structure.Atom{Symbol: "H", Coord: structure.Vec3{X: -1.09}})
	return record(t, m)
}

// fingerprintColumn renders a fingerprint in the dataset's bracketed vector
// form.
func fingerprintColumn(fp []float64) string {
	parts := make([]string, len(fp))
	for i, v := range fp {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// datasetCSV renders dataset rows in order, one per record.
func datasetCSV(t *testing.T, ids []string, recs []*fragment.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"identifier", "formula", "fp", "sdf", "n_atoms"})
	for i, rec := range recs {
		_ = w.Write([]string{
			ids[i],
			rec.Signature.String(),
			fingerprintColumn(rec.Fingerprint),
			rec.SDF,
			strconv.Itoa(rec.AtomCount),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("render dataset csv: %v", err)
	}
	return buf.Bytes()
}

// indexCSV builds the sparse row index for a rendered dataset.
func indexCSV(t *testing.T, env *TestEnvironment, dataset []byte, chunkSize int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := csvstore.BuildIndex(env.Ctx, bytes.NewReader(dataset), &buf, chunkSize, env.Logger); err != nil {
		t.Fatalf("build index: %v", err)
	}
	return buf.Bytes()
}

func write(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// writeGzipped writes data gzip-compressed; path should carry a .gz suffix.
func writeGzipped(t *testing.T, path string, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("compress %s: %v", path, err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("finish %s: %v", path, err)
	}
	return write(t, path, buf.Bytes())
}

// ---------------------------------------------------------------------------
// Pipeline assembly
// ---------------------------------------------------------------------------

// pipelineConfig returns a config tuned for the fixtures: small chunks, two
// workers, reports under the scratch directory.
func pipelineConfig(env *TestEnvironment, chunkSize int) *config.Config {
	cfg := config.NewDefault()
	cfg.Dataset.ChunkSize = chunkSize
	cfg.Screening.Workers = 2
	cfg.Output.Dir = filepath.Join(env.Dir, "results")
	return cfg
}

// stageInputs writes dataset, index and population files under the scratch
// directory and returns the sources to screen against.  With gz set every
// input is gzip-compressed and named accordingly.
func stageInputs(t *testing.T, env *TestEnvironment, cfg *config.Config, dataset []byte, population string, gz bool) csvstore.Sources {
	t.Helper()
	index := indexCSV(t, env, dataset, cfg.Dataset.ChunkSize)

	put := write
	suffix := ""
	if gz {
		put = writeGzipped
		suffix = ".gz"
	}
	return csvstore.Sources{
		Dataset:    put(t, filepath.Join(env.Dir, "frags.csv"+suffix), dataset),
		Index:      put(t, filepath.Join(env.Dir, "frags_index.csv"+suffix), index),
		Population: put(t, filepath.Join(env.Dir, "population.csv"+suffix), []byte(population)),
	}
}

// newPipeline wires the production loader, report writer and screening
// service, the same composition the screen command performs.
func newPipeline(t *testing.T, env *TestEnvironment, cfg *config.Config, metrics *prometheus.PipelineMetrics) *screening.Service {
	t.Helper()
	loader, err := csvstore.NewLoader(source.NewFileOpener(), cfg.Dataset.ChunkSize, env.Logger)
	if err != nil {
		t.Fatalf("construct loader: %v", err)
	}
	reports, err := report.NewWriter(cfg.Output.Dir, env.Logger)
	if err != nil {
		t.Fatalf("construct report writer: %v", err)
	}
	svc, err := screening.NewService(cfg.Screening, cfg.Output, screening.Deps{
		Loader:  loader,
		Reports: reports,
		Logger:  env.Logger,
		Metrics: metrics,
	})
	if err != nil {
		t.Fatalf("construct screening service: %v", err)
	}
	return svc
}

// readOutput loads a report file from the run's output directory.
func readOutput(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, name))
	if err != nil {
		t.Fatalf("read report %s: %v", name, err)
	}
	return string(data)
}
