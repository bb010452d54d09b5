package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileOpener_Plain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "population.txt")
	require.NoError(t, os.WriteFile(path, []byte("ABAHIW\nABAKIZ\n"), 0o644))

	rc, err := NewFileOpener().Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "ABAHIW\nABAKIZ\n", string(data))
}

func TestFileOpener_Gzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.csv.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte("identifier,formula\nABAHIW,\"('C', 5, 'C4H1')\"\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	rc, err := NewFileOpener().Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ABAHIW")
}

func TestFileOpener_Missing(t *testing.T) {
	_, err := NewFileOpener().Open(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestMaybeGzip_BadHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.gz")
	require.NoError(t, os.WriteFile(path, []byte("this is not gzip"), 0o644))

	_, err := NewFileOpener().Open(context.Background(), path)
	assert.Error(t, err)
}

func TestMaybeGzip_CaseInsensitiveSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "DATA.GZ")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	rc, err := NewFileOpener().Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
