package dataset_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/qrscale/internal/dataset"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.SetGray(1, 1, color.Gray{Y: 0x80})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func addSample(t *testing.T, root, name, payload string) {
	t.Helper()
	writePNG(t, filepath.Join(root, dataset.ImagesDir, name))
	writeFile(t, filepath.Join(root, dataset.MarkupDir, name+".json"),
		`{"props":{"barcode":{"value":"`+payload+`","module_size":[[3,5],[4,4]]}}}`)
}

func TestLoadOrdersSamples(t *testing.T) {
	root := t.TempDir()
	addSample(t, root, "002.png", "TWO")
	addSample(t, root, "000.png", "ZERO")
	addSample(t, root, "001.png", "ONE")

	ds, err := dataset.Load(root)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	var ids, payloads []string
	for s := range ds.Samples() {
		ids = append(ids, s.ID)
		payloads = append(payloads, s.Payload)
		assert.Equal(t, 4.0, s.ModuleSizePx)
		assert.Equal(t, 4, s.Width)
		assert.Equal(t, 3, s.Height)
	}
	assert.Equal(t, []string{"000.png", "001.png", "002.png"}, ids)
	assert.Equal(t, []string{"ZERO", "ONE", "TWO"}, payloads)

	// restartable
	n := 0
	for range ds.Samples() {
		n++
	}
	assert.Equal(t, 3, n)

	s, ok := ds.Sample("001.png")
	require.True(t, ok)
	assert.Equal(t, "ONE", s.Payload)
	_, ok = ds.Sample("nope.png")
	assert.False(t, ok)

	img, err := s.LoadImage()
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
}

func TestLoadMissingAnnotation(t *testing.T) {
	root := t.TempDir()
	addSample(t, root, "000.png", "HELLO")
	writePNG(t, filepath.Join(root, dataset.ImagesDir, "001.png"))

	ds, err := dataset.Load(root)
	assert.Nil(t, ds)
	var derr *dataset.Error
	require.True(t, errors.As(err, &derr))
	require.Len(t, derr.Problems, 1)
	assert.Contains(t, derr.Problems[0].Path, "001.png")
	assert.Contains(t, derr.Problems[0].Reason, "no annotation")
}

func TestLoadOrphanAnnotation(t *testing.T) {
	root := t.TempDir()
	addSample(t, root, "000.png", "HELLO")
	writeFile(t, filepath.Join(root, dataset.MarkupDir, "007.png.json"), `{"props":{"barcode":{"value":"X"}}}`)

	_, err := dataset.Load(root)
	var derr *dataset.Error
	require.True(t, errors.As(err, &derr))
	require.Len(t, derr.Problems, 1)
	assert.Contains(t, derr.Problems[0].Reason, "no matching image")
}

func TestLoadCollectsAllProblems(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, dataset.ImagesDir, "000.png"))
	writeFile(t, filepath.Join(root, dataset.MarkupDir, "000.png.json"), `{"props":{}}`)
	writeFile(t, filepath.Join(root, dataset.ImagesDir, "001.png"), "not an image")
	writeFile(t, filepath.Join(root, dataset.MarkupDir, "001.png.json"), `{"props":{"barcode":{"value":"A"}}}`)
	writePNG(t, filepath.Join(root, dataset.ImagesDir, "002.png"))

	_, err := dataset.Load(root)
	var derr *dataset.Error
	require.True(t, errors.As(err, &derr))
	assert.Len(t, derr.Problems, 3)
	assert.Contains(t, err.Error(), "3 problems")
}

func TestLoadMissingLayout(t *testing.T) {
	_, err := dataset.Load(t.TempDir())
	var derr *dataset.Error
	require.True(t, errors.As(err, &derr))
	assert.Len(t, derr.Problems, 2)
}

func TestOpenRejectsBadName(t *testing.T) {
	_, err := dataset.Open(t.TempDir(), "../etc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dataset name")
}

func TestListAndCount(t *testing.T) {
	dir := t.TempDir()
	addSample(t, filepath.Join(dir, "beta"), "000.png", "B")
	addSample(t, filepath.Join(dir, "alpha"), "000.png", "A")
	addSample(t, filepath.Join(dir, "alpha"), "001.png", "A")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))
	addSample(t, filepath.Join(dir, dataset.UploadsDir), "000.png", "U")

	names, err := dataset.List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)
	assert.Equal(t, 2, dataset.CountImages(filepath.Join(dir, "alpha")))
	assert.Equal(t, 0, dataset.CountImages(filepath.Join(dir, "empty")))

	names, err = dataset.List(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	ds, err := dataset.Generate(dir, "synth", dataset.SynthOptions{
		Payloads: []string{"HELLO", "WORLD"},
		ModulePx: 4,
		Format:   "png",
	})
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	s, ok := ds.Sample("000.png")
	require.True(t, ok)
	assert.Equal(t, "HELLO", s.Payload)
	assert.Equal(t, 4.0, s.ModuleSizePx)
	assert.Len(t, s.Points, 4)
	// version 1 symbol is 21 modules plus a 4 module quiet zone each side
	assert.Equal(t, (21+8)*4, s.Width)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	_, err := dataset.Generate(t.TempDir(), "x", dataset.SynthOptions{})
	assert.Error(t, err)
	_, err = dataset.Generate(t.TempDir(), "x y", dataset.SynthOptions{Payloads: []string{"A"}})
	assert.Error(t, err)
	_, err = dataset.Generate(t.TempDir(), "x", dataset.SynthOptions{Payloads: []string{"A"}, Format: "gif"})
	assert.Error(t, err)
}
