package web

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/signalnine/qrscale/internal/dataset"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// datasetNameFromArchive derives a dataset name from an uploaded file name.
func datasetNameFromArchive(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name := strings.Trim(unsafeNameChars.ReplaceAllString(stem, "_"), "_")
	if name == "" {
		return "dataset"
	}
	return name
}

// extractZip unpacks src into dest, refusing entries that would land
// outside dest.
func extractZip(src, dest string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return errors.Wrap(err, "opening archive")
	}
	defer zr.Close()

	dest, err = filepath.Abs(dest)
	if err != nil {
		return err
	}
	for _, f := range zr.File {
		if err := extractEntry(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, dest string) error {
	name := filepath.FromSlash(f.Name)
	if filepath.IsAbs(name) || strings.HasPrefix(f.Name, "/") || strings.HasPrefix(f.Name, `\`) {
		return errors.Errorf("archive entry %q has an absolute path", f.Name)
	}
	target := filepath.Join(dest, name)
	if rel, err := filepath.Rel(dest, target); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.Errorf("archive entry %q escapes the extraction dir", f.Name)
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if !f.Mode().IsRegular() {
		return errors.Errorf("archive entry %q is not a regular file", f.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "reading %s", f.Name)
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return errors.Wrapf(err, "extracting %s", f.Name)
	}
	return out.Close()
}

// findDatasetRoot accepts archives holding the layout at the top level or
// inside a single top-level folder.
func findDatasetRoot(dir string) (string, error) {
	if dataset.HasLayout(dir) {
		return dir, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), "__MACOSX") {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 1 && dataset.HasLayout(filepath.Join(dir, dirs[0])) {
		return filepath.Join(dir, dirs[0]), nil
	}
	return "", errors.Errorf("archive must contain %s and %s", dataset.ImagesDir, dataset.MarkupDir)
}
