// Package dataset loads QR benchmark samples stored as
//
//	<root>/images/QR_CODE/<name>.<ext>
//	<root>/markup/QR_CODE/<name>.<ext>.json
//
// and exposes them in file name order.
package dataset

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	ImagesDir = "images/QR_CODE"
	MarkupDir = "markup/QR_CODE"

	// UploadsDir is the scratch area for uploaded archives; never a dataset.
	UploadsDir = "_uploads"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Sample is one annotated image. It is immutable once loaded.
type Sample struct {
	ID             string       `json:"id"`
	ImagePath      string       `json:"image_path"`
	AnnotationPath string       `json:"annotation_path"`
	Payload        string       `json:"payload"`
	ModuleSizePx   float64      `json:"module_size_px,omitempty"`
	Points         [][2]float64 `json:"points,omitempty"`
	Width          int          `json:"width"`
	Height         int          `json:"height"`
}

// LoadImage decodes the sample's pixels. Images are read lazily so a dataset
// can be iterated many times without holding every image in memory.
func (s Sample) LoadImage() (image.Image, error) {
	f, err := os.Open(s.ImagePath)
	if err != nil {
		return nil, errors.Wrap(err, "opening image")
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %s", s.ImagePath)
	}
	return img, nil
}

type Dataset struct {
	Name    string
	Root    string
	samples []Sample
}

func (d *Dataset) Len() int {
	return len(d.samples)
}

// Samples yields samples in file name order. The sequence can be ranged over
// any number of times.
func (d *Dataset) Samples() iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for _, s := range d.samples {
			if !yield(s) {
				return
			}
		}
	}
}

func (d *Dataset) Sample(id string) (Sample, bool) {
	i := sort.Search(len(d.samples), func(i int) bool { return d.samples[i].ID >= id })
	if i < len(d.samples) && d.samples[i].ID == id {
		return d.samples[i], true
	}
	return Sample{}, false
}

// ValidName reports whether name can be used as a dataset directory name.
func ValidName(name string) bool {
	return nameRE.MatchString(name)
}

// Open loads datasetsDir/name.
func Open(datasetsDir, name string) (*Dataset, error) {
	if !ValidName(name) {
		return nil, &Error{Root: name, Problems: []Problem{{Path: name, Reason: "invalid dataset name"}}}
	}
	return Load(filepath.Join(datasetsDir, name))
}

// Load reads and validates every annotation and image header under root.
// Any image without an annotation, annotation without an image, unreadable
// annotation or undecodable image header fails the whole load with *Error.
func Load(root string) (*Dataset, error) {
	imagesDir := filepath.Join(root, ImagesDir)
	markupDir := filepath.Join(root, MarkupDir)
	derr := &Error{Root: root}

	images, err := listImages(imagesDir)
	if err != nil {
		derr.add(imagesDir, "%v", err)
	}
	annotations, err := listAnnotations(markupDir)
	if err != nil {
		derr.add(markupDir, "%v", err)
	}
	if len(derr.Problems) > 0 {
		return nil, derr
	}

	imageSet := make(map[string]bool, len(images))
	for _, name := range images {
		imageSet[name] = true
	}
	for _, ann := range annotations {
		if !imageSet[strings.TrimSuffix(ann, ".json")] {
			derr.add(filepath.Join(markupDir, ann), "annotation has no matching image")
		}
	}

	samples := make([]Sample, 0, len(images))
	for _, name := range images {
		s := Sample{
			ID:             name,
			ImagePath:      filepath.Join(imagesDir, name),
			AnnotationPath: filepath.Join(markupDir, name+".json"),
		}
		data, err := os.ReadFile(s.AnnotationPath)
		if err != nil {
			if os.IsNotExist(err) {
				derr.add(s.ImagePath, "image has no annotation %s", filepath.Base(s.AnnotationPath))
			} else {
				derr.add(s.AnnotationPath, "%v", err)
			}
			continue
		}
		ann, err := ParseAnnotation(data)
		if err != nil {
			derr.add(s.AnnotationPath, "%v", err)
			continue
		}
		cfg, err := decodeConfig(s.ImagePath)
		if err != nil {
			derr.add(s.ImagePath, "%v", err)
			continue
		}
		s.Payload = ann.Payload
		s.ModuleSizePx = ann.ModuleSizePx
		s.Points = ann.Points
		s.Width, s.Height = cfg.Width, cfg.Height
		samples = append(samples, s)
	}

	if len(derr.Problems) > 0 {
		return nil, derr
	}
	return &Dataset{Name: filepath.Base(root), Root: root, samples: samples}, nil
}

// List returns the names of datasets under datasetsDir that have the
// expected layout, sorted.
func List(datasetsDir string) ([]string, error) {
	entries, err := os.ReadDir(datasetsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading datasets dir")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == UploadsDir {
			continue
		}
		if HasLayout(filepath.Join(datasetsDir, e.Name())) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// HasLayout reports whether dir contains both the image and markup folders.
func HasLayout(dir string) bool {
	for _, sub := range []string{ImagesDir, MarkupDir} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// CountImages returns the number of image files in dir's image folder.
func CountImages(dir string) int {
	images, err := listImages(filepath.Join(dir, ImagesDir))
	if err != nil {
		return 0
	}
	return len(images)
}

// IsImageFile reports whether name has a supported image extension.
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func listAnnotations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, errors.Wrap(err, "unreadable image header")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, errors.Errorf("empty image %dx%d", cfg.Width, cfg.Height)
	}
	return cfg, nil
}
