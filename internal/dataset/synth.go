package dataset

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/pkg/errors"
)

// SynthOptions controls Generate.
type SynthOptions struct {
	Payloads  []string
	ModulePx  int    // pixels per module, default 8
	QuietZone int    // modules of margin, default 4
	Format    string // "jpg" or "png", default "jpg"
}

func (o *SynthOptions) defaults() {
	if o.ModulePx <= 0 {
		o.ModulePx = 8
	}
	if o.QuietZone < 0 {
		o.QuietZone = 0
	} else if o.QuietZone == 0 {
		o.QuietZone = 4
	}
	if o.Format == "" {
		o.Format = "jpg"
	}
}

// Generate renders one QR symbol per payload into datasetsDir/name with a
// matching annotation, producing a dataset Load accepts. The annotated module
// size is exact since the symbol is drawn at an integer module pitch.
func Generate(datasetsDir, name string, opts SynthOptions) (*Dataset, error) {
	opts.defaults()
	if !ValidName(name) {
		return nil, errors.Errorf("invalid dataset name %q", name)
	}
	if len(opts.Payloads) == 0 {
		return nil, errors.New("no payloads")
	}
	if opts.Format != "jpg" && opts.Format != "png" {
		return nil, errors.Errorf("unsupported format %q", opts.Format)
	}

	root := filepath.Join(datasetsDir, name)
	imagesDir := filepath.Join(root, ImagesDir)
	markupDir := filepath.Join(root, MarkupDir)
	for _, dir := range []string{imagesDir, markupDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating dataset dirs")
		}
	}

	for i, payload := range opts.Payloads {
		img, outline, err := renderQR(payload, opts.ModulePx, opts.QuietZone)
		if err != nil {
			return nil, errors.Wrapf(err, "rendering payload %d", i)
		}
		file := fmt.Sprintf("%03d.%s", i, opts.Format)
		var saveOpts []imaging.EncodeOption
		if opts.Format == "jpg" {
			saveOpts = append(saveOpts, imaging.JPEGQuality(95))
		}
		if err := imaging.Save(img, filepath.Join(imagesDir, file), saveOpts...); err != nil {
			return nil, errors.Wrapf(err, "saving %s", file)
		}
		ann, err := EncodeAnnotation(Annotation{
			Payload:      payload,
			ModuleSizePx: float64(opts.ModulePx),
			Points:       outline,
		})
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(markupDir, file+".json"), ann, 0o644); err != nil {
			return nil, errors.Wrapf(err, "writing annotation for %s", file)
		}
	}
	return Load(root)
}

// renderQR draws payload with modulePx pixels per module and returns the
// image plus the symbol's corner points.
func renderQR(payload string, modulePx, quiet int) (image.Image, [][2]float64, error) {
	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_MARGIN: quiet,
	}
	// Zero size asks for one pixel per module.
	bits, err := qrcode.NewQRCodeWriter().Encode(payload, gozxing.BarcodeFormat_QR_CODE, 0, 0, hints)
	if err != nil {
		return nil, nil, err
	}
	w, h := bits.GetWidth(), bits.GetHeight()
	img := image.NewGray(image.Rect(0, 0, w*modulePx, h*modulePx))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.Gray{Y: 0xff}
			if bits.Get(x, y) {
				c = color.Gray{Y: 0}
			}
			for dy := 0; dy < modulePx; dy++ {
				for dx := 0; dx < modulePx; dx++ {
					img.SetGray(x*modulePx+dx, y*modulePx+dy, c)
				}
			}
		}
	}
	lo := float64(quiet * modulePx)
	hiX := float64((w - quiet) * modulePx)
	hiY := float64((h - quiet) * modulePx)
	outline := [][2]float64{{lo, lo}, {hiX, lo}, {hiX, hiY}, {lo, hiY}}
	return img, outline, nil
}
