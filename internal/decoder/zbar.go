package decoder

import (
	"bytes"
	"image"
	"os"
	"os/exec"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

const zbarBinary = "zbarimg"

// zbarDecoder shells out to zbarimg with only the QR symbology enabled.
type zbarDecoder struct {
	path string
}

func newZBar() (Decoder, error) {
	path, err := exec.LookPath(zbarBinary)
	if err != nil {
		return nil, &DependencyMissingError{Decoder: ZBar, Dependency: zbarBinary, Err: err}
	}
	return &zbarDecoder{path: path}, nil
}

func (z *zbarDecoder) Name() string { return ZBar }

func (z *zbarDecoder) Decode(img image.Image) Outcome {
	f, err := os.CreateTemp("", "qrscale-*.png")
	if err != nil {
		log.Debug().Err(err).Msg("zbar temp file")
		return NotFound()
	}
	defer os.Remove(f.Name())
	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		return NotFound()
	}
	if err := f.Close(); err != nil {
		return NotFound()
	}

	var stdout bytes.Buffer
	cmd := exec.Command(z.path, "--quiet", "--raw", "-Sdisable", "-Sqrcode.enable", f.Name())
	cmd.Stdout = &stdout
	// zbarimg exits 4 when nothing was found; any other failure is treated
	// the same way.
	if err := cmd.Run(); err != nil {
		return NotFound()
	}
	return Found(firstLine(stdout.String()))
}

func firstLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
