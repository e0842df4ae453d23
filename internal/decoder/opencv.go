//go:build gocv

package decoder

import (
	"image"

	"gocv.io/x/gocv"
)

type opencvDecoder struct {
	detector gocv.QRCodeDetector
}

func newOpenCV() (Decoder, error) {
	return &opencvDecoder{detector: gocv.NewQRCodeDetector()}, nil
}

func (o *opencvDecoder) Name() string { return OpenCV }

// Decode tries the multi-symbol detector first and falls back to the single
// symbol path, which finds some codes the multi detector misses.
func (o *opencvDecoder) Decode(img image.Image) Outcome {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return NotFound()
	}
	defer mat.Close()
	if mat.Empty() {
		return NotFound()
	}

	points := gocv.NewMat()
	defer points.Close()

	var decoded []string
	var codes []gocv.Mat
	ok := o.detector.DetectAndDecodeMulti(mat, &decoded, &points, &codes)
	for _, c := range codes {
		c.Close()
	}
	if ok {
		for _, s := range decoded {
			if s != "" {
				return Found(s)
			}
		}
	}

	straight := gocv.NewMat()
	defer straight.Close()
	return Found(o.detector.DetectAndDecode(mat, &points, &straight))
}

func (o *opencvDecoder) Close() error {
	return o.detector.Close()
}
