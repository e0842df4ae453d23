package decoder

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

type zxingDecoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

func newZXing() *zxingDecoder {
	return &zxingDecoder{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (z *zxingDecoder) Name() string { return ZXing }

func (z *zxingDecoder) Decode(img image.Image) Outcome {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return NotFound()
	}
	defer z.reader.Reset()
	res, err := z.reader.Decode(bmp, z.hints)
	if err != nil {
		return NotFound()
	}
	return Found(res.GetText())
}
