package dataset

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Annotation paths inside a markup file.
const (
	valuePath      = "props.barcode.value"
	moduleSizePath = "props.barcode.module_size"
	pointsPath     = "props.barcode.points"
	typePath       = "props.barcode.type"
)

// Annotation is the ground truth attached to one image.
//
// Markup files look like:
//
//	{"props": {"barcode": {
//	    "type": "QR_CODE",
//	    "value": "HELLO",
//	    "module_size": [[7.5, 8.0], [7.8, 8.1]],
//	    "points": [[10, 10], [90, 10], [90, 90], [10, 90]]
//	}}}
//
// module_size holds the [min, max] module extent along x and y in pixels;
// points is the symbol outline. Both are optional.
type Annotation struct {
	Payload      string
	ModuleSizePx float64
	Points       [][2]float64
}

func ParseAnnotation(data []byte) (Annotation, error) {
	var a Annotation
	if !gjson.ValidBytes(data) {
		return a, errors.New("not valid JSON")
	}

	value := gjson.GetBytes(data, valuePath)
	if !value.Exists() || value.Type == gjson.Null {
		return a, errors.Errorf("missing %s", valuePath)
	}
	if value.IsObject() || value.IsArray() {
		return a, errors.Errorf("%s must be a scalar", valuePath)
	}
	a.Payload = value.String()
	if strings.TrimSpace(a.Payload) == "" {
		return a, errors.Errorf("empty %s", valuePath)
	}

	if ms := gjson.GetBytes(data, moduleSizePath); ms.Exists() && ms.Type != gjson.Null {
		size, err := parseModuleSize(ms)
		if err != nil {
			return a, err
		}
		a.ModuleSizePx = size
	}

	if pts := gjson.GetBytes(data, pointsPath); pts.Exists() && pts.Type != gjson.Null {
		points, err := parsePoints(pts)
		if err != nil {
			return a, err
		}
		a.Points = points
	}
	return a, nil
}

// parseModuleSize averages the two [min, max] ranges.
func parseModuleSize(ms gjson.Result) (float64, error) {
	ranges := ms.Array()
	if !ms.IsArray() || len(ranges) != 2 {
		return 0, errors.Errorf("%s must be [[xmin,xmax],[ymin,ymax]]", moduleSizePath)
	}
	var sum float64
	for _, r := range ranges {
		pair := r.Array()
		if !r.IsArray() || len(pair) != 2 {
			return 0, errors.Errorf("%s must be [[xmin,xmax],[ymin,ymax]]", moduleSizePath)
		}
		for _, v := range pair {
			if v.Type != gjson.Number {
				return 0, errors.Errorf("%s holds non-numeric value %q", moduleSizePath, v.Raw)
			}
			sum += v.Float()
		}
	}
	size := sum / 4
	if size <= 0 {
		return 0, errors.Errorf("%s must be positive, got %g", moduleSizePath, size)
	}
	return size, nil
}

func parsePoints(pts gjson.Result) ([][2]float64, error) {
	if !pts.IsArray() {
		return nil, errors.Errorf("%s must be a list of [x,y] pairs", pointsPath)
	}
	var points [][2]float64
	for _, p := range pts.Array() {
		xy := p.Array()
		if !p.IsArray() || len(xy) != 2 || xy[0].Type != gjson.Number || xy[1].Type != gjson.Number {
			return nil, errors.Errorf("%s must be a list of [x,y] pairs", pointsPath)
		}
		points = append(points, [2]float64{xy[0].Float(), xy[1].Float()})
	}
	return points, nil
}

// EncodeAnnotation renders a markup file for a. The module size is written as
// a degenerate range so it parses back to the same value.
func EncodeAnnotation(a Annotation) ([]byte, error) {
	out := []byte(`{}`)
	var err error
	if out, err = sjson.SetBytes(out, typePath, "QR_CODE"); err != nil {
		return nil, errors.Wrap(err, "encoding type")
	}
	if out, err = sjson.SetBytes(out, valuePath, a.Payload); err != nil {
		return nil, errors.Wrap(err, "encoding value")
	}
	if a.ModuleSizePx > 0 {
		m := a.ModuleSizePx
		if out, err = sjson.SetBytes(out, moduleSizePath, [][2]float64{{m, m}, {m, m}}); err != nil {
			return nil, errors.Wrap(err, "encoding module size")
		}
	}
	if len(a.Points) > 0 {
		if out, err = sjson.SetBytes(out, pointsPath, a.Points); err != nil {
			return nil, errors.Wrap(err, "encoding points")
		}
	}
	return out, nil
}
