//go:build !gocv

package decoder

import "github.com/pkg/errors"

func newOpenCV() (Decoder, error) {
	return nil, &DependencyMissingError{
		Decoder:    OpenCV,
		Dependency: "OpenCV",
		Err:        errors.New("binary built without the gocv tag"),
	}
}
