// Package decoder wraps QR decoding backends behind a single interface.
//
// A Decoder is not safe for concurrent use. Callers that decode in parallel
// create one instance per worker.
package decoder

import (
	"fmt"
	"image"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	OpenCV = "opencv"
	ZXing  = "zxing"
	ZBar   = "zbar"
)

var ErrUnknownDecoder = errors.New("unknown decoder")

// Outcome is the result of one decode attempt.
type Outcome struct {
	Found   bool   `json:"found"`
	Payload string `json:"payload,omitempty"`
}

func NotFound() Outcome {
	return Outcome{}
}

func Found(payload string) Outcome {
	if payload == "" {
		return NotFound()
	}
	return Outcome{Found: true, Payload: payload}
}

// Decoder extracts a QR payload from an image. Decode never fails: anything
// the backend cannot read is reported as not found.
type Decoder interface {
	Name() string
	Decode(img image.Image) Outcome
}

// DependencyMissingError means a backend's native library or tool is not
// installed on this host.
type DependencyMissingError struct {
	Decoder    string
	Dependency string
	Err        error
}

func (e *DependencyMissingError) Error() string {
	msg := fmt.Sprintf("decoder %s unavailable: %s not found", e.Decoder, e.Dependency)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DependencyMissingError) Unwrap() error {
	return e.Err
}

// Names lists every decoder this build knows about, available or not.
func Names() []string {
	return []string{OpenCV, ZXing, ZBar}
}

// New constructs the named decoder. The returned error is a
// *DependencyMissingError when the backend cannot run on this host.
func New(name string) (Decoder, error) {
	switch name {
	case OpenCV:
		return newOpenCV()
	case ZXing:
		return newZXing(), nil
	case ZBar:
		return newZBar()
	default:
		return nil, errors.Wrapf(ErrUnknownDecoder, "%q", name)
	}
}

// Available checks that name can be constructed and releases the probe.
func Available(name string) error {
	d, err := New(name)
	if err != nil {
		return err
	}
	Close(d)
	return nil
}

// Close releases native resources held by d, if any.
func Close(d Decoder) {
	if c, ok := d.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Debug().Err(err).Str("decoder", d.Name()).Msg("closing decoder")
		}
	}
}

// Measure runs one decode and reports its wall clock time. A panic inside
// the backend is recovered and counted as a failed attempt.
func Measure(d Decoder, img image.Image) (out Outcome, elapsed time.Duration) {
	start := time.Now()
	defer func() {
		elapsed = time.Since(start)
		if r := recover(); r != nil {
			log.Debug().Str("decoder", d.Name()).Interface("panic", r).Msg("decoder panicked")
			out = NotFound()
		}
	}()
	out = d.Decode(img)
	if out.Found && out.Payload == "" {
		out = NotFound()
	}
	return out, 0
}
