// Package labeler defines the boundary to an external label-detection
// service. A Detector is a scoped handle: it is opened for one request and
// must be closed when that request is done.
package labeler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ImageLabelViewer/internal/entity"

	"github.com/sirupsen/logrus"
)

var ErrDetectorUnavailable = errors.New("label detector unavailable")

// Image is an encoded image handed to a detector.
type Image struct {
	Data        []byte
	ContentType string
}

type Detector interface {
	Detect(ctx context.Context, img Image) ([]entity.Label, error)
	Close() error
}

// Factory opens a fresh Detector per labeling request.
type Factory interface {
	Open(ctx context.Context) (Detector, error)
	Name() string
}

// Result is what a submitted detection eventually resolves to. Exactly one
// of Labels or Err is meaningful.
type Result struct {
	Labels []entity.Label
	Err    error
}

// Submit runs one detection in the background and delivers its outcome on
// the returned channel. The detector is released before the result is sent,
// whatever the outcome. The channel is buffered so an abandoned result never
// blocks the worker.
func Submit(ctx context.Context, factory Factory, img Image, log *logrus.Logger) <-chan Result {
	out := make(chan Result, 1)

	go func() {
		labels, err := detectOnce(ctx, factory, img, log)
		out <- Result{Labels: labels, Err: err}
		close(out)
	}()

	return out
}

func detectOnce(ctx context.Context, factory Factory, img Image, log *logrus.Logger) (labels []entity.Label, err error) {
	detector, err := factory.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDetectorUnavailable, factory.Name(), err)
	}
	defer func() {
		if cerr := detector.Close(); cerr != nil {
			log.WithFields(logrus.Fields{
				"detector": factory.Name(),
				"error":    cerr.Error(),
			}).Error("Exception thrown while trying to close label detector")
		}
	}()

	return detector.Detect(ctx, img)
}

// Render flattens labels into the display text, one line per label.
func Render(labels []entity.Label) string {
	var sb strings.Builder
	for _, l := range labels {
		sb.WriteString("Label: ")
		sb.WriteString(l.Text)
		sb.WriteString("; Confidence: ")
		sb.WriteString(FormatConfidence(l.Confidence))
		sb.WriteString("; Entity ID: ")
		sb.WriteString(l.EntityID)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatConfidence prints a score the way the mobile client always has:
// the shortest digits that round-trip the float32, at least one fractional
// digit, and d.dddE-n form outside [1e-3, 1e7). 0.91 prints "0.91", 1 prints
// "1.0" and 0.0001 prints "1.0E-4".
func FormatConfidence(c float32) string {
	f := float64(c)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	if abs := math.Abs(f); abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, 32)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 32), "e")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	n, _ := strconv.Atoi(exp)
	return mantissa + "E" + strconv.Itoa(n)
}
