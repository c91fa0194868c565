package labeler

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ImageLabelViewer/internal/entity"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	labels   []entity.Label
	err      error
	closeErr error
	closed   *atomic.Int32
	block    bool
}

func (d *stubDetector) Detect(ctx context.Context, _ Image) ([]entity.Label, error) {
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return d.labels, d.err
}

func (d *stubDetector) Close() error {
	d.closed.Add(1)
	return d.closeErr
}

type stubFactory struct {
	detector *stubDetector
	openErr  error
}

func (f *stubFactory) Open(context.Context) (Detector, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.detector, nil
}

func (f *stubFactory) Name() string { return "stub" }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		labels []entity.Label
		want   string
	}{
		{
			name:   "single label",
			labels: []entity.Label{{Text: "Cat", Confidence: 0.91, EntityID: "/m/01yrx"}},
			want:   "Label: Cat; Confidence: 0.91; Entity ID: /m/01yrx\n",
		},
		{
			name:   "empty",
			labels: nil,
			want:   "",
		},
		{
			name: "keeps order",
			labels: []entity.Label{
				{Text: "Dog", Confidence: 0.5, EntityID: "/m/0bt9lr"},
				{Text: "Pet", Confidence: 0.875, EntityID: "/m/068hy"},
			},
			want: "Label: Dog; Confidence: 0.5; Entity ID: /m/0bt9lr\n" +
				"Label: Pet; Confidence: 0.875; Entity ID: /m/068hy\n",
		},
		{
			name:   "whole number keeps a fraction digit",
			labels: []entity.Label{{Text: "Sky", Confidence: 1, EntityID: "/m/01bqvp"}},
			want:   "Label: Sky; Confidence: 1.0; Entity ID: /m/01bqvp\n",
		},
		{
			name:   "zero",
			labels: []entity.Label{{Text: "Cloud", Confidence: 0, EntityID: "/m/0csby"}},
			want:   "Label: Cloud; Confidence: 0.0; Entity ID: /m/0csby\n",
		},
		{
			name:   "tiny score uses exponent",
			labels: []entity.Label{{Text: "Moon", Confidence: 0.0001, EntityID: "/m/04wv_"}},
			want:   "Label: Moon; Confidence: 1.0E-4; Entity ID: /m/04wv_\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.labels))
		})
	}
}

func TestFormatConfidence(t *testing.T) {
	tests := map[float32]string{
		0.91:       "0.91",
		0.5:        "0.5",
		1:          "1.0",
		0:          "0.0",
		0.001:      "0.001",
		0.0001:     "1.0E-4",
		0.00012345: "1.2345E-4",
		12345678:   "1.2345678E7",
		-2:         "-2.0",
	}

	for in, want := range tests {
		assert.Equal(t, want, FormatConfidence(in), "confidence %v", in)
	}
}

func TestRenderOneLinePerLabel(t *testing.T) {
	labels := make([]entity.Label, 7)
	for i := range labels {
		labels[i] = entity.Label{Text: "x", Confidence: float32(i) / 10, EntityID: "/m/x"}
	}

	lines := strings.Split(strings.TrimSuffix(Render(labels), "\n"), "\n")
	require.Len(t, lines, len(labels))
	for _, line := range lines {
		assert.Regexp(t, `^Label: x; Confidence: [0-9.]+; Entity ID: /m/x$`, line)
	}
}

func TestSubmitClosesDetectorOnSuccess(t *testing.T) {
	closed := &atomic.Int32{}
	f := &stubFactory{detector: &stubDetector{
		labels: []entity.Label{{Text: "Cat", Confidence: 0.91, EntityID: "/m/01yrx"}},
		closed: closed,
	}}

	res := <-Submit(context.Background(), f, Image{}, quietLogger())

	require.NoError(t, res.Err)
	assert.Len(t, res.Labels, 1)
	assert.EqualValues(t, 1, closed.Load())
}

func TestSubmitClosesDetectorOnFailure(t *testing.T) {
	closed := &atomic.Int32{}
	boom := errors.New("quota exceeded")
	f := &stubFactory{detector: &stubDetector{err: boom, closeErr: errors.New("close failed"), closed: closed}}

	res := <-Submit(context.Background(), f, Image{}, quietLogger())

	assert.ErrorIs(t, res.Err, boom)
	assert.EqualValues(t, 1, closed.Load())
}

func TestSubmitClosesDetectorOnCancel(t *testing.T) {
	closed := &atomic.Int32{}
	f := &stubFactory{detector: &stubDetector{block: true, closed: closed}}

	ctx, cancel := context.WithCancel(context.Background())
	ch := Submit(ctx, f, Image{}, quietLogger())
	cancel()

	select {
	case res := <-ch:
		assert.ErrorIs(t, res.Err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("detection did not stop after cancel")
	}
	assert.EqualValues(t, 1, closed.Load())
}

func TestSubmitOpenFailure(t *testing.T) {
	f := &stubFactory{openErr: errors.New("no credentials")}

	res := <-Submit(context.Background(), f, Image{}, quietLogger())

	assert.ErrorIs(t, res.Err, ErrDetectorUnavailable)
	assert.Nil(t, res.Labels)
}
