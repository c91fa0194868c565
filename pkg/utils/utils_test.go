package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewULIDFromTimestamp(t *testing.T) {
	u := New()

	a, err := u.NewULIDFromTimestamp(time.Now())
	require.NoError(t, err)
	b, err := u.NewULIDFromTimestamp(time.Now().Add(time.Millisecond))
	require.NoError(t, err)

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestValidateImageFile(t *testing.T) {
	u := New()

	header := func(size int64, contentType string) *multipart.FileHeader {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", contentType)
		return &multipart.FileHeader{Filename: "cat.png", Size: size, Header: h}
	}

	assert.ErrorIs(t, u.ValidateImageFile(nil), ErrNoFile)
	assert.ErrorIs(t, u.ValidateImageFile(header(6*1024*1024, "image/png")), ErrFileTooLarge)
	assert.ErrorIs(t, u.ValidateImageFile(header(10, "text/plain")), ErrNotAnImage)
	assert.NoError(t, u.ValidateImageFile(header(10, "image/jpeg")))
}

func TestPrepareImageKeepsSmallImages(t *testing.T) {
	u := New()

	img, err := u.PrepareImage(bytes.NewReader(encodePNG(t, 40, 30)), 100, 100, 85)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", img.ContentType)
	assert.Equal(t, 40, img.Width)
	assert.Equal(t, 30, img.Height)
	assert.NotEmpty(t, img.Data)
}

func TestPrepareImageDownscales(t *testing.T) {
	u := New()

	img, err := u.PrepareImage(bytes.NewReader(encodePNG(t, 200, 100)), 50, 50, 85)
	require.NoError(t, err)

	assert.Equal(t, 50, img.Width)
	assert.Equal(t, 25, img.Height)
}

func TestPrepareImageRejectsGarbage(t *testing.T) {
	u := New()

	_, err := u.PrepareImage(strings.NewReader("definitely not an image"), 50, 50, 85)
	assert.Error(t, err)
}
