package utils

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
)

var (
	ErrNoFile       = errors.New("no file uploaded")
	ErrFileTooLarge = errors.New("file size exceeds limit")
	ErrNotAnImage   = errors.New("uploaded file is not an image")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	ReadImageFile(file *multipart.FileHeader) ([]byte, string, error)
	PrepareImage(r io.Reader, maxWidth, maxHeight int, quality int) (*PreparedImage, error)
}

// PreparedImage is an image that has been decoded, oriented, bounded and
// re-encoded as JPEG, ready to be shown or sent to a detector.
type PreparedImage struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

type utils struct {
	maxFileSize int64
}

func New() IUtils {
	return &utils{
		maxFileSize: 5 * 1024 * 1024,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if file.Size > u.maxFileSize {
		return ErrFileTooLarge
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return ErrNotAnImage
	}

	return nil
}

// ReadImageFile reads an uploaded file and sniffs its real content type,
// the declared header is not trusted.
func (u *utils) ReadImageFile(file *multipart.FileHeader) ([]byte, string, error) {
	if err := u.ValidateImageFile(file); err != nil {
		return nil, "", err
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, u.maxFileSize+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > u.maxFileSize {
		return nil, "", ErrFileTooLarge
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", ErrNotAnImage
	}

	return data, contentType, nil
}

func (u *utils) PrepareImage(r io.Reader, maxWidth, maxHeight int, quality int) (*PreparedImage, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img = fitWithin(img, maxWidth, maxHeight)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	bounds := img.Bounds()
	return &PreparedImage{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// fitWithin only ever shrinks. A non-positive bound leaves that axis free.
func fitWithin(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	if maxWidth <= 0 {
		maxWidth = bounds.Dx()
	}
	if maxHeight <= 0 {
		maxHeight = bounds.Dy()
	}
	if bounds.Dx() <= maxWidth && bounds.Dy() <= maxHeight {
		return img
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
}
