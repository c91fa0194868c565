package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"sort"
	"strings"
	"time"
	"unicode"

	"ImageLabelViewer/internal/entity"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ErrObjectNotFound = errors.New("gallery object not found")

// ItfS3 is the gallery the picker browses. Refs handed out by List and
// Upload are object keys and are the only thing Open accepts.
type ItfS3 interface {
	List(ctx context.Context, limit int) ([]entity.GalleryItem, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Upload(ctx context.Context, name string, contentType string, data []byte) (entity.GalleryItem, error)
}

type s3Client struct {
	client     s3iface.S3API
	uploader   s3manageriface.UploaderAPI
	bucketName string
	prefix     string
}

func New() (ItfS3, error) {
	sess, err := newSession()
	if err != nil {
		return nil, err
	}

	bucket := os.Getenv("AWS_BUCKET_NAME")
	if bucket == "" {
		return nil, errors.New("AWS_BUCKET_NAME is required")
	}

	return NewWithAPI(s3.New(sess), s3manager.NewUploader(sess), bucket, os.Getenv("GALLERY_PREFIX")), nil
}

func NewWithAPI(client s3iface.S3API, uploader s3manageriface.UploaderAPI, bucket, prefix string) ItfS3 {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &s3Client{
		client:     client,
		uploader:   uploader,
		bucketName: bucket,
		prefix:     prefix,
	}
}

// List returns the most recent image objects under the gallery prefix.
func (s *s3Client) List(ctx context.Context, limit int) ([]entity.GalleryItem, error) {
	var items []entity.GalleryItem

	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(s.prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			contentType := contentTypeFor(key)
			if !strings.HasPrefix(contentType, "image/") {
				continue
			}
			items = append(items, entity.GalleryItem{
				Ref:          key,
				Name:         path.Base(key),
				Size:         aws.Int64Value(obj.Size),
				ContentType:  contentType,
				LastModified: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastModified.After(items[j].LastModified)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	return items, nil
}

func (s *s3Client) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !strings.HasPrefix(ref, s.prefix) || strings.Contains(ref, "..") {
		return nil, ErrObjectNotFound
	}

	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(ref),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get gallery object: %w", err)
	}

	return out.Body, nil
}

func (s *s3Client) Upload(ctx context.Context, name string, contentType string, data []byte) (entity.GalleryItem, error) {
	key := s.prefix + generateUniqueFileName(name)

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return entity.GalleryItem{}, fmt.Errorf("upload gallery object: %w", err)
	}

	return entity.GalleryItem{
		Ref:          key,
		Name:         path.Base(key),
		Size:         int64(len(data)),
		ContentType:  contentType,
		LastModified: time.Now(),
	}, nil
}

func newSession() (*session.Session, error) {
	cfg := &aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
	}

	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		cfg.Credentials = credentials.NewStaticCredentials(id, os.Getenv("AWS_SECRET_ACCESS_KEY"), "")
	}

	// S3-compatible stores such as MinIO
	if endpoint := os.Getenv("AWS_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	return session.NewSession(cfg)
}

func contentTypeFor(key string) string {
	return mime.TypeByExtension(strings.ToLower(path.Ext(key)))
}

func generateUniqueFileName(fileName string) string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), sanitizeFileName(fileName))
}

// sanitizeFileName keeps the base name only, folds accents and replaces
// anything outside [A-Za-z0-9._-] with an underscore.
func sanitizeFileName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, base); err == nil {
		base = folded
	}

	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)

	if strings.Trim(base, "._") == "" {
		return "image.jpg"
	}
	return base
}
