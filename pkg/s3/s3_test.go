package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
	times   map[string]time.Time
}

func (f *fakeS3) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	page := &s3.ListObjectsV2Output{}
	for key, data := range f.objects {
		if !strings.HasPrefix(key, aws.StringValue(in.Prefix)) {
			continue
		}
		page.Contents = append(page.Contents, &s3.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(data))),
			LastModified: aws.Time(f.times[key]),
		})
	}
	fn(page, true)
	return nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type fakeUploader struct {
	s3manageriface.UploaderAPI
	inputs []*s3manager.UploadInput
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	f.inputs = append(f.inputs, in)
	return &s3manager.UploadOutput{Location: "https://bucket/" + aws.StringValue(in.Key)}, nil
}

func newGallery() (ItfS3, *fakeS3, *fakeUploader) {
	now := time.Now()
	api := &fakeS3{
		objects: map[string][]byte{
			"gallery/old.jpg":   []byte("old"),
			"gallery/new.PNG":   []byte("new"),
			"gallery/notes.txt": []byte("not an image"),
			"private/cat.jpg":   []byte("elsewhere"),
		},
		times: map[string]time.Time{
			"gallery/old.jpg":   now.Add(-time.Hour),
			"gallery/new.PNG":   now,
			"gallery/notes.txt": now,
		},
	}
	up := &fakeUploader{}
	return NewWithAPI(api, up, "bucket", "gallery"), api, up
}

func TestListFiltersImagesNewestFirst(t *testing.T) {
	g, _, _ := newGallery()

	items, err := g.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "gallery/new.PNG", items[0].Ref)
	assert.Equal(t, "image/png", items[0].ContentType)
	assert.Equal(t, "gallery/old.jpg", items[1].Ref)
	assert.Equal(t, "old.jpg", items[1].Name)
}

func TestListLimit(t *testing.T) {
	g, _, _ := newGallery()

	items, err := g.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestOpenOutsidePrefixIsNotFound(t *testing.T) {
	g, _, _ := newGallery()

	_, err := g.Open(context.Background(), "private/cat.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = g.Open(context.Background(), "gallery/../private/cat.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = g.Open(context.Background(), "gallery/missing.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestOpenReadsObject(t *testing.T) {
	g, _, _ := newGallery()

	rc, err := g.Open(context.Background(), "gallery/old.jpg")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestUploadUsesPrefixAndContentType(t *testing.T) {
	g, _, up := newGallery()

	item, err := g.Upload(context.Background(), "../my cat.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(item.Ref, "gallery/"))
	assert.True(t, strings.HasSuffix(item.Ref, "-my_cat.jpg"))
	require.Len(t, up.inputs, 1)
	assert.Equal(t, "image/jpeg", aws.StringValue(up.inputs[0].ContentType))
	assert.Equal(t, "bucket", aws.StringValue(up.inputs[0].Bucket))
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"cat.png":           "cat.png",
		"../../etc/passwd":  "passwd",
		`C:\photos\dog.jpg`: "dog.jpg",
		"Café Crème.jpeg":   "Cafe_Creme.jpeg",
		"日本.png":            "__.png",
		"":                  "image.jpg",
		"/":                 "image.jpg",
	}

	for in, want := range tests {
		assert.Equal(t, want, sanitizeFileName(in), in)
	}
}
