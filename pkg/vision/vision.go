// Package vision labels images with the Cloud Vision API.
package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"ImageLabelViewer/internal/entity"
	"ImageLabelViewer/pkg/labeler"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Client is the slice of vision.ImageAnnotatorClient the detector needs.
type Client interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

type Config struct {
	CredentialsFile string
	APIKey          string
	Endpoint        string
	MaxResults      int
	// extra client options, tests use this to reach a local server
	Options []option.ClientOption
}

func ConfigFromEnv() Config {
	maxResults, err := strconv.Atoi(os.Getenv("LABELER_MAX_RESULTS"))
	if err != nil || maxResults <= 0 {
		maxResults = 10
	}
	return Config{
		CredentialsFile: os.Getenv("VISION_CREDENTIALS_FILE"),
		APIKey:          os.Getenv("VISION_API_KEY"),
		Endpoint:        os.Getenv("VISION_ENDPOINT"),
		MaxResults:      maxResults,
	}
}

type factory struct {
	opts       []option.ClientOption
	maxResults int
	newClient  func(ctx context.Context, opts ...option.ClientOption) (Client, error)
}

func NewFactory(ctx context.Context, cfg Config) (labeler.Factory, error) {
	var opts []option.ClientOption

	switch {
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read vision credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, vision.DefaultAuthScopes()...)
		if err != nil {
			return nil, fmt.Errorf("parse vision credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, cfg.Options...)

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	return &factory{
		opts:       opts,
		maxResults: maxResults,
		newClient: func(ctx context.Context, opts ...option.ClientOption) (Client, error) {
			return vision.NewImageAnnotatorClient(ctx, opts...)
		},
	}, nil
}

func (f *factory) Name() string { return "vision" }

func (f *factory) Open(ctx context.Context) (labeler.Detector, error) {
	client, err := f.newClient(ctx, f.opts...)
	if err != nil {
		return nil, err
	}
	return &detector{client: client, maxResults: f.maxResults}, nil
}

type detector struct {
	client     Client
	maxResults int
}

func (d *detector) Detect(ctx context.Context, img labeler.Image) ([]entity.Label, error) {
	if len(img.Data) == 0 {
		return nil, errors.New("empty image")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: img.Data},
			Features: []*visionpb.Feature{{
				Type:       visionpb.Feature_LABEL_DETECTION,
				MaxResults: int32(d.maxResults),
			}},
		}},
	}

	resp, err := d.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("detect labels: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, errors.New("detect labels: empty response")
	}

	res := resp.GetResponses()[0]
	if e := res.GetError(); e != nil {
		return nil, fmt.Errorf("detect labels: code %d: %s", e.GetCode(), e.GetMessage())
	}

	annotations := res.GetLabelAnnotations()
	labels := make([]entity.Label, 0, len(annotations))
	for _, a := range annotations {
		labels = append(labels, entity.Label{
			Text:       a.GetDescription(),
			Confidence: a.GetScore(),
			EntityID:   a.GetMid(),
		})
	}

	return labels, nil
}

func (d *detector) Close() error {
	return d.client.Close()
}
