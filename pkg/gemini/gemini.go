package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"ImageLabelViewer/internal/entity"
	"ImageLabelViewer/pkg/labeler"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const labelPrompt = `
Identify the main objects, scenes and concepts in this image.
Return ONLY a JSON array, most confident first, with at most %d items:
[
	{"text": "Cat", "confidence": 0.91, "entity_id": "/m/01yrx"}
]
"confidence" is a number between 0 and 1. "entity_id" is the Google
Knowledge Graph machine id when you know it, otherwise an empty string.
`

type Config struct {
	APIKey     string
	ModelName  string
	MaxResults int
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:     os.Getenv("GEMINI_API_KEY"),
		ModelName:  os.Getenv("GEMINI_MODEL_NAME"),
		MaxResults: 10,
	}
}

type factory struct {
	cfg Config
}

func NewFactory(cfg Config) (labeler.Factory, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-1.5-flash"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &factory{cfg: cfg}, nil
}

func (f *factory) Name() string { return "gemini" }

func (f *factory) Open(ctx context.Context) (labeler.Detector, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(f.cfg.APIKey))
	if err != nil {
		return nil, err
	}
	return &geminiClient{client: client, cfg: f.cfg}, nil
}

type geminiClient struct {
	client *genai.Client
	cfg    Config
}

func (g *geminiClient) Detect(ctx context.Context, img labeler.Image) ([]entity.Label, error) {
	model := g.client.GenerativeModel(g.cfg.ModelName)
	model.ResponseMIMEType = "application/json"

	format := strings.TrimPrefix(img.ContentType, "image/")
	if format == "" {
		format = "jpeg"
	}

	res, err := model.GenerateContent(ctx,
		genai.Text(fmt.Sprintf(labelPrompt, g.cfg.MaxResults)),
		genai.ImageData(format, img.Data),
	)
	if err != nil {
		return nil, err
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no response from Gemini API")
	}

	text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, errors.New("unexpected response format from Gemini API")
	}

	labels, err := parseLabels(string(text))
	if err != nil {
		return nil, err
	}
	if len(labels) > g.cfg.MaxResults {
		labels = labels[:g.cfg.MaxResults]
	}
	return labels, nil
}

func (g *geminiClient) Close() error {
	return g.client.Close()
}

type labelJSON struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	EntityID   string  `json:"entity_id"`
}

// parseLabels pulls the JSON array out of a model reply, tolerating prose or
// code fences around it.
func parseLabels(response string) ([]entity.Label, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")

	if start == -1 || end == -1 || end <= start {
		return nil, errors.New("cannot find valid JSON in response")
	}

	var raw []labelJSON
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse Gemini response as valid JSON: %w", err)
	}

	labels := make([]entity.Label, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		confidence := r.Confidence
		if confidence < 0 {
			confidence = 0
		} else if confidence > 1 {
			confidence = 1
		}
		labels = append(labels, entity.Label{
			Text:       r.Text,
			Confidence: confidence,
			EntityID:   r.EntityID,
		})
	}

	return labels, nil
}
