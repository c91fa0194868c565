package viewerService

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"ImageLabelViewer/internal/api/viewer"
	viewerRepository "ImageLabelViewer/internal/api/viewer/repository"
	"ImageLabelViewer/internal/entity"
	"ImageLabelViewer/pkg/hub"
	"ImageLabelViewer/pkg/labeler"
	"ImageLabelViewer/pkg/redis"
	"ImageLabelViewer/pkg/s3"
	"ImageLabelViewer/pkg/utils"

	"github.com/sirupsen/logrus"
)

type IViewerService interface {
	CreateScreen(ctx context.Context, userID string) (entity.Screen, error)
	GetScreen(ctx context.Context, userID, screenID string) (entity.Screen, error)
	GetImage(ctx context.Context, userID, screenID string) ([]byte, error)
	Pause(ctx context.Context, userID, screenID string) error
	Destroy(ctx context.Context, userID, screenID string) error
	Subscribe(ctx context.Context, userID, screenID string) (<-chan hub.Event, func(), error)

	OpenPicker(ctx context.Context, userID, screenID string) (viewer.PickerResult, error)
	ResolvePermission(ctx context.Context, userID, screenID string, granted bool) (viewer.PickerResult, error)
	SelectImage(ctx context.Context, userID, screenID, ref string) (entity.Screen, bool, error)
	UploadImage(ctx context.Context, userID, name string, data []byte, contentType string) (entity.GalleryItem, error)

	Process(ctx context.Context, userID, screenID string) (viewer.ProcessResult, error)
	SelectMenuItem(ctx context.Context, userID, screenID, item string) (*viewer.ProcessResult, error)
}

type Config struct {
	MaxImageWidth   int
	MaxImageHeight  int
	MaxImageBytes   int64
	JPEGQuality     int
	LabelingTimeout time.Duration
	PickerPageSize  int
}

func ConfigFromEnv() Config {
	cfg := Config{
		MaxImageWidth:   atoiDefault(os.Getenv("IMAGE_MAX_WIDTH"), 1600),
		MaxImageHeight:  atoiDefault(os.Getenv("IMAGE_MAX_HEIGHT"), 1600),
		MaxImageBytes:   int64(atoiDefault(os.Getenv("IMAGE_MAX_BYTES"), 20*1024*1024)),
		JPEGQuality:     atoiDefault(os.Getenv("IMAGE_JPEG_QUALITY"), 85),
		LabelingTimeout: 30 * time.Second,
		PickerPageSize:  atoiDefault(os.Getenv("PICKER_PAGE_SIZE"), viewer.DefaultPickerPageSize),
	}
	if d, err := time.ParseDuration(os.Getenv("LABELING_TIMEOUT")); err == nil && d > 0 {
		cfg.LabelingTimeout = d
	}
	return cfg
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

var (
	errScreenPaused = errors.New("screen paused")
	errScreenClosed = errors.New("screen closed")
)

type viewerService struct {
	log        *logrus.Logger
	repository viewerRepository.Repository
	store      redis.IRedis
	gallery    s3.ItfS3
	labeler    labeler.Factory
	hub        hub.IHub
	utils      utils.IUtils
	cfg        Config
	now        func() time.Time

	mu       sync.Mutex
	inflight map[string]context.CancelCauseFunc
}

func NewViewerService(
	log *logrus.Logger,
	repository viewerRepository.Repository,
	store redis.IRedis,
	gallery s3.ItfS3,
	factory labeler.Factory,
	hub hub.IHub,
	utils utils.IUtils,
	cfg Config,
) IViewerService {
	return &viewerService{
		log:        log,
		repository: repository,
		store:      store,
		gallery:    gallery,
		labeler:    factory,
		hub:        hub,
		utils:      utils,
		cfg:        cfg,
		now:        time.Now,
		inflight:   make(map[string]context.CancelCauseFunc),
	}
}
