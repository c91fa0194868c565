package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"ImageLabelViewer/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("screen not found in session store")

const maxUpdateRetries = 5

// UpdateFunc mutates a screen inside an optimistic transaction. Returning an
// error aborts the update and is passed back to the caller unchanged.
type UpdateFunc func(screen *entity.Screen) error

// IRedis is the screen session store. A screen record, its encoded image and
// its in-flight labeling lock all live under the same TTL.
type IRedis interface {
	SaveScreen(ctx context.Context, screen entity.Screen) error
	GetScreen(ctx context.Context, id string) (entity.Screen, error)
	DeleteScreen(ctx context.Context, id string) error
	UpdateScreen(ctx context.Context, id string, fn UpdateFunc) (entity.Screen, error)
	ReplaceImage(ctx context.Context, id string, data []byte, fn UpdateFunc) (entity.Screen, error)
	GetImage(ctx context.Context, id string) ([]byte, error)
	GetScreenImage(ctx context.Context, id string) (entity.Screen, []byte, error)
	AcquireLabelLock(ctx context.Context, id string, ttl time.Duration) (bool, error)
	ReleaseLabelLock(ctx context.Context, id string) error
}

type redisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	ttl, err := time.ParseDuration(os.Getenv("SCREEN_TTL"))
	if err != nil || ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return NewWithClient(client, ttl)
}

func NewWithClient(client *redis.Client, ttl time.Duration) IRedis {
	return &redisClient{client: client, ttl: ttl}
}

func screenKey(id string) string { return "viewer:screen:" + id }
func imageKey(id string) string  { return "viewer:screen:" + id + ":image" }
func lockKey(id string) string   { return "viewer:screen:" + id + ":labeling" }

func (r *redisClient) SaveScreen(ctx context.Context, screen entity.Screen) error {
	payload, err := jsoniter.Marshal(screen)
	if err != nil {
		return fmt.Errorf("marshal screen: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, screenKey(screen.ID), payload, r.ttl)
	// the image shares the screen's lifetime, so touching one touches both
	pipe.Expire(ctx, imageKey(screen.ID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.Error(fmt.Sprintf("Error saving screen %s: %v", screen.ID, err))
		return err
	}

	return nil
}

func (r *redisClient) GetScreen(ctx context.Context, id string) (entity.Screen, error) {
	val, err := r.client.Get(ctx, screenKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.Screen{}, ErrNotFound
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting screen %s: %v", id, err))
		return entity.Screen{}, err
	}

	var screen entity.Screen
	if err := jsoniter.Unmarshal(val, &screen); err != nil {
		return entity.Screen{}, fmt.Errorf("unmarshal screen: %w", err)
	}

	return screen, nil
}

func (r *redisClient) DeleteScreen(ctx context.Context, id string) error {
	result, err := r.client.Del(ctx, screenKey(id), imageKey(id), lockKey(id)).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting screen %s: %v", id, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Screen %s not found for deletion", id))
	}

	return nil
}

// UpdateScreen applies fn to the stored screen under WATCH, so a concurrent
// writer makes the transaction fail and fn is re-run on the fresh record.
func (r *redisClient) UpdateScreen(ctx context.Context, id string, fn UpdateFunc) (entity.Screen, error) {
	return r.update(ctx, id, nil, fn)
}

// ReplaceImage stores new image bytes and applies fn in the same transaction.
func (r *redisClient) ReplaceImage(ctx context.Context, id string, data []byte, fn UpdateFunc) (entity.Screen, error) {
	if data == nil {
		data = []byte{}
	}
	return r.update(ctx, id, data, fn)
}

func (r *redisClient) update(ctx context.Context, id string, image []byte, fn UpdateFunc) (entity.Screen, error) {
	var updated entity.Screen

	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, screenKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		var screen entity.Screen
		if err := jsoniter.Unmarshal(val, &screen); err != nil {
			return fmt.Errorf("unmarshal screen: %w", err)
		}
		if err := fn(&screen); err != nil {
			return err
		}

		payload, err := jsoniter.Marshal(screen)
		if err != nil {
			return fmt.Errorf("marshal screen: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, screenKey(id), payload, r.ttl)
			if image != nil {
				pipe.Set(ctx, imageKey(id), image, r.ttl)
			} else {
				pipe.Expire(ctx, imageKey(id), r.ttl)
			}
			return nil
		})
		if err == nil {
			updated = screen
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.client.Watch(ctx, txf, screenKey(id))
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			logrus.Debug(fmt.Sprintf("Screen %s changed during update, retrying", id))
			continue
		}
		return entity.Screen{}, err
	}

	return entity.Screen{}, fmt.Errorf("update screen %s: too many concurrent writers", id)
}

func (r *redisClient) GetImage(ctx context.Context, id string) ([]byte, error) {
	val, err := r.client.Get(ctx, imageKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return val, err
}

// GetScreenImage reads a screen and its image in one MULTI, so the bytes
// always belong to the returned generation. A screen without an image
// yields nil data.
func (r *redisClient) GetScreenImage(ctx context.Context, id string) (entity.Screen, []byte, error) {
	var screenCmd, imageCmd *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		screenCmd = pipe.Get(ctx, screenKey(id))
		imageCmd = pipe.Get(ctx, imageKey(id))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		logrus.Error(fmt.Sprintf("Error getting screen %s with image: %v", id, err))
		return entity.Screen{}, nil, err
	}

	val, err := screenCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.Screen{}, nil, ErrNotFound
	} else if err != nil {
		return entity.Screen{}, nil, err
	}

	var screen entity.Screen
	if err := jsoniter.Unmarshal(val, &screen); err != nil {
		return entity.Screen{}, nil, fmt.Errorf("unmarshal screen: %w", err)
	}

	data, err := imageCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return screen, nil, nil
	} else if err != nil {
		return entity.Screen{}, nil, err
	}

	return screen, data, nil
}

func (r *redisClient) AcquireLabelLock(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKey(id), time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error acquiring labeling lock for screen %s: %v", id, err))
		return false, err
	}
	return ok, nil
}

func (r *redisClient) ReleaseLabelLock(ctx context.Context, id string) error {
	return r.client.Del(ctx, lockKey(id)).Err()
}
