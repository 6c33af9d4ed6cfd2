package redis

import (
	"context"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"os"
	"strconv"
	"time"
)

// ErrEmpty is returned by Pop when the wait elapses without a message.
var ErrEmpty = errors.New("queue is empty")

// IQueue is the list-backed work queue the image consumer reads from.
type IQueue interface {
	Pop(ctx context.Context, queue string, wait time.Duration) ([]byte, error)
	Push(ctx context.Context, queue string, payload []byte) error
	Close() error
}

type redisClient struct {
	client *redis.Client
}

func New() IQueue {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return NewFromClient(client)
}

// NewFromClient wraps an already configured client.
func NewFromClient(client *redis.Client) IQueue {
	return &redisClient{client: client}
}

func (r *redisClient) Pop(ctx context.Context, queue string, wait time.Duration) ([]byte, error) {
	payload, err := popValue(r.client.BLPop(ctx, wait, queue).Result())
	if err != nil {
		return nil, err
	}

	logrus.Debug(fmt.Sprintf("Popped message from %s", queue))
	return payload, nil
}

// popValue unpacks a BLPOP reply, which is [key, value] on success and
// redis.Nil when the wait elapsed.
func popValue(result []string, err error) ([]byte, error) {
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	} else if err != nil {
		return nil, err
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply of %d elements", len(result))
	}
	return []byte(result[1]), nil
}

func (r *redisClient) Push(ctx context.Context, queue string, payload []byte) error {
	if err := r.client.RPush(ctx, queue, payload).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error pushing to %s: %v", queue, err))
		return err
	}
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
