package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"asset-library-backend/internal/shared"

	"github.com/hibiken/asynq"
)

// Client enqueues background tasks
type Client struct {
	client *asynq.Client
}

func NewClient(redisOpt asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpt)}
}

// EnqueueBuildArchive queues an archive build for one revision of an asset.
// A build already queued or retained for that revision is not duplicated;
// its id is returned with queued=false. A new commit gets a new id.
func (c *Client) EnqueueBuildArchive(ctx context.Context, assetName, revision, requestedBy string) (taskID string, queued bool, err error) {
	payload, err := json.Marshal(shared.BuildArchivePayload{
		AssetName:   assetName,
		Revision:    revision,
		RequestedBy: requestedBy,
	})
	if err != nil {
		return "", false, fmt.Errorf("encode archive payload: %w", err)
	}

	id := ArchiveTaskID(assetName, revision)
	task := asynq.NewTask(shared.TypeBuildArchive, payload)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueArchive),
		asynq.TaskID(id),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(time.Hour),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return id, false, nil
		}
		return "", false, fmt.Errorf("enqueue archive build: %w", err)
	}
	return info.ID, true, nil
}

// ArchiveTaskID is the task id of the archive build of one asset revision
func ArchiveTaskID(assetName, revision string) string {
	return "archive:" + assetName + ":" + revision
}

func (c *Client) Close() error {
	return c.client.Close()
}
