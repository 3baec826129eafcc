package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowguard/flowguard/internal/model"
)

// LogsAPI is the subset of the CloudWatch Logs client the durable log
// destination uses. The concrete *cloudwatchlogs.Client satisfies it.
type LogsAPI interface {
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// DurableLog ships batches to a CloudWatch log group. Each sync
// attempt writes one fresh log stream so retries never interleave.
type DurableLog struct {
	client  LogsAPI
	group   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewDurableLog(client LogsAPI, logGroup string, timeout time.Duration, logger *zap.Logger) *DurableLog {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DurableLog{client: client, group: logGroup, timeout: timeout, logger: logger}
}

func (d *DurableLog) Name() string { return KindCloudWatch }

// Sync is all-or-nothing: any failure skips the whole batch. A stream
// that already exists is not a failure; a crashed earlier attempt may
// have left it behind.
func (d *DurableLog) Sync(ctx context.Context, entries []model.LogEntry) SyncResult {
	syncID := uuid.NewString()
	if len(entries) == 0 {
		return SyncResult{Success: true, SyncID: syncID}
	}
	if d.client == nil {
		return failedResult(syncID, len(entries), "cloudwatch: client not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	stream := fmt.Sprintf("flowguard-%s-%s", time.Now().UTC().Format("2006-01-02"), syncID)
	_, err := d.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(d.group),
		LogStreamName: aws.String(stream),
	})
	if err != nil {
		var exists *cwltypes.ResourceAlreadyExistsException
		if !errors.As(err, &exists) {
			return failedResult(syncID, len(entries), fmt.Sprintf("cloudwatch: create stream %s: %v", stream, err))
		}
	}

	events := make([]cwltypes.InputLogEvent, 0, len(entries))
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return failedResult(syncID, len(entries), fmt.Sprintf("cloudwatch: marshal entry: %v", err))
		}
		events = append(events, cwltypes.InputLogEvent{
			Message:   aws.String(string(line)),
			Timestamp: aws.Int64(entry.Timestamp.UnixMilli()),
		})
	}
	// PutLogEvents rejects batches that are not in timestamp order.
	sort.Slice(events, func(i, j int) bool {
		return aws.ToInt64(events[i].Timestamp) < aws.ToInt64(events[j].Timestamp)
	})

	_, err = d.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(d.group),
		LogStreamName: aws.String(stream),
		LogEvents:     events,
	})
	if err != nil {
		return failedResult(syncID, len(entries), fmt.Sprintf("cloudwatch: put events: %v", err))
	}

	d.logger.Debug("synced batch to cloudwatch",
		zap.String("sync_id", syncID),
		zap.String("stream", stream),
		zap.Int("entries", len(entries)))
	return SyncResult{Success: true, EntriesProcessed: len(entries), SyncID: syncID}
}
