package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowguard/flowguard/internal/model"
)

// StreamAPI is the subset of the Kinesis client the stream destination
// uses. The concrete *kinesis.Client satisfies it.
type StreamAPI interface {
	PutRecord(ctx context.Context, in *kinesis.PutRecordInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error)
}

// Stream ships entries one record at a time. A failed record is
// skipped and reported; the rest of the batch still goes out.
type Stream struct {
	client  StreamAPI
	stream  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewStream(client StreamAPI, streamName string, timeout time.Duration, logger *zap.Logger) *Stream {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{client: client, stream: streamName, timeout: timeout, logger: logger}
}

func (s *Stream) Name() string { return KindKinesis }

// Sync delivers per entry. Success means every entry made it; a batch
// with any skipped entry reports success=false alongside the counts.
func (s *Stream) Sync(ctx context.Context, entries []model.LogEntry) SyncResult {
	syncID := uuid.NewString()
	if len(entries) == 0 {
		return SyncResult{Success: true, SyncID: syncID}
	}
	if s.client == nil {
		return failedResult(syncID, len(entries), "kinesis: client not configured")
	}

	result := SyncResult{SyncID: syncID}
	for i, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			result.EntriesSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("kinesis: entry %d: marshal: %v", i, err))
			continue
		}

		// Each record carries its own timeout so one slow call cannot
		// starve the rest of the batch.
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		_, err = s.client.PutRecord(callCtx, &kinesis.PutRecordInput{
			StreamName:   aws.String(s.stream),
			Data:         payload,
			PartitionKey: aws.String(partitionKey(entry)),
		})
		cancel()
		if err != nil {
			result.EntriesSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("kinesis: entry %d: %v", i, err))
			continue
		}
		result.EntriesProcessed++
	}

	result.Success = result.EntriesSkipped == 0
	s.logger.Debug("synced batch to kinesis",
		zap.String("sync_id", syncID),
		zap.Int("processed", result.EntriesProcessed),
		zap.Int("skipped", result.EntriesSkipped))
	return result
}

// partitionKey groups a session's records onto one shard so their
// relative order survives the trip.
func partitionKey(entry model.LogEntry) string {
	if entry.SessionID != "" {
		return entry.SessionID
	}
	return entry.Source
}
