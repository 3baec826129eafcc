package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeObjectAPI captures PutObject inputs and fails on demand.
type fakeObjectAPI struct {
	putErr error
	inputs []*s3.PutObjectInput
	bodies [][]byte
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestObjectStoreSyncWritesOneDocument(t *testing.T) {
	api := &fakeObjectAPI{}
	o := NewObjectStore(api, S3Config{Bucket: "audit-logs", Prefix: "flowguard"}, 0, nil)

	result := o.Sync(context.Background(), syncEntries(4))
	if !result.Success {
		t.Fatalf("sync failed: %v", result.Errors)
	}
	if result.EntriesProcessed != 4 {
		t.Errorf("processed = %d", result.EntriesProcessed)
	}
	if len(api.inputs) != 1 {
		t.Fatalf("put calls = %d, want 1", len(api.inputs))
	}

	in := api.inputs[0]
	if aws.ToString(in.Bucket) != "audit-logs" {
		t.Errorf("bucket = %q", aws.ToString(in.Bucket))
	}
	if aws.ToString(in.ContentType) != "application/json" {
		t.Errorf("content type = %q", aws.ToString(in.ContentType))
	}

	var doc objectDoc
	if err := json.Unmarshal(api.bodies[0], &doc); err != nil {
		t.Fatalf("body is not an export document: %v", err)
	}
	if doc.EntryCount != 4 || len(doc.Entries) != 4 {
		t.Errorf("document carries %d/%d entries", doc.EntryCount, len(doc.Entries))
	}
	if doc.SyncID != result.SyncID {
		t.Errorf("document sync id %q != result %q", doc.SyncID, result.SyncID)
	}
}

func TestObjectStoreKeyIsTimePartitioned(t *testing.T) {
	api := &fakeObjectAPI{}
	o := NewObjectStore(api, S3Config{Bucket: "audit-logs", Prefix: "flowguard"}, 0, nil)

	result := o.Sync(context.Background(), syncEntries(1))
	if !result.Success {
		t.Fatalf("sync failed: %v", result.Errors)
	}

	now := time.Now().UTC()
	want := regexp.MustCompile(fmt.Sprintf(`^flowguard/%04d/%02d/%02d/\d{2}/%s\.json$`,
		now.Year(), now.Month(), now.Day(), regexp.QuoteMeta(result.SyncID)))
	key := aws.ToString(api.inputs[0].Key)
	if !want.MatchString(key) {
		t.Errorf("key = %q, want year/month/day/hour/syncId layout", key)
	}
}

func TestObjectStoreEncryptionOptions(t *testing.T) {
	api := &fakeObjectAPI{}
	cfg := S3Config{Bucket: "audit-logs", KMSKeyID: "alias/flowguard"}
	o := NewObjectStore(api, cfg, 0, nil)

	if result := o.Sync(context.Background(), syncEntries(1)); !result.Success {
		t.Fatalf("sync failed: %v", result.Errors)
	}

	in := api.inputs[0]
	if in.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms {
		t.Errorf("sse = %q", in.ServerSideEncryption)
	}
	if aws.ToString(in.SSEKMSKeyId) != "alias/flowguard" {
		t.Errorf("kms key = %q", aws.ToString(in.SSEKMSKeyId))
	}
}

func TestObjectStoreNoEncryptionByDefault(t *testing.T) {
	api := &fakeObjectAPI{}
	o := NewObjectStore(api, S3Config{Bucket: "audit-logs"}, 0, nil)

	if result := o.Sync(context.Background(), syncEntries(1)); !result.Success {
		t.Fatalf("sync failed: %v", result.Errors)
	}
	if api.inputs[0].ServerSideEncryption != "" {
		t.Errorf("unexpected sse = %q", api.inputs[0].ServerSideEncryption)
	}
}

func TestObjectStorePutFailureSkipsWholeBatch(t *testing.T) {
	api := &fakeObjectAPI{putErr: errors.New("no such bucket")}
	o := NewObjectStore(api, S3Config{Bucket: "missing"}, 0, nil)

	result := o.Sync(context.Background(), syncEntries(6))
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.EntriesProcessed != 0 || result.EntriesSkipped != 6 {
		t.Errorf("processed=%d skipped=%d, want 0/6 (all-or-nothing)", result.EntriesProcessed, result.EntriesSkipped)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestObjectStoreNilClient(t *testing.T) {
	o := NewObjectStore(nil, S3Config{Bucket: "audit-logs"}, 0, nil)

	result := o.Sync(context.Background(), syncEntries(2))
	if result.Success {
		t.Fatal("expected failure for unconfigured client")
	}
	if result.EntriesSkipped != 2 {
		t.Errorf("skipped = %d", result.EntriesSkipped)
	}
}
