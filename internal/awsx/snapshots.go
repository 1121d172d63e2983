package awsx

import (
	"bytes"
	"context"
	"encoding/json"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"employee-sync/internal/events"
)

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Mirror receives a best-effort copy of every snapshot, e.g. an SFTP drop
// directory consumed by the client's own tooling.
type Mirror interface {
	Put(ctx context.Context, name string, body []byte) error
}

// SnapshotStore persists per-phase audit snapshots to S3. Writes are
// best-effort: failures are reported through the event sink and never
// abort the run.
type SnapshotStore struct {
	api    s3API
	bucket string
	prefix string
	sink   *events.Sink
	mirror Mirror
}

func NewSnapshotStore(cfg aws.Config, bucket, prefix string, sink *events.Sink) *SnapshotStore {
	return &SnapshotStore{
		api:    s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		sink:   sink,
	}
}

// WithMirror attaches a secondary best-effort destination.
func (s *SnapshotStore) WithMirror(m Mirror) *SnapshotStore {
	s.mirror = m
	return s
}

// SaveJSON serializes v and stores it under name.
func (s *SnapshotStore) SaveJSON(ctx context.Context, v any, name string) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.sink.Error("snapshot_marshal_failed", "snapshot_marshal_failed", "name", name, "error", err.Error())
		return
	}
	s.put(ctx, name, body, contentTypeJSON)
}

// SaveHTML stores an HTML document under name.
func (s *SnapshotStore) SaveHTML(ctx context.Context, html, name string) {
	s.put(ctx, name, []byte(html), contentTypeHTML)
}

func (s *SnapshotStore) put(ctx context.Context, name string, body []byte, contentType string) {
	key := path.Join(s.prefix, name)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.sink.Error("snapshot_write_failed", "snapshot_write_failed",
			"bucket", s.bucket, "key", key, "error", err.Error())
	} else {
		s.sink.Info("snapshot_saved", "snapshot_saved", "bucket", s.bucket, "key", key)
	}

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, name, body); err != nil {
			s.sink.Error("snapshot_mirror_failed", "snapshot_mirror_failed",
				"name", name, "error", err.Error())
		}
	}
}
