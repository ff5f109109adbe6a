// Package hierarchical implements the hierarchical profile store on an S3
// compatible object tree.
//
// Each profile is one JSON document at <prefix>/<user_id>/profile.json.
// Writes overwrite the document, so a repeated put is idempotent.
package hierarchical

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"profile-store/core/profile"
	"profile-store/core/storage"
	"profile-store/core/store"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const (
	objectName = "profile.json"
	numWorkers = 8
)

// Adapter is the hierarchical store.Adapter.
type Adapter struct {
	client storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// New creates a hierarchical adapter rooted at bucket/prefix.
func New(client storage.Client, bucket, prefix string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Name returns store.Hierarchical.
func (a *Adapter) Name() store.Name { return store.Hierarchical }

// ObjectKey returns the object holding userID's profile.
func (a *Adapter) ObjectKey(userID string) string {
	if a.prefix == "" {
		return userID + "/" + objectName
	}
	return a.prefix + "/" + userID + "/" + objectName
}

func (a *Adapter) userIDFromKey(key string) (string, bool) {
	rest := key
	if a.prefix != "" {
		if !strings.HasPrefix(key, a.prefix+"/") {
			return "", false
		}
		rest = strings.TrimPrefix(key, a.prefix+"/")
	}
	id, file, ok := strings.Cut(rest, "/")
	if !ok || file != objectName || id == "" {
		return "", false
	}
	return id, true
}

// Ping checks that the bucket is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return store.Unavailable(store.Hierarchical, "ping", err)
	}
	if !exists {
		return store.Unavailable(store.Hierarchical, "ping", fmt.Errorf("bucket %s does not exist", a.bucket))
	}
	return nil
}

// GetProfile reads the profile document; a missing object yields (nil, nil).
func (a *Adapter) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	reader, err := a.client.GetObject(ctx, a.bucket, a.ObjectKey(userID), minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, store.Unavailable(store.Hierarchical, "get", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, store.Unavailable(store.Hierarchical, "get", err)
	}

	p, err := decode(data, userID)
	if err != nil {
		return nil, store.Unavailable(store.Hierarchical, "get", fmt.Errorf("failed to decode %s: %w", a.ObjectKey(userID), err))
	}
	return &p, nil
}

// PutProfile writes the profile document of userID.
func (a *Adapter) PutProfile(ctx context.Context, userID string, p profile.Profile) (*profile.Profile, error) {
	p.UserID = userID
	data, err := json.Marshal(p.Record())
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile %s: %w", userID, err)
	}
	_, err = a.client.PutObject(ctx, a.bucket, a.ObjectKey(userID), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return nil, store.Unavailable(store.Hierarchical, "put", err)
	}
	return &p, nil
}

// PutProfiles writes documents concurrently with a small worker pool.
func (a *Adapter) PutProfiles(ctx context.Context, profiles []profile.Profile) error {
	if len(profiles) == 0 {
		return nil
	}

	jobs := make(chan profile.Profile, len(profiles))
	errorCh := make(chan error, len(profiles))
	for _, p := range profiles {
		jobs <- p
	}
	close(jobs)

	workers := numWorkers
	if len(profiles) < workers {
		workers = len(profiles)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for p := range jobs {
				if _, err := a.PutProfile(ctx, p.UserID, p); err != nil {
					errorCh <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errorCh)

	var errs []error
	for err := range errorCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("batch write had %d errors: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// ListUserIDs walks the tree and returns every user id, sorted.
func (a *Adapter) ListUserIDs(ctx context.Context) ([]string, error) {
	prefix := ""
	if a.prefix != "" {
		prefix = a.prefix + "/"
	}
	var ids []string
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, store.Unavailable(store.Hierarchical, "list", obj.Err)
		}
		if id, ok := a.userIDFromKey(obj.Key); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListFeedCandidates reads documents in id order until limit active,
// non-suspended profiles other than excludeUserID are collected.
func (a *Adapter) ListFeedCandidates(ctx context.Context, excludeUserID string, limit int) ([]profile.Profile, error) {
	ids, err := a.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	var out []profile.Profile
	for _, id := range ids {
		if id == excludeUserID {
			continue
		}
		p, err := a.GetProfile(ctx, id)
		if err != nil {
			if store.IsUnavailable(err) {
				return nil, err
			}
			a.logger.Warn("Skipping unreadable profile document", zap.String("user_id", id), zap.Error(err))
			continue
		}
		if p == nil || !p.IsActive || p.IsSuspended {
			continue
		}
		out = append(out, *p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func decode(data []byte, userID string) (profile.Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec profile.Record
	if err := dec.Decode(&rec); err != nil {
		return profile.Profile{}, err
	}
	if id, _ := rec[profile.KeyUserID].(string); id == "" {
		rec[profile.KeyUserID] = userID
	}
	return profile.FromRecord(rec), nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
