package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

const uploadStatusTTL = 24 * time.Hour

// UploadTracker keeps upload progress. Statuses are mirrored to the cache so
// any instance can answer a status poll.
type UploadTracker struct {
	cache *CacheService
	now   func() time.Time

	mu       sync.RWMutex
	statuses map[string]models.UploadStatus
}

// NewUploadTracker constructs a tracker. cache may be nil.
func NewUploadTracker(cache *CacheService) *UploadTracker {
	return &UploadTracker{cache: cache, now: time.Now, statuses: make(map[string]models.UploadStatus)}
}

func uploadKey(id string) string { return "uploads:" + id }

// Put stores a status.
func (t *UploadTracker) Put(ctx context.Context, status models.UploadStatus) {
	status.UpdatedAt = t.now().UTC().Format(time.RFC3339)
	t.mu.Lock()
	t.statuses[status.ID] = status
	t.prune()
	t.mu.Unlock()
	if t.cache.Enabled() {
		_ = t.cache.Set(ctx, uploadKey(status.ID), trackedUpload{Status: status, OwnerID: status.OwnerID}, uploadStatusTTL)
	}
}

// Update applies fn to the stored status.
func (t *UploadTracker) Update(ctx context.Context, id string, fn func(*models.UploadStatus)) {
	status, err := t.Get(ctx, id)
	if err != nil {
		return
	}
	fn(status)
	t.Put(ctx, *status)
}

// Get returns a status or ErrNotFound.
func (t *UploadTracker) Get(ctx context.Context, id string) (*models.UploadStatus, error) {
	t.mu.RLock()
	status, ok := t.statuses[id]
	t.mu.RUnlock()
	if ok {
		return &status, nil
	}
	if t.cache.Enabled() {
		var tracked trackedUpload
		if hit, err := t.cache.Get(ctx, uploadKey(id), &tracked); err == nil && hit {
			tracked.Status.OwnerID = tracked.OwnerID
			return &tracked.Status, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
}

// prune drops finished statuses older than the TTL. Callers hold mu.
func (t *UploadTracker) prune() {
	cutoff := t.now().Add(-uploadStatusTTL)
	for id, status := range t.statuses {
		if status.State != models.UploadDone && status.State != models.UploadFailed {
			continue
		}
		updated, err := time.Parse(time.RFC3339, status.UpdatedAt)
		if err == nil && updated.Before(cutoff) {
			delete(t.statuses, id)
		}
	}
}

// trackedUpload keeps the owner, which UploadStatus hides from JSON.
type trackedUpload struct {
	Status  models.UploadStatus `json:"status"`
	OwnerID string              `json:"ownerId"`
}
