// Package avatar resolves a public image URL for a chat's profile photo.
// Photos are content-addressed by (entity id, photo id): once uploaded to
// the image host, the mapping is persisted and the same photo is never
// uploaded again.
package avatar

import (
	"context"
	"fmt"
	"log/slog"

	"tgrelay/internal/domain"
)

// Resolver is the profile-photo cache front: warm keys answer from the
// persisted mapping after a liveness check, cold keys fetch the photo and
// upload it.
type Resolver struct {
	cache  *Cache
	host   *HostClient
	logger *slog.Logger
}

func NewResolver(cache *Cache, host *HostClient, logger *slog.Logger) *Resolver {
	return &Resolver{cache: cache, host: host, logger: logger}
}

// ResolveURL returns the public avatar URL for the entity's current photo,
// or "" when no photo exists or enrichment failed. Failures are logged, not
// returned: a missing avatar never blocks a relay.
func (r *Resolver) ResolveURL(ctx context.Context, entityID int64, photoID string, fetch domain.FetchFunc) string {
	if photoID == "" {
		return ""
	}
	filename := fmt.Sprintf("%d-%s.jpg", entityID, photoID)

	unlock := r.cache.LockKey(filename)
	defer unlock()

	code, ok, err := r.cache.Get(filename)
	if err != nil {
		r.logger.Error("avatar cache read failed", "key", filename, "err", err)
		return ""
	}
	if ok {
		url := r.host.ImageURL(code, filename)
		if r.host.Exists(ctx, url) {
			return url
		}
		// Entry expired host-side; fall through to re-upload.
		r.logger.Info("avatar cache entry stale", "key", filename)
	} else {
		r.logger.Info("avatar cache miss", "key", filename)
	}

	image, err := fetch(ctx)
	if err != nil {
		r.logger.Error("profile photo fetch failed", "entity_id", entityID, "err", err)
		return ""
	}

	url, err := r.host.Upload(ctx, filename, image)
	if err != nil {
		r.logger.Error("profile photo upload failed", "key", filename, "err", err)
		return ""
	}

	code, err = CodeFromURL(url)
	if err != nil {
		// The host served the image but we cannot cache it; next event
		// for this photo re-uploads.
		r.logger.Error("cannot parse host code from upload url", "url", url, "err", err)
		return url
	}
	if err := r.cache.Put(filename, code); err != nil {
		r.logger.Error("avatar cache write failed", "key", filename, "err", err)
	}
	return url
}
