package links

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"image.share/internal/blob"
	"image.share/internal/crypto"
	"image.share/internal/expiry"
	"image.share/internal/models"
	"image.share/internal/store"
)

// maxIDAttempts bounds retries after an id collision. With 122 random bits a
// second attempt is already theoretical.
const maxIDAttempts = 3

// Registry owns ShareLink records together with their payloads. A record and
// its payload are created together and removed together.
type Registry struct {
	links  store.Store
	blobs  blob.Store
	logger *slog.Logger
}

func NewRegistry(links store.Store, blobs blob.Store, logger *slog.Logger) *Registry {
	return &Registry{
		links:  links,
		blobs:  blobs,
		logger: logger.With(slog.String("component", "registry")),
	}
}

type NewLink struct {
	Payload          []byte
	OriginalFilename string
	ContentType      string
	// Ext is the extension of the stored payload, derived from the decoded
	// format rather than the filename.
	Ext   string
	Class expiry.Class
}

// Create stores the payload, then the record. If the record cannot be saved
// the payload is removed again, so a failed Create leaves nothing behind.
func (r *Registry) Create(ctx context.Context, in NewLink, now time.Time) (*models.ShareLink, error) {
	ref, err := r.blobs.Put(ctx, in.Payload, in.Ext)
	if err != nil {
		return nil, storageErr("storing payload", err)
	}

	now = now.UTC().Truncate(time.Microsecond)
	class := expiry.Normalize(string(in.Class))

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := crypto.GenerateID()
		if err != nil {
			r.discard(ctx, ref)
			return nil, storageErr("generating id", err)
		}

		link := &models.ShareLink{
			ID:               id,
			StoredObjectRef:  ref,
			OriginalFilename: in.OriginalFilename,
			DurationClass:    string(class),
			ContentType:      in.ContentType,
			SizeBytes:        int64(len(in.Payload)),
			CreatedAt:        now,
			ExpiresAt:        expiry.Compute(now, class),
		}

		err = r.links.Save(ctx, link)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, store.ErrDuplicate) {
			r.logger.Warn("link id collision, retrying", slog.Int("attempt", attempt+1))
			continue
		}
		r.discard(ctx, ref)
		return nil, storageErr("saving link", err)
	}

	r.discard(ctx, ref)
	return nil, storageErr("saving link", store.ErrDuplicate)
}

// discard removes a payload whose record never made it. It ignores
// cancellation of ctx so an aborted request does not leave the blob behind.
func (r *Registry) discard(ctx context.Context, ref string) {
	if err := r.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		r.logger.Error("failed to remove payload of unsaved link",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}
}

// Resolve looks a link up by its exact id.
func (r *Registry) Resolve(ctx context.Context, id string) (*models.ShareLink, error) {
	link, err := r.links.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr("resolving link", err)
	}
	return link, nil
}

// RecordView counts one view. It returns ErrExpired, without counting, when
// the link is expired at now.
func (r *Registry) RecordView(ctx context.Context, id string, now time.Time) (*models.ShareLink, error) {
	link, err := r.links.IncrementViews(ctx, id, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExpired) {
			return nil, err
		}
		return nil, storageErr("recording view", err)
	}
	return link, nil
}

// Payload returns the stored bytes of a link.
func (r *Registry) Payload(ctx context.Context, link *models.ShareLink) ([]byte, error) {
	data, err := r.blobs.Get(ctx, link.StoredObjectRef)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, err
		}
		return nil, storageErr("reading payload", err)
	}
	return data, nil
}

// Purge removes the payload and then the record. Purging an unknown id is a
// no-op. If the payload cannot be removed the record stays, so the next
// access retries instead of leaving an orphaned file.
func (r *Registry) Purge(ctx context.Context, id string) error {
	link, err := r.links.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return storageErr("purging link", err)
	}

	if err := r.blobs.Delete(ctx, link.StoredObjectRef); err != nil {
		return storageErr("deleting payload", err)
	}
	if err := r.links.Delete(ctx, id); err != nil {
		return storageErr("deleting link", err)
	}
	return nil
}

// Expired lists candidate ids for sweeping. Callers re-check each one.
func (r *Registry) Expired(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := r.links.Expired(ctx, now)
	if err != nil {
		return nil, storageErr("listing expired links", err)
	}
	return ids, nil
}
