// Package links implements temporary shareable image links: creation through
// the upload gate, lazy expiry on view and an optional background sweep.
package links

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"image.share/internal/blob"
	"image.share/internal/expiry"
	"image.share/internal/models"
	"image.share/internal/store"
	"image.share/internal/upload"
)

type Options struct {
	// BaseURL prefixes share URLs, e.g. "https://img.example.com".
	BaseURL     string
	Constraints upload.Constraints
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

type Service struct {
	registry    *Registry
	locks       stripedLock
	baseURL     string
	constraints upload.Constraints
	now         func() time.Time
	logger      *slog.Logger
}

func NewService(links store.Store, blobs blob.Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	constraints := opts.Constraints
	if constraints.MaxSizeBytes == 0 {
		constraints = upload.DefaultConstraints()
	}

	return &Service{
		registry:    NewRegistry(links, blobs, logger),
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		constraints: constraints,
		now:         now,
		logger:      logger.With(slog.String("component", "links")),
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

type Created struct {
	ID            string       `json:"id"`
	ShareURL      string       `json:"share_url"`
	ExpiresAt     time.Time    `json:"expires_at"`
	DurationClass expiry.Class `json:"expiry_duration"`
}

type Viewed struct {
	Link         *models.ShareLink
	Payload      []byte
	RemainingTTL time.Duration
}

// Create validates the upload and publishes it under a new link. Unknown
// duration classes fall back to one day.
func (s *Service) Create(ctx context.Context, f upload.File, duration string) (*Created, error) {
	file, err := upload.Validate(f, s.constraints)
	if err != nil {
		uploadsRejectedTotal.Inc()
		return nil, err
	}

	link, err := s.registry.Create(ctx, NewLink{
		Payload:          file.Data,
		OriginalFilename: file.Name,
		ContentType:      file.ContentType,
		Ext:              file.Format,
		Class:            expiry.Normalize(duration),
	}, s.now())
	if err != nil {
		s.logger.Error("failed to create link", slog.String("error", err.Error()))
		return nil, err
	}

	linksCreatedTotal.Inc()
	s.logger.Info("link created",
		slog.String("id", link.ID),
		slog.String("expiry_duration", link.DurationClass),
		slog.Time("expires_at", link.ExpiresAt),
		slog.Int64("size", link.SizeBytes),
	)

	return &Created{
		ID:            link.ID,
		ShareURL:      s.ShareURL(link),
		ExpiresAt:     link.ExpiresAt,
		DurationClass: expiry.Class(link.DurationClass),
	}, nil
}

func (s *Service) ShareURL(link *models.ShareLink) string {
	return s.baseURL + link.SharePath()
}

func (s *Service) View(ctx context.Context, id string) (*Viewed, error) {
	return s.ViewAt(ctx, id, s.now())
}

// ViewAt resolves id at the given instant. An expired link is purged and
// reported as ErrExpired; an active one has its view counted and its payload
// returned.
func (s *Service) ViewAt(ctx context.Context, id string, now time.Time) (*Viewed, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	link, err := s.registry.Resolve(ctx, id)
	if err != nil {
		s.countView(err)
		return nil, err
	}
	if link.IsExpired(now) {
		err := s.expire(ctx, link, "view")
		s.countView(err)
		return nil, err
	}

	updated, err := s.registry.RecordView(ctx, id, now)
	switch {
	case errors.Is(err, ErrExpired):
		err = s.expire(ctx, link, "view")
		s.countView(err)
		return nil, err
	case errors.Is(err, ErrNotFound):
		// It existed a moment ago; only expiry removes links.
		s.countView(ErrExpired)
		return nil, ErrExpired
	case err != nil:
		s.countView(err)
		return nil, err
	}

	payload, err := s.registry.Payload(ctx, updated)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			err = s.missingPayload(ctx, updated)
		}
		s.countView(err)
		return nil, err
	}

	s.countView(nil)
	return &Viewed{
		Link:         updated,
		Payload:      payload,
		RemainingTTL: updated.Remaining(now),
	}, nil
}

// missingPayload handles a counted view whose payload vanished. That only
// happens when another instance purged the link concurrently; anything else
// is an inconsistent store.
func (s *Service) missingPayload(ctx context.Context, link *models.ShareLink) error {
	if _, err := s.registry.Resolve(ctx, link.ID); errors.Is(err, ErrNotFound) {
		return ErrExpired
	}
	s.logger.Error("link record without payload",
		slog.String("id", link.ID),
		slog.String("ref", link.StoredObjectRef),
	)
	return storageErr("reading payload", blob.ErrNotFound)
}

// Status reports a link without counting a view. Expired links are purged
// exactly as a view would.
func (s *Service) Status(ctx context.Context, id string) (*models.ShareLink, error) {
	return s.StatusAt(ctx, id, s.now())
}

func (s *Service) StatusAt(ctx context.Context, id string, now time.Time) (*models.ShareLink, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	link, err := s.registry.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.IsExpired(now) {
		return nil, s.expire(ctx, link, "status")
	}
	return link, nil
}

// expire purges link and returns ErrExpired, or the purge failure.
func (s *Service) expire(ctx context.Context, link *models.ShareLink, reason string) error {
	if err := s.registry.Purge(ctx, link.ID); err != nil {
		s.logger.Error("failed to purge expired link",
			slog.String("id", link.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	linksPurgedTotal.WithLabelValues(reason).Inc()
	s.logger.Info("expired link purged",
		slog.String("id", link.ID),
		slog.String("reason", reason),
		slog.Int64("views", link.ViewCount),
	)
	return ErrExpired
}

func (s *Service) countView(err error) {
	outcome := "served"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrExpired):
		outcome = "expired"
	default:
		outcome = "error"
	}
	linkViewsTotal.WithLabelValues(outcome).Inc()
}
