package gallery

import (
	"context"
	"errors"
	"mime"
	"path"
	"slices"
	"sync/atomic"
	"time"

	"github.com/damacus/iron-gallery/internal/encryption"
	"github.com/damacus/iron-gallery/internal/imageset"
	"github.com/damacus/iron-gallery/internal/logging"
	"github.com/damacus/iron-gallery/internal/metrics"
	"github.com/damacus/iron-gallery/internal/models"
	"github.com/damacus/iron-gallery/internal/services"
	"golang.org/x/sync/errgroup"
)

// ByteCache is the persistent store for downloaded payloads, keyed by file code
type ByteCache interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, data []byte) error
}

// HydratorOptions tunes batching
type HydratorOptions struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Update is emitted after every completed batch. Entries holds every entry up
// to and including the batch.
type Update struct {
	Batch   int
	Batches int
	Entries []models.ImageEntry
}

// Hydrator turns listing entries into viewable sources, one batch at a time
type Hydrator struct {
	opts  HydratorOptions
	cache ByteCache
	blobs *BlobStore
	pause func(ctx context.Context, d time.Duration) error
}

// NewHydrator creates a hydrator. cache may be nil.
func NewHydrator(opts HydratorOptions, cache ByteCache, blobs *BlobStore) *Hydrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 6
	}
	if blobs == nil {
		blobs = NewBlobStore()
	}
	return &Hydrator{opts: opts, cache: cache, blobs: blobs, pause: sleep}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run hydrates a copy of entries and calls emit after each batch. A cancelled
// run returns the context error and emits nothing further.
func (h *Hydrator) Run(ctx context.Context, backend services.ListingBackend, entries []models.ImageEntry, secret *Secret, emit func(Update)) error {
	work := slices.Clone(entries)
	size := h.opts.BatchSize
	batches := (len(work) + size - 1) / size

	for b := 0; b < batches; b++ {
		start, end := b*size, min((b+1)*size, len(work))
		if err := ctx.Err(); err != nil {
			h.abandon(work[start:])
			return err
		}
		batch := work[start:end]

		password, err := h.password(ctx, batch, secret)
		if err != nil {
			h.abandon(work[start:])
			return err
		}

		var decryptFailed atomic.Bool
		var g errgroup.Group
		for i := range batch {
			g.Go(func() error {
				if h.hydrateEntry(ctx, backend, &batch[i], password) {
					decryptFailed.Store(true)
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			h.abandon(work[start:])
			logging.WithContext(ctx).Debug("hydration cancelled", logging.Int("batch", b+1), logging.Int("batches", batches))
			return err
		}
		if decryptFailed.Load() && secret != nil {
			secret.Revoke()
		}

		metrics.RecordHydrationBatch()
		logging.WithContext(ctx).Debug("hydration batch done",
			logging.Int("batch", b+1),
			logging.Int("batches", batches),
			logging.Int("entries", end-start),
		)
		emit(Update{Batch: b + 1, Batches: batches, Entries: slices.Clone(work[:end])})

		if end < len(work) {
			if err := h.pause(ctx, h.opts.BatchDelay); err != nil {
				h.abandon(work[end:])
				return err
			}
		}
	}
	return nil
}

// abandon records every entry a cancelled run leaves without a result
func (h *Hydrator) abandon(rest []models.ImageEntry) int {
	n := 0
	for _, e := range rest {
		if !e.Hydrated() {
			n++
		}
	}
	metrics.RecordHydratedEntries(metrics.OutcomeCancelled, n)
	return n
}

// password acquires the secret when the batch still holds encrypted work.
// A declined prompt yields an empty password and no error.
func (h *Hydrator) password(ctx context.Context, batch []models.ImageEntry, secret *Secret) (string, error) {
	needed := false
	for _, e := range batch {
		if e.Encrypted && !e.Hydrated() {
			needed = true
			break
		}
	}
	if !needed || secret == nil {
		return "", nil
	}
	pw, err := secret.Acquire(ctx)
	if errors.Is(err, ErrDeclined) {
		return "", nil
	}
	return pw, err
}

// hydrateEntry fills in e.FullSrc or marks it failed. It reports whether the
// entry failed to decrypt.
func (h *Hydrator) hydrateEntry(ctx context.Context, backend services.ListingBackend, e *models.ImageEntry, password string) bool {
	if e.Hydrated() {
		return false
	}
	if e.Encrypted && password == "" {
		markFailed(e)
		return false
	}

	needBytes := e.Encrypted || backend.Mode() == models.ModeS3
	var data []byte
	var contentType string
	outcome := metrics.OutcomeOK

	if needBytes && h.cache != nil {
		cached, ok, err := h.cache.Get(e.Code)
		if err != nil {
			logging.WithContext(ctx).Warn("cache lookup failed", logging.String("code", e.Code), logging.Err(err))
		}
		metrics.RecordCacheLookup(ok)
		if ok {
			data = cached
			outcome = metrics.OutcomeCached
		}
	}

	if data == nil {
		if ctx.Err() != nil {
			return false
		}
		src, err := backend.Open(ctx, e.Code, needBytes)
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			logging.WithContext(ctx).Warn("hydration failed", logging.String("code", e.Code), logging.Err(err))
			markFailed(e)
			return false
		}
		if !needBytes {
			e.FullSrc = src.URL
			metrics.RecordHydratedEntry(outcome)
			return false
		}
		data = src.Bytes
		contentType = src.ContentType
		if h.cache != nil {
			if err := h.cache.Set(e.Code, data); err != nil {
				logging.WithContext(ctx).Warn("cache write failed", logging.String("code", e.Code), logging.Err(err))
			}
		}
	}

	if e.Encrypted {
		plain, err := encryption.Decrypt(password, data)
		if err != nil {
			logging.WithContext(ctx).Warn("decryption failed", logging.String("code", e.Code))
			metrics.RecordDecryptionFailure()
			markFailed(e)
			return true
		}
		data = plain
		e.Name = encryption.StripSuffix(e.Name)
		e.Title = imageset.Title(e.Name, e.UploadedAt)
		contentType = mime.TypeByExtension(path.Ext(e.Name))
	}

	if ctx.Err() != nil {
		return false
	}
	e.FullSrc = h.blobs.Put(data, contentType)
	metrics.RecordHydratedEntry(outcome)
	return false
}

func markFailed(e *models.ImageEntry) {
	e.Failed = true
	e.FullSrc = models.ErrorThumbnail
	metrics.RecordHydratedEntry(metrics.OutcomeFailed)
}
