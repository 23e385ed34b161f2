package gallery

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/damacus/iron-gallery/internal/events"
	"github.com/damacus/iron-gallery/internal/imageset"
	"github.com/damacus/iron-gallery/internal/logging"
	"github.com/damacus/iron-gallery/internal/models"
	"github.com/damacus/iron-gallery/internal/services"
)

var (
	// ErrSuperseded is returned when a newer navigation replaced this one
	ErrSuperseded = errors.New("navigation superseded")
	// ErrNoView is returned by operations that need a loaded folder
	ErrNoView = errors.New("no folder loaded")
)

const DefaultPageSize = 100

// View is a snapshot of the current folder
type View struct {
	Generation  uint64                `json:"generation"`
	Mode        models.ConnectionMode `json:"mode"`
	Path        string                `json:"path"`
	FolderID    int64                 `json:"folderId"`
	Breadcrumbs []models.Breadcrumb   `json:"breadcrumbs"`
	Folders     []models.FolderEntry  `json:"folders"`
	Order       models.SortOrder      `json:"order"`
	Page        int                   `json:"page"`
	PageCount   int                   `json:"pageCount"`
	Total       int                   `json:"total"`
	Images      []models.ImageEntry   `json:"images"`
}

// NavigatorOptions wires a navigator to its collaborators
type NavigatorOptions struct {
	Backend   services.ListingBackend
	Cache     ByteCache
	Blobs     *BlobStore
	Events    *events.Broadcaster
	Sorter    *imageset.Sorter
	PageSize  int
	Hydration HydratorOptions
}

type folderState struct {
	path        string
	folderID    int64
	breadcrumbs []models.Breadcrumb
	folders     []models.FolderEntry
	images      []models.ImageEntry
}

// Navigator sequences resolve, list, classify and hydrate for one backend.
// Every navigation bumps the generation; results from an older generation
// or an older hydration run are dropped.
type Navigator struct {
	backend  services.ListingBackend
	resolver *Resolver
	hydrator *Hydrator
	blobs    *BlobStore
	events   *events.Broadcaster
	sorter   *imageset.Sorter
	secret   *Secret
	pageSize int

	mu         sync.Mutex
	generation uint64
	run        uint64
	cancelRun  context.CancelFunc
	order      models.SortOrder
	page       int
	state      *folderState
}

func NewNavigator(opts NavigatorOptions) *Navigator {
	if opts.Blobs == nil {
		opts.Blobs = NewBlobStore()
	}
	if opts.Sorter == nil {
		opts.Sorter = imageset.Default()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	n := &Navigator{
		backend:  opts.Backend,
		resolver: NewResolver(),
		hydrator: NewHydrator(opts.Hydration, opts.Cache, opts.Blobs),
		blobs:    opts.Blobs,
		events:   opts.Events,
		sorter:   opts.Sorter,
		pageSize: opts.PageSize,
		order:    models.SortByName,
		page:     1,
	}
	n.secret = NewSecret(
		func() { n.publish(events.Event{Type: events.EventPasswordRequired}) },
		func() {
			n.publish(events.Event{Type: events.EventPasswordRevoked, Message: "Unable to decrypt file, check the password"})
		},
	)
	return n
}

// Backend returns the listing backend in use
func (n *Navigator) Backend() services.ListingBackend {
	return n.backend
}

// Secret returns the session's decryption password capability
func (n *Navigator) Secret() *Secret {
	return n.secret
}

// Resolver returns the path memo
func (n *Navigator) Resolver() *Resolver {
	return n.resolver
}

// Navigate loads the folder at navPath and makes it current
func (n *Navigator) Navigate(ctx context.Context, navPath string) (*View, error) {
	path := NormalizeNavPath(navPath)

	n.mu.Lock()
	n.generation++
	gen := n.generation
	n.cancelRunLocked()
	order := n.order
	n.mu.Unlock()

	start := time.Now()
	state, err := n.load(ctx, path, order)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.generation {
		return nil, ErrSuperseded
	}
	n.blobs.RevokeAll()
	n.state = state
	n.page = 1

	logging.Debug("navigated",
		logging.String("path", path),
		logging.Int("folders", len(state.folders)),
		logging.Int("images", len(state.images)),
		logging.Duration("took", time.Since(start)),
	)
	return n.viewLocked(), nil
}

func (n *Navigator) load(ctx context.Context, path string, order models.SortOrder) (*folderState, error) {
	state := &folderState{path: path}
	ref := services.FolderRef{Path: path}

	if n.backend.Mode() == models.ModeS3 {
		state.breadcrumbs = S3Breadcrumbs(path)
	} else {
		res, err := n.resolver.Resolve(ctx, path, n.listChildren(order))
		if err != nil {
			return nil, err
		}
		state.breadcrumbs = res.Breadcrumbs
		state.folderID = res.FolderID
		ref.ID = res.FolderID
	}

	result, err := n.backend.ListFolder(ctx, ref, order)
	if err != nil {
		return nil, err
	}

	state.folders = result.Folders
	if n.backend.Mode() != models.ModeS3 {
		state.folders = n.resolver.Remember(path, result.Folders)
	}
	state.images = n.sorter.Sorted(imageset.ExtractImages(result.Files), order)
	return state, nil
}

func (n *Navigator) listChildren(order models.SortOrder) ListFunc {
	return func(ctx context.Context, parentID int64) ([]models.FolderEntry, error) {
		result, err := n.backend.ListFolder(ctx, services.FolderRef{ID: parentID}, order)
		if err != nil {
			return nil, err
		}
		return result.Folders, nil
	}
}

// View returns the current snapshot
func (n *Navigator) View() (*View, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == nil {
		return nil, ErrNoView
	}
	return n.viewLocked(), nil
}

// Resort reorders the loaded images without listing again
func (n *Navigator) Resort(order models.SortOrder) (*View, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.order = order
	if n.state == nil {
		return nil, ErrNoView
	}
	n.state.images = n.sorter.Sorted(n.state.images, order)
	return n.viewLocked(), nil
}

// SetPage selects the visible page, clamped to the valid range
func (n *Navigator) SetPage(page int) (*View, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == nil {
		return nil, ErrNoView
	}
	n.page = n.clampPageLocked(page)
	return n.viewLocked(), nil
}

// Image returns one loaded image by code
func (n *Navigator) Image(code string) (models.ImageEntry, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == nil {
		return models.ImageEntry{}, false
	}
	for _, img := range n.state.images {
		if img.Code == code {
			return img, true
		}
	}
	return models.ImageEntry{}, false
}

// Delete removes a file remotely and drops it from the snapshot
func (n *Navigator) Delete(ctx context.Context, code string) error {
	if err := n.backend.DeleteFile(ctx, code); err != nil {
		return err
	}

	n.mu.Lock()
	if n.state != nil {
		n.state.images = slices.DeleteFunc(n.state.images, func(img models.ImageEntry) bool {
			if img.Code == code && img.FullSrc != "" {
				n.blobs.Revoke(img.FullSrc)
			}
			return img.Code == code
		})
		n.page = n.clampPageLocked(n.page)
	}
	gen := n.generation
	n.mu.Unlock()

	n.publish(events.Event{Type: events.EventDeleted, Generation: gen, Code: code})
	return nil
}

type hydrationRun struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	id         uint64
	entries    []models.ImageEntry
}

// prepare supersedes any running hydration and captures the page to hydrate
func (n *Navigator) prepare(ctx context.Context, page int) (*hydrationRun, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == nil {
		return nil, ErrNoView
	}
	n.cancelRunLocked()
	n.run++

	page = n.clampPageLocked(page)
	n.page = page
	lo, hi := n.pageBoundsLocked(page)

	runCtx, cancel := context.WithCancel(ctx)
	runCtx = logging.WithFields(runCtx, logging.Uint64("run", n.run), logging.Uint64("generation", n.generation))
	n.cancelRun = cancel
	return &hydrationRun{
		ctx:        runCtx,
		cancel:     cancel,
		generation: n.generation,
		id:         n.run,
		entries:    slices.Clone(n.state.images[lo:hi]),
	}, nil
}

func (n *Navigator) execute(run *hydrationRun) error {
	defer run.cancel()
	n.secret.ResetDecline()

	err := n.hydrator.Run(run.ctx, n.backend, run.entries, n.secret, func(u Update) {
		n.applyUpdate(run, u)
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	current := run.generation == n.generation && run.id == n.run
	n.mu.Unlock()
	if current {
		n.publish(events.Event{Type: events.EventHydrationDone, Generation: run.generation, Run: run.id})
	}
	return nil
}

// Hydrate hydrates one page of the current folder and blocks until done
func (n *Navigator) Hydrate(ctx context.Context, page int) error {
	run, err := n.prepare(ctx, page)
	if err != nil {
		return err
	}
	return n.execute(run)
}

// StartHydration hydrates one page in the background and returns the run id
func (n *Navigator) StartHydration(page int) (uint64, error) {
	run, err := n.prepare(context.Background(), page)
	if err != nil {
		return 0, err
	}
	go func() {
		if err := n.execute(run); err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn("hydration stopped", logging.Uint64("run", run.id), logging.Err(err))
		}
	}()
	return run.id, nil
}

// CancelHydration stops the running hydration, if any
func (n *Navigator) CancelHydration() {
	n.mu.Lock()
	n.cancelRunLocked()
	n.mu.Unlock()
}

// Close stops background work and frees blobs
func (n *Navigator) Close() {
	n.mu.Lock()
	n.generation++
	n.cancelRunLocked()
	n.state = nil
	n.mu.Unlock()
	n.blobs.RevokeAll()
}

// applyUpdate merges a batch into the snapshot by code, if the run is current
func (n *Navigator) applyUpdate(run *hydrationRun, u Update) {
	n.mu.Lock()
	if run.generation != n.generation || run.id != n.run || n.state == nil {
		n.mu.Unlock()
		return
	}
	byCode := make(map[string]models.ImageEntry, len(u.Entries))
	for _, e := range u.Entries {
		byCode[e.Code] = e
	}
	for i, img := range n.state.images {
		if e, ok := byCode[img.Code]; ok {
			n.state.images[i] = e
		}
	}
	n.mu.Unlock()

	n.publish(events.Event{
		Type:       events.EventBatch,
		Generation: run.generation,
		Run:        run.id,
		Batch:      u.Batch,
		Batches:    u.Batches,
		Images:     u.Entries,
	})
}

func (n *Navigator) publish(e events.Event) {
	if n.events != nil {
		n.events.Publish(e)
	}
}

func (n *Navigator) cancelRunLocked() {
	if n.cancelRun != nil {
		n.cancelRun()
		n.cancelRun = nil
	}
}

func (n *Navigator) pageCountLocked() int {
	total := len(n.state.images)
	if total == 0 {
		return 1
	}
	return (total + n.pageSize - 1) / n.pageSize
}

func (n *Navigator) clampPageLocked(page int) int {
	return max(1, min(page, n.pageCountLocked()))
}

func (n *Navigator) pageBoundsLocked(page int) (int, int) {
	lo := min((page-1)*n.pageSize, len(n.state.images))
	hi := min(lo+n.pageSize, len(n.state.images))
	return lo, hi
}

func (n *Navigator) viewLocked() *View {
	lo, hi := n.pageBoundsLocked(n.page)
	return &View{
		Generation:  n.generation,
		Mode:        n.backend.Mode(),
		Path:        n.state.path,
		FolderID:    n.state.folderID,
		Breadcrumbs: slices.Clone(n.state.breadcrumbs),
		Folders:     slices.Clone(n.state.folders),
		Order:       n.order,
		Page:        n.page,
		PageCount:   n.pageCountLocked(),
		Total:       len(n.state.images),
		Images:      slices.Clone(n.state.images[lo:hi]),
	}
}
