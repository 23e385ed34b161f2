package gallery

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/damacus/iron-gallery/internal/models"
	"github.com/damacus/iron-gallery/internal/services"
	"golang.org/x/sync/singleflight"
)

const listTimeout = time.Minute

// ListFunc lists the child folders of a native folder id
type ListFunc func(ctx context.Context, parentID int64) ([]models.FolderEntry, error)

// Resolution is the outcome of resolving one navigation path
type Resolution struct {
	FolderID    int64
	Breadcrumbs []models.Breadcrumb
	PathMap     models.PathMap
}

// Resolver maps navigation paths onto native folder ids. The memo only grows;
// each update swaps in a new PathMap value.
type Resolver struct {
	mu    sync.Mutex
	memo  models.PathMap
	group singleflight.Group
}

func NewResolver() *Resolver {
	return &Resolver{memo: models.NewPathMap()}
}

// Snapshot returns the current memo
func (r *Resolver) Snapshot() models.PathMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memo
}

// Reset forgets every memoized path
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.memo = models.NewPathMap()
	r.mu.Unlock()
}

func (r *Resolver) lookup(path string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memo.Lookup(path)
}

// Remember memoizes the children of parentPath and returns copies of them
// carrying their navigation paths
func (r *Resolver) Remember(parentPath string, folders []models.FolderEntry) []models.FolderEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, out := models.MergeChildren(r.memo, parentPath, folders)
	r.memo = next
	return out
}

// Resolve walks navPath left to right. Memoized segments cost nothing; an
// unknown segment lists its parent once and memoizes every sibling.
// Concurrent lookups of the same parent share one listing call. The call
// outlives a caller that gives up, bounded by listTimeout.
func (r *Resolver) Resolve(ctx context.Context, navPath string, list ListFunc) (*Resolution, error) {
	segments := services.SplitPath(NormalizeNavPath(navPath))
	if len(segments) == 0 {
		return &Resolution{
			FolderID:    models.RootFolderID,
			Breadcrumbs: []models.Breadcrumb{},
			PathMap:     r.Snapshot(),
		}, nil
	}

	crumbs := make([]models.Breadcrumb, 0, len(segments))
	parentID := int64(models.RootFolderID)
	parentPath := "/"
	currentPath := ""
	for _, segment := range segments {
		currentPath += "/" + segment

		id, ok := r.lookup(currentPath)
		if !ok {
			if err := r.listChildren(ctx, parentID, parentPath, list); err != nil {
				return nil, err
			}
			if id, ok = r.lookup(currentPath); !ok {
				return nil, services.PathNotFound(currentPath)
			}
		}

		crumbs = append(crumbs, models.Breadcrumb{
			ID:      id,
			Path:    currentPath,
			NavPath: models.NavPrefix + currentPath,
			Name:    segment,
		})
		parentID = id
		parentPath = currentPath
	}

	return &Resolution{
		FolderID:    parentID,
		Breadcrumbs: crumbs,
		PathMap:     r.Snapshot(),
	}, nil
}

func (r *Resolver) listChildren(ctx context.Context, parentID int64, parentPath string, list ListFunc) error {
	flight := r.group.DoChan(strconv.FormatInt(parentID, 10), func() (any, error) {
		listCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listTimeout)
		defer cancel()
		folders, err := list(listCtx, parentID)
		if err != nil {
			return nil, err
		}
		r.Remember(parentPath, folders)
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-flight:
		return res.Err
	}
}

// S3Breadcrumbs derives breadcrumbs from the path alone; ids are segment indexes
func S3Breadcrumbs(navPath string) []models.Breadcrumb {
	segments := services.SplitPath(NormalizeNavPath(navPath))
	crumbs := make([]models.Breadcrumb, 0, len(segments))
	current := ""
	for i, segment := range segments {
		current += "/" + segment
		crumbs = append(crumbs, models.Breadcrumb{
			ID:      int64(i),
			Path:    current,
			NavPath: models.NavPrefix + current,
			Name:    segment,
		})
	}
	return crumbs
}

// NormalizeNavPath cleans a folder path relative to the /gallery route by
// dropping empty segments. Root is "/". A leading "gallery" segment is a
// folder of that name, so normalizing twice is harmless.
func NormalizeNavPath(navPath string) string {
	segments := services.SplitPath(navPath)
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}
