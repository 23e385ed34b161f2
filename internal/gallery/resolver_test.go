package gallery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damacus/iron-gallery/internal/models"
	"github.com/damacus/iron-gallery/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type treeLister struct {
	tree  map[int64][]models.FolderEntry
	calls []int64
}

func (l *treeLister) list(ctx context.Context, parentID int64) ([]models.FolderEntry, error) {
	l.calls = append(l.calls, parentID)
	children, ok := l.tree[parentID]
	if !ok {
		return nil, errors.New("unknown folder")
	}
	return children, nil
}

func sampleTree() *treeLister {
	return &treeLister{tree: map[int64][]models.FolderEntry{
		0:  {{ID: 43, Name: "Trip"}, {ID: 50, Name: "Work"}},
		43: {{ID: 44, Name: "Sub"}, {ID: 45, Name: "Other"}},
		44: {},
	}}
}

func TestResolver_RootShortCircuits(t *testing.T) {
	l := sampleTree()
	r := NewResolver()

	for _, p := range []string{"", "/", "//"} {
		res, err := r.Resolve(context.Background(), p, l.list)
		require.NoError(t, err)
		assert.Equal(t, models.RootFolderID, res.FolderID)
		assert.Empty(t, res.Breadcrumbs)
	}
	assert.Empty(t, l.calls)
}

func TestResolver_ResolvesNestedPath(t *testing.T) {
	l := sampleTree()
	r := NewResolver()

	res, err := r.Resolve(context.Background(), "/Trip/Sub", l.list)
	require.NoError(t, err)

	assert.Equal(t, int64(44), res.FolderID)
	require.Len(t, res.Breadcrumbs, 2)
	assert.Equal(t, models.Breadcrumb{ID: 43, Path: "/Trip", NavPath: "/gallery/Trip", Name: "Trip"}, res.Breadcrumbs[0])
	assert.Equal(t, models.Breadcrumb{ID: 44, Path: "/Trip/Sub", NavPath: "/gallery/Trip/Sub", Name: "Sub"}, res.Breadcrumbs[1])
	assert.Equal(t, []int64{0, 43}, l.calls)

	// siblings on the way are memoized too
	id, ok := res.PathMap.Lookup("/Work")
	assert.True(t, ok)
	assert.Equal(t, int64(50), id)
	_, ok = res.PathMap.Lookup("/Trip/Other")
	assert.True(t, ok)
}

func TestResolver_MemoizedPathCostsNothing(t *testing.T) {
	l := sampleTree()
	r := NewResolver()

	_, err := r.Resolve(context.Background(), "/Trip/Sub", l.list)
	require.NoError(t, err)
	calls := len(l.calls)

	res, err := r.Resolve(context.Background(), "/Trip/Sub", l.list)
	require.NoError(t, err)
	assert.Equal(t, int64(44), res.FolderID)
	assert.Len(t, l.calls, calls)
}

func TestResolver_ListsOnlyUnknownParent(t *testing.T) {
	l := sampleTree()
	r := NewResolver()
	r.Remember("/", []models.FolderEntry{{ID: 43, Name: "Trip"}})

	res, err := r.Resolve(context.Background(), "/Trip/Sub", l.list)
	require.NoError(t, err)

	assert.Equal(t, []int64{43}, l.calls)
	assert.Equal(t, int64(44), res.FolderID)
}

func TestResolver_PathNotFound(t *testing.T) {
	l := sampleTree()
	r := NewResolver()

	_, err := r.Resolve(context.Background(), "/Trip/Missing/Deeper", l.list)
	require.ErrorIs(t, err, services.ErrPathNotFound)
	assert.Contains(t, err.Error(), "/Trip/Missing")
	assert.Equal(t, []int64{0, 43}, l.calls)
}

func TestResolver_ListErrorPropagates(t *testing.T) {
	r := NewResolver()
	boom := errors.New("boom")
	_, err := r.Resolve(context.Background(), "/Trip", func(context.Context, int64) ([]models.FolderEntry, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, r.Snapshot().Len())
}

func TestResolver_SharedListingSurvivesCancelledCaller(t *testing.T) {
	r := NewResolver()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	list := func(ctx context.Context, parentID int64) ([]models.FolderEntry, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return []models.FolderEntry{{ID: 43, Name: "Trip"}}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.Resolve(firstCtx, "/Trip", list)
		first <- err
	}()
	<-started

	second := make(chan *Resolution, 1)
	go func() {
		res, err := r.Resolve(context.Background(), "/Trip", list)
		assert.NoError(t, err)
		second <- res
	}()

	cancelFirst()
	assert.ErrorIs(t, <-first, context.Canceled)
	time.Sleep(10 * time.Millisecond)
	close(release)

	res := <-second
	require.NotNil(t, res)
	assert.Equal(t, int64(43), res.FolderID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolver_RememberReturnsNavPaths(t *testing.T) {
	r := NewResolver()
	in := []models.FolderEntry{{ID: 7, Name: "Beach"}}

	out := r.Remember("/Trip", in)
	require.Len(t, out, 1)
	assert.Equal(t, "/gallery/Trip/Beach", out[0].NavPath)
	assert.Empty(t, in[0].NavPath, "input must not be mutated")

	r.Reset()
	assert.Zero(t, r.Snapshot().Len())
}

func TestS3Breadcrumbs(t *testing.T) {
	crumbs := S3Breadcrumbs("/photos/2024/may")
	require.Len(t, crumbs, 3)
	assert.Equal(t, models.Breadcrumb{ID: 0, Path: "/photos", NavPath: "/gallery/photos", Name: "photos"}, crumbs[0])
	assert.Equal(t, models.Breadcrumb{ID: 2, Path: "/photos/2024/may", NavPath: "/gallery/photos/2024/may", Name: "may"}, crumbs[2])
	assert.Empty(t, S3Breadcrumbs("/"))
}

func TestNormalizeNavPath(t *testing.T) {
	tests := map[string]string{
		"":            "/",
		"/":           "/",
		"gallery":     "/gallery",
		"/gallery/x/": "/gallery/x",
		"Trip//Sub":   "/Trip/Sub",
		"/a/b/c///":   "/a/b/c",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeNavPath(in), in)
		assert.Equal(t, want, NormalizeNavPath(NormalizeNavPath(in)), in)
	}
}
