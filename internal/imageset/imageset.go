// Package imageset filters listing entries down to images and orders them.
package imageset

import (
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/damacus/iron-gallery/internal/encryption"
	"github.com/damacus/iron-gallery/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// TimeLayout is how upload times appear in titles
const TimeLayout = "2006-01-02 15:04:05"

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// IsImageName reports whether name (or its decrypted name) has an image extension
func IsImageName(name string) bool {
	ext := strings.ToLower(path.Ext(encryption.StripSuffix(name)))
	return slices.Contains(imageExtensions, ext)
}

// ExtractImages keeps image entries, preserving order
func ExtractImages(files []models.ImageEntry) []models.ImageEntry {
	out := make([]models.ImageEntry, 0, len(files))
	for _, f := range files {
		if IsImageName(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

// Title is the caption shown for an entry
func Title(name string, uploadedAt time.Time) string {
	if uploadedAt.IsZero() {
		return name
	}
	return name + " (" + uploadedAt.Format(TimeLayout) + ")"
}

// Sorter orders entries with a locale-aware collator.
// collate.Collator is not safe for concurrent use, hence the mutex.
type Sorter struct {
	mu  sync.Mutex
	col *collate.Collator
}

// NewSorter builds a sorter for locale, falling back to English
func NewSorter(locale string) *Sorter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Sorter{col: collate.New(tag)}
}

var (
	defaultOnce   sync.Once
	defaultSorter *Sorter
)

// Default returns the shared English sorter
func Default() *Sorter {
	defaultOnce.Do(func() {
		defaultSorter = NewSorter("en")
	})
	return defaultSorter
}

// CompareNames is an ascending locale-aware comparison
func (s *Sorter) CompareNames(a, b string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col.CompareString(a, b)
}

// ByName compares two entries by name, then by code for a total order
func (s *Sorter) ByName(a, b models.ImageEntry) int {
	if c := s.CompareNames(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.Code, b.Code)
}

// ByUploadedDesc puts newer entries first; entries without a time are oldest
func (s *Sorter) ByUploadedDesc(a, b models.ImageEntry) int {
	switch {
	case a.UploadedAt.Equal(b.UploadedAt):
		return s.ByName(a, b)
	case a.UploadedAt.IsZero():
		return 1
	case b.UploadedAt.IsZero():
		return -1
	case a.UploadedAt.After(b.UploadedAt):
		return -1
	default:
		return 1
	}
}

// Sorted returns a new slice ordered by order
func (s *Sorter) Sorted(images []models.ImageEntry, order models.SortOrder) []models.ImageEntry {
	out := slices.Clone(images)
	if order == models.SortByUploaded {
		slices.SortStableFunc(out, s.ByUploadedDesc)
	} else {
		slices.SortStableFunc(out, s.ByName)
	}
	return out
}

// SortedFolders returns folders ordered by name
func (s *Sorter) SortedFolders(folders []models.FolderEntry) []models.FolderEntry {
	out := slices.Clone(folders)
	slices.SortStableFunc(out, func(a, b models.FolderEntry) int {
		return s.CompareNames(a.Name, b.Name)
	})
	return out
}
