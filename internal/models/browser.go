// Package models contains data structures used across handlers
package models

import "time"

// NavPrefix is the route every gallery navigation path lives under
const NavPrefix = "/gallery"

// RootFolderID identifies the account root on the native API
const RootFolderID int64 = 0

// ErrorThumbnail replaces the source of an entry that failed to hydrate
const ErrorThumbnail = "/assets/error-thumbnail.svg"

// ConnectionMode selects the remote backend
type ConnectionMode string

const (
	ModeAPI ConnectionMode = "api"
	ModeS3  ConnectionMode = "s3"
)

// SortOrder selects how image entries are ordered
type SortOrder string

const (
	SortByName     SortOrder = "name"
	SortByUploaded SortOrder = "uploaded"
)

// ParseSortOrder falls back to name ordering for unknown values
func ParseSortOrder(s string) SortOrder {
	if SortOrder(s) == SortByUploaded {
		return SortByUploaded
	}
	return SortByName
}

// FolderEntry is one child folder of a listing
type FolderEntry struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	NavPath string `json:"navPath"`
}

// WithNavPath returns a copy carrying the given navigation path
func (f FolderEntry) WithNavPath(navPath string) FolderEntry {
	f.NavPath = navPath
	return f
}

// ImageEntry is a file entry that may be hydrated into a viewable source
type ImageEntry struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	UploadedAt   time.Time `json:"uploadedAt"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	FullSrc      string    `json:"fullSrc,omitempty"`
	Title        string    `json:"title"`
	Encrypted    bool      `json:"encrypted"`
	Failed       bool      `json:"failed,omitempty"`
	Size         int64     `json:"size,omitempty"`
}

// Hydrated reports whether the entry reached a terminal state
func (e ImageEntry) Hydrated() bool {
	return e.FullSrc != ""
}

// ListResult is the backend-agnostic shape of one folder listing
type ListResult struct {
	FolderID int64         `json:"folderId"`
	Prefix   string        `json:"prefix,omitempty"`
	Folders  []FolderEntry `json:"folders"`
	Files    []ImageEntry  `json:"files"`
}

// Breadcrumb for navigation
type Breadcrumb struct {
	ID      int64  `json:"id"`
	Path    string `json:"path"`
	NavPath string `json:"navPath"`
	Name    string `json:"name"`
}
