package models

import "strings"

// PathMap maps a normalized folder path to its native folder id.
// Values are immutable; With and MergeChildren return new maps.
type PathMap struct {
	entries map[string]int64
}

// NewPathMap returns an empty map
func NewPathMap() PathMap {
	return PathMap{entries: map[string]int64{}}
}

// Lookup returns the id memoized for path
func (p PathMap) Lookup(path string) (int64, bool) {
	id, ok := p.entries[path]
	return id, ok
}

// Len returns the number of memoized paths
func (p PathMap) Len() int {
	return len(p.entries)
}

// With returns a copy of p with path mapped to id
func (p PathMap) With(path string, id int64) PathMap {
	next := make(map[string]int64, len(p.entries)+1)
	for k, v := range p.entries {
		next[k] = v
	}
	next[path] = id
	return PathMap{entries: next}
}

// ChildPath joins a parent path and a folder name. The root parent is "" or "/".
func ChildPath(parentPath, name string) string {
	if len(parentPath) <= 1 {
		parentPath = ""
	}
	return strings.TrimSuffix(parentPath, "/") + "/" + name
}

// MergeChildren memoizes every child folder of parentPath and returns the new
// map together with copies of the folders carrying their navigation paths.
// When siblings share a name the first one wins.
func MergeChildren(p PathMap, parentPath string, folders []FolderEntry) (PathMap, []FolderEntry) {
	next := make(map[string]int64, len(p.entries)+len(folders))
	for k, v := range p.entries {
		next[k] = v
	}

	seen := make(map[string]bool, len(folders))
	out := make([]FolderEntry, 0, len(folders))
	for _, f := range folders {
		path := ChildPath(parentPath, f.Name)
		out = append(out, f.WithNavPath(NavPrefix+path))
		if seen[path] {
			continue
		}
		seen[path] = true
		next[path] = f.ID
	}
	return PathMap{entries: next}, out
}
