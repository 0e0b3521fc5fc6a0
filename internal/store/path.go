package store

import "strings"

// Path addresses a collection (odd number of segments) or a document (even
// number of segments).
type Path string

// Join builds a path from segments.
func Join(segments ...string) Path {
	return Path(strings.Join(segments, "/"))
}

// Segments splits the path.
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), "/")
}

func (p Path) valid() bool {
	if p == "" {
		return false
	}
	for _, s := range p.Segments() {
		if s == "" {
			return false
		}
	}
	return true
}

// IsDocument reports whether p names a document.
func (p Path) IsDocument() bool {
	return p.valid() && len(p.Segments())%2 == 0
}

// IsCollection reports whether p names a collection.
func (p Path) IsCollection() bool {
	return p.valid() && len(p.Segments())%2 == 1
}

// ID is the last segment.
func (p Path) ID() string {
	s := string(p)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Parent returns the enclosing collection of a document or the enclosing
// document of a collection. The parent of a root collection is "".
func (p Path) Parent() Path {
	s := string(p)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return Path(s[:i])
	}
	return ""
}

// Doc addresses a document inside collection p.
func (p Path) Doc(id string) Path {
	return Path(string(p) + "/" + id)
}

// Collection addresses a subcollection of document p.
func (p Path) Collection(name string) Path {
	return Path(string(p) + "/" + name)
}

func (p Path) String() string {
	return string(p)
}
