package common

import (
	"fmt"
	"strings"
)

// Path is an ordered sequence of segment names from the root. The empty
// path names the root directory.
type Path []string

// ParsePath splits a slash-separated path. Leading, trailing and repeated
// slashes are ignored.
func ParsePath(s string) (Path, error) {
	var p Path
	for _, seg := range strings.Split(s, "/") {
		if seg == "" {
			continue
		}
		p = append(p, seg)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) Validate() error {
	for i, seg := range p {
		switch {
		case seg == "", seg == ".", seg == "..":
			return fmt.Errorf("%w: segment %d is %q", ErrInvalidArgument, i, seg)
		case strings.ContainsRune(seg, '/'):
			return fmt.Errorf("%w: segment %q contains '/'", ErrInvalidArgument, seg)
		}
	}
	return nil
}

func (p Path) IsRoot() bool { return len(p) == 0 }

// SplitLast returns the parent path and the final segment. It fails on the
// root path.
func (p Path) SplitLast() (Path, string, error) {
	if len(p) == 0 {
		return nil, "", fmt.Errorf("%w: path is empty", ErrInvalidArgument)
	}
	return p[:len(p)-1:len(p)-1], p[len(p)-1], nil
}

// HasPrefix reports whether q is a prefix of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}
