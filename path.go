package kvtree

import (
	"strings"
)

const (
	// Sep separates path segments. A canonical path always starts with exactly
	// one Sep; the root is Sep alone.
	Sep = '.'

	// RootPath is the canonical path of the root container.
	RootPath = "."

	escapedSep = `\.`
)

// ResolvePath returns the canonical form of path: exactly one leading
// separator followed by dot-joined segments. An empty path resolves to the
// root. Escaping the separator is not supported.
func ResolvePath(path string) (string, error) {
	if strings.Contains(path, escapedSep) {
		return "", serializationErrf(path, nil, nil, "escaping path separator is not supported")
	}
	if path == "" || path[0] != Sep {
		return string(Sep) + path, nil
	}
	rest := strings.TrimLeft(path, string(Sep))
	return string(Sep) + rest, nil
}

// JoinPath joins segments with the separator and resolves the result, so
// JoinPath("", "a") and JoinPath(".", "a") both produce ".a".
func JoinPath(segments ...string) (string, error) {
	return ResolvePath(strings.Join(segments, string(Sep)))
}

// ParsePath resolves path and splits it into raw segments. The first element
// is always empty and stands for the root anchor.
func ParsePath(path string) ([]string, error) {
	path, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(path, string(Sep)), nil
}

// childPath appends one segment to an already resolved path.
func childPath(path, key string) string {
	if path == RootPath {
		return path + key
	}
	return path + string(Sep) + key
}

// isValidSegment reports whether key can be used as a single path segment.
func isValidSegment(key string) bool {
	return key != "" && strings.IndexByte(key, Sep) < 0 && !strings.Contains(key, `\`)
}
