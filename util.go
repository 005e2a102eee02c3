package kvtree

import (
	"encoding/json"
	"strings"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func rpad(s string, n int, pad rune) string {
	rem := n - len(s)
	if rem <= 0 {
		return s
	}
	return s + strings.Repeat(string(pad), rem)
}

// loggableVal renders a leaf as JSON, falling back to the quoted form when
// it cannot be marshaled (NaN, for example).
func loggableVal(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return strings.TrimSpace(strings.ReplaceAll(err.Error(), "\n", " "))
	}
	return string(raw)
}
