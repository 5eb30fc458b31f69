package objecthash

import "strings"

// HasHexPrefix reports whether h's hex string starts with prefix. prefix is
// assumed lowercase hex, as produced by String().
func HasHexPrefix(h Hash, prefix string) bool {
	return strings.HasPrefix(h.String(), prefix)
}
