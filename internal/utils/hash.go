package utils

import "hash/fnv"

// HashStringToUint64 folds s through FNV-1a so callers can derive
// stable decisions from identifiers.
func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
