package docmodel

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// FileHash computes the deterministic 16-hex fingerprint of a file's
// identity used as a cheap change detector: MD5 of "path:size:mtime_ms".
// Identical (path, size, mtimeMS) always yields the same hash.
func FileHash(path string, size int64, mtimeMS int64) string {
	input := fmt.Sprintf("%s:%d:%d", path, size, mtimeMS)
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// ChunkID derives the stable chunk identity from its source path and
// character offset.
func ChunkID(path string, offset int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s@%d", path, offset)))
	return hex.EncodeToString(sum[:])
}
