// Package checksum computes the content digests stored with each document.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Body digests a document body so that copies differing only in line endings
// or trailing whitespace hash the same.
func Body(body []byte) string {
	var norm bytes.Buffer
	norm.Grow(len(body))
	for line := range bytes.Lines(body) {
		norm.Write(bytes.TrimRight(line, " \t\r\n"))
		norm.WriteByte('\n')
	}
	return Sum(norm.Bytes())
}
