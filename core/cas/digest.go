// Package cas computes the content digests recorded for merge inputs and
// outputs. Every digest carries both a SHA-256 and a BLAKE3 hash.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/zeebo/blake3"
)

// osOpen is a variable to allow testing of open errors.
var osOpen = os.Open

// hashPattern matches a lowercase 256-bit hex digest.
var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Digest holds both hashes of one blob.
type Digest struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
	Size   int64  `json:"size"`
}

// Hash returns the SHA-256 hex digest of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Hash returns the BLAKE3 hex digest of data.
func Blake3Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Sum digests data.
func Sum(data []byte) Digest {
	return Digest{SHA256: Hash(data), BLAKE3: Blake3Hash(data), Size: int64(len(data))}
}

// SumReader digests everything read from r in one pass.
func SumReader(r io.Reader) (Digest, error) {
	s := sha256.New()
	b := blake3.New()
	n, err := io.Copy(io.MultiWriter(s, b), r)
	if err != nil {
		return Digest{}, err
	}
	return Digest{
		SHA256: hex.EncodeToString(s.Sum(nil)),
		BLAKE3: hex.EncodeToString(b.Sum(nil)),
		Size:   n,
	}, nil
}

// SumFile digests the file at path.
func SumFile(path string) (Digest, error) {
	f, err := osOpen(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	d, err := SumReader(f)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return d, nil
}

// Valid reports whether both hashes are well-formed.
func (d Digest) Valid() bool {
	return hashPattern.MatchString(d.SHA256) && hashPattern.MatchString(d.BLAKE3)
}

// Matches reports whether data has this digest.
func (d Digest) Matches(data []byte) bool {
	return Sum(data) == d
}
