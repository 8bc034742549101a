package ipfs

import (
	"fmt"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Multicodec identifiers used in CIDv1 prefixes.
const (
	CodecRaw  uint64 = gocid.Raw
	CodecJSON uint64 = 0x0200
)

// ComputeCID returns the base32 CIDv1 of data under the given codec,
// using a sha2-256 multihash.
func ComputeCID(codec uint64, data []byte) (string, error) {
	hash, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return gocid.NewCidV1(codec, hash).String(), nil
}

// ValidCID reports whether s decodes as a CIDv0 or CIDv1.
func ValidCID(s string) bool {
	_, err := gocid.Decode(strings.TrimSpace(s))
	return err == nil
}
