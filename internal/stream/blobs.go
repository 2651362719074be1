package stream

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// ComputeCID computes a CIDv1 (raw codec, SHA2-256) for the given data.
func ComputeCID(data []byte) (gocid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return gocid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(gocid.Raw, mh), nil
}

// CIDKey returns the base32lower encoding of a CID.
func CIDKey(c gocid.Cid) string {
	encoded, _ := multibase.Encode(multibase.Base32, c.Bytes())
	return encoded
}

// BlobTable assigns one mark per distinct content so repeated content is
// written to the stream once.
type BlobTable struct {
	marks map[string]int // CID key -> mark
}

// NewBlobTable returns an empty table.
func NewBlobTable() *BlobTable {
	return &BlobTable{marks: make(map[string]int)}
}

// Lookup returns the CID key of data and the mark already assigned to it,
// if any.
func (t *BlobTable) Lookup(data []byte) (key string, mark int, ok bool, err error) {
	c, err := ComputeCID(data)
	if err != nil {
		return "", 0, false, err
	}
	key = CIDKey(c)
	mark, ok = t.marks[key]
	return key, mark, ok, nil
}

// Assign records mark for key.
func (t *BlobTable) Assign(key string, mark int) {
	t.marks[key] = mark
}

// Len returns the number of distinct blobs.
func (t *BlobTable) Len() int {
	return len(t.marks)
}
