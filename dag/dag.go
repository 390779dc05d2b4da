// Package dag provides CID parsing helpers and a bounded-memory DAG walk
// used to enumerate a merkle-DAG's blocks starting from a set of roots.
package dag

import (
	cid "github.com/ipfs/go-cid"
	"github.com/pkg/errors"
)

// ParseCid parses a single CID string (base32/base58/base36, any of the
// forms cid.Parse accepts).
func ParseCid(s string) (cid.Cid, error) {
	c, err := cid.Parse(s)
	if err != nil {
		return cid.Undef, errors.Wrapf(err, "parsing cid %q", s)
	}
	return c, nil
}

// ParseCids parses a slice of CID strings, stopping at the first error.
func ParseCids(ss []string) ([]cid.Cid, error) {
	cids := make([]cid.Cid, len(ss))
	for i, s := range ss {
		c, err := ParseCid(s)
		if err != nil {
			return nil, err
		}
		cids[i] = c
	}
	return cids, nil
}
