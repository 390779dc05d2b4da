package dag

import (
	"context"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/errs"
)

// Source supplies the two operations a Walk needs from whatever combination
// of block store and references cache the caller has wired together: whether
// a block is present, and (only ever called on present blocks) its outbound
// references.
type Source interface {
	HasBlock(ctx context.Context, c cid.Cid) (bool, error)
	References(ctx context.Context, c cid.Cid) ([]cid.Cid, error)
}

// Item is one step of a Walk: either a block that's present (Have), or one
// that's referenced but absent from the store (a Missing/want candidate).
type Item struct {
	Cid  cid.Cid
	Have bool
}

// ToCid returns the item's CID, or an *errs.CIDNotFound if the item is
// Missing — mirroring the Rust TraversedItem::to_cid conversion.
func (i Item) ToCid() (cid.Cid, error) {
	if !i.Have {
		return cid.Undef, &errs.CIDNotFound{Cid: i.Cid}
	}
	return i.Cid, nil
}

// Walk enumerates the blocks reachable from a set of roots, visiting each
// CID at most once. It never re-expands past a Missing block, since there's
// nothing to read references from.
type Walk struct {
	frontier     []cid.Cid
	visited      map[cid.Cid]struct{}
	breadthFirst bool
}

// NewBreadthFirst returns a Walk that enumerates blocks in breadth-first
// order from roots.
func NewBreadthFirst(roots []cid.Cid) *Walk {
	return newWalk(roots, true)
}

// NewDepthFirst returns a Walk that enumerates blocks in depth-first order
// from roots.
func NewDepthFirst(roots []cid.Cid) *Walk {
	return newWalk(roots, false)
}

func newWalk(roots []cid.Cid, breadthFirst bool) *Walk {
	frontier := make([]cid.Cid, len(roots))
	copy(frontier, roots)
	return &Walk{
		frontier:     frontier,
		visited:      make(map[cid.Cid]struct{}),
		breadthFirst: breadthFirst,
	}
}

// frontierNext pops the next unvisited CID off the frontier, skipping any
// that were visited via another path in the meantime. Breadth-first pops
// from the front of the queue (FIFO); depth-first pops from the back, the
// same end newly discovered references are pushed onto (LIFO).
func (w *Walk) frontierNext() (cid.Cid, bool) {
	for len(w.frontier) > 0 {
		var c cid.Cid
		if w.breadthFirst {
			c = w.frontier[0]
			w.frontier = w.frontier[1:]
		} else {
			c = w.frontier[len(w.frontier)-1]
			w.frontier = w.frontier[:len(w.frontier)-1]
		}
		if _, seen := w.visited[c]; !seen {
			return c, true
		}
	}
	return cid.Undef, false
}

// Next advances the walk by one block, returning (item, true, nil) for each
// step and (Item{}, false, nil) once the frontier is exhausted.
func (w *Walk) Next(ctx context.Context, src Source) (Item, bool, error) {
	c, ok := w.frontierNext()
	if !ok {
		return Item{}, false, nil
	}
	w.visited[c] = struct{}{}

	has, err := src.HasBlock(ctx, c)
	if err != nil {
		return Item{}, false, err
	}
	if !has {
		return Item{Cid: c, Have: false}, true, nil
	}

	refs, err := src.References(ctx, c)
	if err != nil {
		return Item{}, false, err
	}
	for _, r := range refs {
		if _, seen := w.visited[r]; !seen {
			w.frontier = append(w.frontier, r)
		}
	}
	return Item{Cid: c, Have: true}, true, nil
}

// IsFinished reports whether the next call to Next would return done,
// without consuming any frontier entries.
func (w *Walk) IsFinished() bool {
	for _, c := range w.frontier {
		if _, seen := w.visited[c]; !seen {
			return false
		}
	}
	return true
}

// Visited reports whether c has already been yielded by this walk.
func (w *Walk) Visited(c cid.Cid) bool {
	_, ok := w.visited[c]
	return ok
}
