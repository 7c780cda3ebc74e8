package cache

// entry is a resident value. Entries are linked into the recency ring
// directly so a touch or removal never allocates.
type entry[K comparable, V any] struct {
	key    K
	value  V
	bytes  int64
	pinned bool

	newer, older *entry[K, V]
}

// recency orders entries from most to least recently used. root is a
// sentinel: root.older is the newest entry and root.newer the oldest.
type recency[K comparable, V any] struct {
	root entry[K, V]
	n    int
}

func (r *recency[K, V]) init() {
	r.root.newer = &r.root
	r.root.older = &r.root
	r.n = 0
}

// touch makes e the newest entry, linking it in if it is not yet listed.
func (r *recency[K, V]) touch(e *entry[K, V]) {
	if e.newer != nil {
		if r.root.older == e {
			return
		}
		r.detach(e)
	}
	e.newer = &r.root
	e.older = r.root.older
	r.root.older.newer = e
	r.root.older = e
	r.n++
}

// detach unlinks e. Detaching an unlisted entry does nothing.
func (r *recency[K, V]) detach(e *entry[K, V]) {
	if e.newer == nil {
		return
	}
	e.newer.older = e.older
	e.older.newer = e.newer
	e.newer, e.older = nil, nil
	r.n--
}

// oldest returns the least recently used entry, or nil.
func (r *recency[K, V]) oldest() *entry[K, V] {
	return r.next(&r.root)
}

// next returns the entry used just after e, walking towards the newest,
// or nil at the end.
func (r *recency[K, V]) next(e *entry[K, V]) *entry[K, V] {
	if e.newer == &r.root {
		return nil
	}
	return e.newer
}

// keys lists resident keys, newest first.
func (r *recency[K, V]) keys() []K {
	out := make([]K, 0, r.n)
	for e := r.root.older; e != &r.root; e = e.older {
		out = append(out, e.key)
	}
	return out
}
