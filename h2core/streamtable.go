package h2core

import "sort"

// StreamTable holds the connection's live streams sorted by id. A
// sorted slice, rather than a map, is deliberate: §9 of the spec
// flags hash-ordered iteration as a fairness hazard for the egress
// scheduler's round-robin sweep, so insertion keeps the slice ordered
// and iteration is always stream-id ascending.
type StreamTable struct {
	list []*Stream
}

// Insert adds s to the table, keeping list sorted by id. Inserting an
// id already present replaces the existing entry.
func (t *StreamTable) Insert(s *Stream) {
	i := sort.Search(len(t.list), func(i int) bool { return t.list[i].ID >= s.ID })
	if i < len(t.list) && t.list[i].ID == s.ID {
		t.list[i] = s
		return
	}
	t.list = append(t.list, nil)
	copy(t.list[i+1:], t.list[i:])
	t.list[i] = s
}

// Get returns the stream for id, or nil if absent.
func (t *StreamTable) Get(id uint32) *Stream {
	i := sort.Search(len(t.list), func(i int) bool { return t.list[i].ID >= id })
	if i < len(t.list) && t.list[i].ID == id {
		return t.list[i]
	}
	return nil
}

// Remove deletes id from the table and returns the removed stream, or
// nil if it was not present.
func (t *StreamTable) Remove(id uint32) *Stream {
	i := sort.Search(len(t.list), func(i int) bool { return t.list[i].ID >= id })
	if i < len(t.list) && t.list[i].ID == id {
		s := t.list[i]
		t.list = append(t.list[:i], t.list[i+1:]...)
		return s
	}
	return nil
}

// Len returns the number of live streams.
func (t *StreamTable) Len() int { return len(t.list) }

// Each calls fn for every stream in ascending stream-id order. fn must
// not insert into or remove from the table; to remove streams while
// walking, range over IDs instead.
func (t *StreamTable) Each(fn func(*Stream)) {
	for _, s := range t.list {
		fn(s)
	}
}

// IDs returns a snapshot of the live stream ids in ascending order,
// safe to range over while the table itself is mutated.
func (t *StreamTable) IDs() []uint32 {
	ids := make([]uint32, len(t.list))
	for i, s := range t.list {
		ids[i] = s.ID
	}
	return ids
}
