package http2

import (
	"sort"
)

// appStreamTable is a sorted-by-id slice of appStream, mirroring the
// teacher's Streams type so the app layer can look up its own ctx/timing
// state by stream id with the same deterministic ordered-iteration
// behaviour as h2core.StreamTable.
type appStreamTable struct {
	list []*appStream
}

func (t *appStreamTable) search(id uint32) int {
	return sort.Search(len(t.list), func(i int) bool {
		return t.list[i].id >= id
	})
}

func (t *appStreamTable) Insert(s *appStream) {
	i := t.search(s.id)
	if i < len(t.list) && t.list[i].id == s.id {
		t.list[i] = s
		return
	}
	t.list = append(t.list, nil)
	copy(t.list[i+1:], t.list[i:])
	t.list[i] = s
}

func (t *appStreamTable) Get(id uint32) *appStream {
	i := t.search(id)
	if i < len(t.list) && t.list[i].id == id {
		return t.list[i]
	}
	return nil
}

func (t *appStreamTable) Del(id uint32) *appStream {
	i := t.search(id)
	if i < len(t.list) && t.list[i].id == id {
		s := t.list[i]
		t.list = append(t.list[:i], t.list[i+1:]...)
		return s
	}
	return nil
}

func (t *appStreamTable) Len() int {
	return len(t.list)
}

// Oldest returns the stream with the lowest id, or nil if the table is
// empty; the caller compares its start time against the deadline. The
// table is sorted by id, which for
// this server's monotonically-increasing client stream ids is also
// creation order, so the first entry is always the oldest.
func (t *appStreamTable) Oldest() *appStream {
	if len(t.list) == 0 {
		return nil
	}
	return t.list[0]
}
