package depgraph

// indexedSet is an ordered set with O(1) membership, insertion, and removal.
// The index map always mirrors each element's current position in items:
// removal swaps the victim with the last element, truncates, and repairs the
// moved element's index entry. Both adjacency directions use this one type so
// the repair logic exists exactly once.
type indexedSet struct {
	items []ID
	index map[ID]int
}

func newIndexedSet() *indexedSet {
	return &indexedSet{index: make(map[ID]int)}
}

// add appends id and records its position. Returns false if already present.
func (s *indexedSet) add(id ID) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = len(s.items)
	s.items = append(s.items, id)
	return true
}

// remove deletes id by swap-and-truncate. Returns false if absent.
func (s *indexedSet) remove(id ID) bool {
	pos, ok := s.index[id]
	if !ok {
		return false
	}
	last := len(s.items) - 1
	if pos != last {
		moved := s.items[last]
		s.items[pos] = moved
		s.index[moved] = pos
	}
	s.items = s.items[:last]
	delete(s.index, id)
	return true
}

func (s *indexedSet) contains(id ID) bool {
	_, ok := s.index[id]
	return ok
}

// position returns the element's current index in the ordered list.
func (s *indexedSet) position(id ID) (int, bool) {
	pos, ok := s.index[id]
	return pos, ok
}

func (s *indexedSet) len() int { return len(s.items) }

// values returns a copy of the ordered contents.
func (s *indexedSet) values() []ID {
	out := make([]ID, len(s.items))
	copy(out, s.items)
	return out
}
