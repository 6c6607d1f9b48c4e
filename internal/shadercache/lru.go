package shadercache

// lruNode is a node in the recency list. It stores the key for O(1)
// removal from the index map.
type lruNode struct {
	key  Key
	code []byte
	prev *lruNode
	next *lruNode
}

// lru is a size-bounded least-recently-used map of compiled code.
// Not safe for concurrent use; Cache serializes access.
//
// The head is the most recently used entry, the tail the least.
type lru struct {
	limit int
	index map[Key]*lruNode
	head  *lruNode
	tail  *lruNode
}

func newLRU(limit int) *lru {
	return &lru{limit: limit, index: make(map[Key]*lruNode)}
}

func (l *lru) get(k Key) ([]byte, bool) {
	n, ok := l.index[k]
	if !ok {
		return nil, false
	}
	l.moveToFront(n)
	return n.code, true
}

// put inserts or refreshes k and returns the number of evicted entries.
func (l *lru) put(k Key, code []byte) int {
	if n, ok := l.index[k]; ok {
		n.code = code
		l.moveToFront(n)
		return 0
	}
	n := &lruNode{key: k, code: code}
	l.index[k] = n
	l.pushFront(n)

	evicted := 0
	for l.limit > 0 && len(l.index) > l.limit {
		old := l.tail
		l.unlink(old)
		delete(l.index, old.key)
		evicted++
	}
	return evicted
}

func (l *lru) len() int { return len(l.index) }

func (l *lru) pushFront(n *lruNode) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lru) moveToFront(n *lruNode) {
	if n == l.head {
		return
	}
	l.unlink(n)
	l.pushFront(n)
}

// unlink removes n from the list without touching the index.
func (l *lru) unlink(n *lruNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}
