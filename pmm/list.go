package pmm

// pageList is a doubly linked list threaded through Page descriptors. The
// node's free pool is two of these. All manipulation happens under the node
// lock.
type pageList struct {
	head, tail *Page
	n          uint64
}

func (l *pageList) pushFront(p *Page) {
	p.prev = nil
	p.next = l.head
	if l.head != nil {
		l.head.prev = p
	} else {
		l.tail = p
	}
	l.head = p
	l.n++
}

func (l *pageList) pushBack(p *Page) {
	p.next = nil
	p.prev = l.tail
	if l.tail != nil {
		l.tail.next = p
	} else {
		l.head = p
	}
	l.tail = p
	l.n++
}

func (l *pageList) popFront() *Page {
	p := l.head
	if p == nil {
		return nil
	}
	l.remove(p)
	return p
}

func (l *pageList) remove(p *Page) {
	if p.prev != nil {
		p.prev.next = p.next
	} else {
		l.head = p.next
	}
	if p.next != nil {
		p.next.prev = p.prev
	} else {
		l.tail = p.prev
	}
	p.prev, p.next = nil, nil
	l.n--
}

func (l *pageList) empty() bool { return l.head == nil }
