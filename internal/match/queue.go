package match

// Queue is a FIFO of waiting participants; each participant appears at most once.
type Queue struct {
	waiting []ParticipantID
	index   map[ParticipantID]struct{}
}

func NewQueue() *Queue {
	return &Queue{index: make(map[ParticipantID]struct{})}
}

func (q *Queue) Contains(p ParticipantID) bool {
	_, ok := q.index[p]
	return ok
}

// Push appends p to the tail. It returns false if p is already waiting.
func (q *Queue) Push(p ParticipantID) bool {
	if q.Contains(p) {
		return false
	}
	q.waiting = append(q.waiting, p)
	q.index[p] = struct{}{}
	return true
}

// PopHead removes and returns the longest-waiting participant.
func (q *Queue) PopHead() (ParticipantID, bool) {
	if len(q.waiting) == 0 {
		return "", false
	}
	p := q.waiting[0]
	q.waiting[0] = ""
	q.waiting = q.waiting[1:]
	delete(q.index, p)
	return p, true
}

// Remove drops p wherever it waits. Idempotent.
func (q *Queue) Remove(p ParticipantID) bool {
	if !q.Contains(p) {
		return false
	}
	for i, w := range q.waiting {
		if w == p {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			break
		}
	}
	delete(q.index, p)
	return true
}

func (q *Queue) Len() int { return len(q.waiting) }

// Snapshot returns the waiting order, head first.
func (q *Queue) Snapshot() []ParticipantID {
	return append([]ParticipantID(nil), q.waiting...)
}
