package audio

type queueAction int

const (
	queueActionNone queueAction = iota
	// queueActionAppend hands the returned chunk to the sink.
	queueActionAppend
	// queueActionEndOfStream tells the sink no more chunks will follow.
	queueActionEndOfStream
)

// chunkQueue decides when chunks may be handed to a sink. It never touches a
// device itself, the player executes the returned actions. At most one
// append is in flight and end of stream is signalled once, after the last
// append completed.
type chunkQueue struct {
	pending       [][]byte
	appending     bool
	upstreamEnded bool
	endSignalled  bool
	closed        bool
}

func (q *chunkQueue) push(chunk []byte) (queueAction, []byte) {
	if q.closed || q.upstreamEnded || len(chunk) == 0 {
		return q.next()
	}
	q.pending = append(q.pending, chunk)
	return q.next()
}

func (q *chunkQueue) appendCompleted() (queueAction, []byte) {
	q.appending = false
	return q.next()
}

func (q *chunkQueue) endUpstream() (queueAction, []byte) {
	q.upstreamEnded = true
	return q.next()
}

// close drops everything still pending; further calls yield no actions.
func (q *chunkQueue) close() {
	q.closed = true
	q.pending = nil
}

func (q *chunkQueue) next() (queueAction, []byte) {
	if q.closed || q.appending {
		return queueActionNone, nil
	}
	if len(q.pending) > 0 {
		chunk := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.appending = true
		return queueActionAppend, chunk
	}
	if q.upstreamEnded && !q.endSignalled {
		q.endSignalled = true
		return queueActionEndOfStream, nil
	}
	return queueActionNone, nil
}

func (q *chunkQueue) len() int {
	return len(q.pending)
}
