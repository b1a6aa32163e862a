package audio

import "testing"

func TestChunkQueueHoldsChunksWhileAppendInFlight(t *testing.T) {
	q := chunkQueue{}

	action, chunk := q.push([]byte("a"))
	if action != queueActionAppend || string(chunk) != "a" {
		t.Fatalf("expected first chunk to be appended immediately, got action %d chunk %q", action, chunk)
	}

	for _, c := range []string{"b", "c"} {
		if action, _ := q.push([]byte(c)); action != queueActionNone {
			t.Fatalf("expected %q to wait for the in-flight append, got action %d", c, action)
		}
	}
	if q.len() != 2 {
		t.Fatalf("expected 2 pending chunks, got %d", q.len())
	}

	action, chunk = q.appendCompleted()
	if action != queueActionAppend || string(chunk) != "b" {
		t.Fatalf("expected %q next, got action %d chunk %q", "b", action, chunk)
	}
	action, chunk = q.appendCompleted()
	if action != queueActionAppend || string(chunk) != "c" {
		t.Fatalf("expected %q next, got action %d chunk %q", "c", action, chunk)
	}
	if action, _ := q.appendCompleted(); action != queueActionNone {
		t.Fatalf("expected no action with an empty queue, got %d", action)
	}
}

func TestChunkQueueSignalsEndOfStreamAfterLastAppend(t *testing.T) {
	q := chunkQueue{}
	q.push([]byte("a"))

	if action, _ := q.endUpstream(); action != queueActionNone {
		t.Fatalf("expected end of stream to wait for the in-flight append, got %d", action)
	}
	if action, _ := q.appendCompleted(); action != queueActionEndOfStream {
		t.Fatalf("expected end of stream once the append completed, got %d", action)
	}
	if action, _ := q.next(); action != queueActionNone {
		t.Fatalf("expected end of stream to be signalled only once, got %d", action)
	}
}

func TestChunkQueueEndOfStreamOnEmptyStream(t *testing.T) {
	q := chunkQueue{}
	if action, _ := q.endUpstream(); action != queueActionEndOfStream {
		t.Fatalf("expected immediate end of stream, got %d", action)
	}
}

func TestChunkQueueIgnoresChunksAfterUpstreamEnded(t *testing.T) {
	q := chunkQueue{}
	q.endUpstream()
	if action, _ := q.push([]byte("late")); action != queueActionNone {
		t.Fatalf("expected late chunk to be ignored, got %d", action)
	}
	if q.len() != 0 {
		t.Fatalf("expected no pending chunks, got %d", q.len())
	}
}

func TestChunkQueueCloseDropsPending(t *testing.T) {
	q := chunkQueue{}
	q.push([]byte("a"))
	q.push([]byte("b"))
	q.endUpstream()
	q.close()

	if q.len() != 0 {
		t.Fatalf("expected pending chunks to be dropped, got %d", q.len())
	}
	if action, _ := q.appendCompleted(); action != queueActionNone {
		t.Fatalf("expected a closed queue to yield no actions, got %d", action)
	}
	if action, _ := q.push([]byte("c")); action != queueActionNone {
		t.Fatalf("expected a closed queue to ignore pushes, got %d", action)
	}
}

func TestChunkQueueSkipsEmptyChunks(t *testing.T) {
	q := chunkQueue{}
	if action, _ := q.push(nil); action != queueActionNone {
		t.Fatalf("expected empty chunk to be skipped, got %d", action)
	}
}
