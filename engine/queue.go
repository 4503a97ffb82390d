package engine

import (
	"context"

	"guardbot/model"
)

type keyQueue struct {
	events []model.Event
}

// Submit queues ev behind earlier events with the same key and returns at once.
// Each active key is drained by its own goroutine, which exits when the queue
// is empty. It reports false once Close has been called.
func (e *Engine) Submit(ev model.Event) bool {
	key := ev.Key()

	e.qmu.Lock()
	if e.closing {
		e.qmu.Unlock()
		return false
	}
	if q, ok := e.queues[key]; ok {
		q.events = append(q.events, ev)
		e.qmu.Unlock()
		return true
	}
	q := &keyQueue{events: []model.Event{ev}}
	e.queues[key] = q
	e.wg.Add(1)
	e.qmu.Unlock()

	go e.drain(key, q)
	return true
}

func (e *Engine) drain(key string, q *keyQueue) {
	defer e.wg.Done()
	for {
		e.qmu.Lock()
		if len(q.events) == 0 {
			delete(e.queues, key)
			e.qmu.Unlock()
			return
		}
		ev := q.events[0]
		q.events = q.events[1:]
		e.qmu.Unlock()

		ctx, cancel := context.WithTimeout(e.baseCtx, e.eventTimeout)
		// failures are logged by Handle
		_ = e.Handle(ctx, ev)
		cancel()
	}
}

// Pending returns the number of keys with queued or running events.
func (e *Engine) Pending() int {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	return len(e.queues)
}
