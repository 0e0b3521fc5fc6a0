package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"iter"
	"strconv"
	"strings"
	"sync"
	"time"
)

// hub fans change signals out to live queries, keyed by collection path.
type hub struct {
	mu          sync.RWMutex
	subscribers map[Path]map[int64]chan struct{}
	nextID      int64
}

func newHub() *hub {
	return &hub{subscribers: make(map[Path]map[int64]chan struct{})}
}

func (h *hub) subscribe(collection Path) (<-chan struct{}, func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	ch := make(chan struct{}, 1)
	if _, ok := h.subscribers[collection]; !ok {
		h.subscribers[collection] = make(map[int64]chan struct{})
	}
	h.subscribers[collection][id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		subs := h.subscribers[collection]
		if subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(h.subscribers, collection)
			}
		}
		h.mu.Unlock()
	}
}

// publish signals every subscriber of the given collections. Signals
// coalesce: a subscriber that has not consumed the previous one keeps it.
func (h *hub) publish(collections ...Path) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range collections {
		for _, ch := range h.subscribers[c] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// watch drives a live query. The first result is always delivered, later
// results only when the set of documents or any document's version or
// content changed.
// Wake-ups come from changes (may be nil) and, when poll > 0, a ticker.
// A fetch error is delivered once and ends the sequence.
func watch(ctx context.Context, fetch func(context.Context) ([]Document, error), changes <-chan struct{}, poll time.Duration) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		var tick <-chan time.Time
		if poll > 0 {
			t := time.NewTicker(poll)
			defer t.Stop()
			tick = t.C
		}
		first := true
		var last string
		for {
			docs, err := fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					yield(Snapshot{}, err)
				}
				return
			}
			if sig := signature(docs); first || sig != last {
				first = false
				last = sig
				if !yield(Snapshot{Documents: docs, ReadTime: time.Now().UTC()}, nil) {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-changes:
			case <-tick:
			}
		}
	}
}

// signature identifies a result set. Versions restart when a document is
// deleted and recreated, so the content hash is part of it.
func signature(docs []Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = string(d.Path) + "@" + strconv.FormatInt(d.Version, 10) + "#" + contentHash(d.Fields)
	}
	return strings.Join(parts, ",")
}

func contentHash(f Fields) string {
	h := fnv.New64a()
	data, err := encodeFields(f)
	if err != nil {
		fmt.Fprint(h, map[string]any(f))
	} else {
		h.Write(data)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
