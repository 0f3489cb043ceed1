// Package streaming implements the streaming back-RPC (C7): the path
// a fetch/iter-style operation uses to push results to the client's
// own endpoint in batches, instead of returning them through the
// caller's bulk region (spec.md §4.7). The provider is the Sender; the
// client runs a Receiver at the address it advertised when it issued
// the original request.
package streaming

import (
	"encoding/gob"
	"fmt"
	"net"
	"sync"
)

// Item is one result handed back over a back-RPC batch: a key/value
// pair for list_keys/list_keyvals, or a document id/body pair for
// doc_list/doc_iter. Index is the item's position within the whole
// operation, not within its batch, so a client dispatching items
// concurrently can still honor spec.md §4.7's "callback indices
// monotonic within one operation" guarantee.
type Item struct {
	Index int
	Key   []byte
	Value []byte
	ID    uint64
	Doc   []byte
}

// Batch is one message of the back-RPC wire protocol.
type Batch struct {
	OpID  uint64
	Index int
	Final bool
	Items []Item
}

type ack struct {
	OpID  uint64
	Index int
	Err   string
}

// DefaultBatchSize of 0 means "send everything as a single batch",
// per spec.md §4.7.
const DefaultBatchSize = 0

// Sender pushes an operation's results to a client's back-RPC
// endpoint, one batch at a time, and waits for each batch's ack
// before sending the next. There is no separate bulk-push step in
// this implementation — a real RDMA transport would push a batch's
// staging buffer via bulk before the back-RPC carrying its sizes, but
// here both are folded into a single gob-encoded message, so the
// "direct-back" (NO_RDMA) variant of the RPC (spec.md §4.6) collapses
// to the same code path as the normal one.
type Sender struct {
	Addr      string
	BatchSize int
}

// NewSender creates a Sender targeting the client back-RPC endpoint
// at addr. A batchSize of 0 sends every item in a single batch.
func NewSender(addr string, batchSize int) *Sender {
	return &Sender{Addr: addr, BatchSize: batchSize}
}

// Send streams items to the client in order, batch size permitting,
// returning once every batch has been acked. opID scopes the
// operation so a client juggling multiple outstanding fetch/iter
// calls can tell their batches apart.
func (s *Sender) Send(opID uint64, items []Item) error {
	size := s.BatchSize
	if size <= 0 {
		size = len(items)
		if size == 0 {
			size = 1
		}
	}
	if len(items) == 0 {
		return s.sendBatch(opID, 0, nil, true)
	}
	for start, idx := 0, 0; start < len(items); start, idx = start+size, idx+1 {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		final := end == len(items)
		if err := s.sendBatch(opID, idx, items[start:end], final); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) sendBatch(opID uint64, index int, items []Item, final bool) error {
	conn, err := net.Dial("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("streaming: dial back-RPC endpoint: %w", err)
	}
	defer conn.Close()

	enc := gob.NewEncoder(conn)
	if err := enc.Encode(Batch{OpID: opID, Index: index, Final: final, Items: items}); err != nil {
		return fmt.Errorf("streaming: send batch %d: %w", index, err)
	}

	var reply ack
	if err := gob.NewDecoder(conn).Decode(&reply); err != nil {
		return fmt.Errorf("streaming: await batch %d ack: %w", index, err)
	}
	if reply.OpID != opID || reply.Index != index {
		return fmt.Errorf("streaming: ack mismatch for batch %d", index)
	}
	if reply.Err != "" {
		return fmt.Errorf("streaming: callback error in batch %d: %s", index, reply.Err)
	}
	return nil
}

// Callback processes one streamed item. Returning an error fails the
// item's batch but does not stop the remaining items in flight — the
// Receiver reports the first error once the whole batch has joined.
type Callback func(item Item) error

// Receiver is the client-side half of the back-RPC: it listens for
// batches and, for each one, runs Callback once per item on its own
// goroutine, joining all of them with a WaitGroup before acking —
// the same goroutine-per-item, WaitGroup-joined dispatch
// test/e2e/load_test.go's createServiceBatch/deleteServiceBatch use
// to fan concurrent per-item work out and back in.
type Receiver struct {
	ln net.Listener
	cb Callback
}

// ListenReceiver starts a back-RPC endpoint at addr. An empty addr
// binds to an ephemeral port; call Addr to learn where.
func ListenReceiver(addr string, cb Callback) (*Receiver, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("streaming: listen: %w", err)
	}
	r := &Receiver{ln: ln, cb: cb}
	go r.serve()
	return r, nil
}

// Addr returns the endpoint's listening address.
func (r *Receiver) Addr() string { return r.ln.Addr().String() }

// Close stops accepting new batches.
func (r *Receiver) Close() error { return r.ln.Close() }

func (r *Receiver) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		go r.handle(conn)
	}
}

func (r *Receiver) handle(conn net.Conn) {
	defer conn.Close()

	var batch Batch
	if err := gob.NewDecoder(conn).Decode(&batch); err != nil {
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for _, item := range batch.Items {
		wg.Add(1)
		go func(it Item) {
			defer wg.Done()
			if err := r.cb(it); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()

	reply := ack{OpID: batch.OpID, Index: batch.Index}
	if firstErr != nil {
		reply.Err = firstErr.Error()
	}
	gob.NewEncoder(conn).Encode(reply)
}
