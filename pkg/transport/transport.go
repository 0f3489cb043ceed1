// Package transport implements the provider's transport glue (spec.md
// §4.10): the identity string advertised on the provider's endpoint,
// dedup of per-process RPC registration, and the bulk-handle
// abstraction pkg/codec reads/writes through. The real system moves
// these bytes over RDMA (Mercury/Margo); that substrate is explicitly
// out of scope (spec.md Non-goals), so BulkHandle here is an in-process
// byte-slice mover that satisfies the same pull/push contract, and
// RemoteHandle offers the one concrete cross-process mover (TCP +
// encoding/gob) a deployment needs when client and provider are not in
// the same process.
package transport

import (
	"encoding/gob"
	"fmt"
	"net"
	"sync"

	"github.com/mochi-hpc/yokan-go/pkg/yerr"
)

// Identity is the stable string a provider advertises on its endpoint;
// client handle creation verifies it when requested (spec.md §4.10).
const Identity = "yokan"

// registrar deduplicates RPC registration per provider id within one
// process (spec.md §4.10 "duplicate registration on the same id
// returns INVALID_PROVIDER").
type registrar struct {
	mu        sync.Mutex
	providers map[string]bool
}

var global = &registrar{providers: make(map[string]bool)}

// RegisterProvider marks providerID as having registered its RPC
// endpoints. A second call with the same id fails.
func RegisterProvider(providerID string) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.providers[providerID] {
		return yerr.New(yerr.InvalidProvider)
	}
	global.providers[providerID] = true
	return nil
}

// VerifyIdentity checks an endpoint's advertised identity string.
func VerifyIdentity(advertised string) error {
	if advertised != Identity {
		return yerr.New(yerr.InvalidProvider)
	}
	return nil
}

// BulkHandle is an in-process staging region: pkg/codec reads and
// writes through Bytes() directly, so Pull/Push here are no-ops that
// exist to mirror the real RDMA handle's API shape (callers that hold
// a remote origin use RemoteHandle instead).
type BulkHandle struct {
	buf []byte
}

// NewBulkHandle wraps an already-sized buffer (typically on loan from
// pkg/buffer) as a single-segment bulk region.
func NewBulkHandle(buf []byte) *BulkHandle { return &BulkHandle{buf: buf} }

func (h *BulkHandle) Bytes() []byte { return h.buf }
func (h *BulkHandle) Segments() int { return 1 }

// Pull is a no-op: an in-process BulkHandle's bytes are already the
// caller's memory.
func (h *BulkHandle) Pull() error { return nil }

// Push is a no-op for the same reason.
func (h *BulkHandle) Push() error { return nil }

// RemoteHandle moves a staging region to/from a peer over a plain TCP
// connection, framed with encoding/gob. This is the module's one
// concrete cross-process bulk mover; it stands in for Mercury/Margo's
// RDMA transfer, which is out of scope here (spec.md Non-goals).
type RemoteHandle struct {
	Addr string
	buf  []byte
}

// NewRemoteHandle describes a region of size bytes backed by the peer
// at addr.
func NewRemoteHandle(addr string, size int) *RemoteHandle {
	return &RemoteHandle{Addr: addr, buf: make([]byte, size)}
}

func (h *RemoteHandle) Bytes() []byte { return h.buf }
func (h *RemoteHandle) Segments() int { return 1 }

// Pull fetches the peer's current bytes into this handle's buffer.
func (h *RemoteHandle) Pull() error {
	conn, err := net.Dial("tcp", h.Addr)
	if err != nil {
		return fmt.Errorf("transport: dialing %s: %w", h.Addr, yerr.Wrap(yerr.FromMercury, err))
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("PULL")); err != nil {
		return yerr.Wrap(yerr.FromMercury, err)
	}
	var payload []byte
	if err := gob.NewDecoder(conn).Decode(&payload); err != nil {
		return yerr.Wrap(yerr.FromMercury, err)
	}
	copy(h.buf, payload)
	return nil
}

// Push sends this handle's current bytes to the peer.
func (h *RemoteHandle) Push() error {
	conn, err := net.Dial("tcp", h.Addr)
	if err != nil {
		return fmt.Errorf("transport: dialing %s: %w", h.Addr, yerr.Wrap(yerr.FromMercury, err))
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("PUSH")); err != nil {
		return yerr.Wrap(yerr.FromMercury, err)
	}
	if err := gob.NewEncoder(conn).Encode(h.buf); err != nil {
		return yerr.Wrap(yerr.FromMercury, err)
	}
	return nil
}

// Peer is a minimal server that answers PULL/PUSH requests against a
// fixed in-memory region, used on the side that exposes memory for a
// RemoteHandle to move bytes to/from.
type Peer struct {
	mu  sync.Mutex
	buf []byte
	ln  net.Listener
}

// ListenPeer starts serving region over a TCP listener on addr.
func ListenPeer(addr string, region []byte) (*Peer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listening on %s: %w", addr, err)
	}
	p := &Peer{buf: region, ln: ln}
	go p.serve()
	return p, nil
}

// Addr returns the address the peer is actually listening on (useful
// when addr was ":0").
func (p *Peer) Addr() string { return p.ln.Addr().String() }

// Close stops the peer from accepting further connections.
func (p *Peer) Close() error { return p.ln.Close() }

func (p *Peer) serve() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		go p.handle(conn)
	}
}

func (p *Peer) handle(conn net.Conn) {
	defer conn.Close()
	var cmd [4]byte
	if _, err := conn.Read(cmd[:]); err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch string(cmd[:]) {
	case "PULL":
		gob.NewEncoder(conn).Encode(p.buf)
	case "PUSH":
		var payload []byte
		if err := gob.NewDecoder(conn).Decode(&payload); err != nil {
			return
		}
		copy(p.buf, payload)
	}
}
