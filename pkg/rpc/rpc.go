// Package rpc is the provider's network-facing request dispatch: a
// TCP listener that decodes one gob-encoded Request per connection,
// routes it to pkg/registry/pkg/engine/pkg/migration, and gob-encodes
// a Response back. It plays the role warren's pkg/api (server) and
// pkg/client (client) play together — one method per RPC on each side
// — without the gRPC/mTLS stack those used (see DESIGN.md for why).
package rpc

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mochi-hpc/yokan-go/pkg/backend"
	"github.com/mochi-hpc/yokan-go/pkg/backend/boltkv"
	"github.com/mochi-hpc/yokan-go/pkg/backend/mapkv"
	"github.com/mochi-hpc/yokan-go/pkg/buffer"
	"github.com/mochi-hpc/yokan-go/pkg/codec"
	"github.com/mochi-hpc/yokan-go/pkg/engine"
	"github.com/mochi-hpc/yokan-go/pkg/log"
	"github.com/mochi-hpc/yokan-go/pkg/migration"
	"github.com/mochi-hpc/yokan-go/pkg/registry"
	"github.com/mochi-hpc/yokan-go/pkg/streaming"
	"github.com/mochi-hpc/yokan-go/pkg/transport"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

// Request is the wire envelope for every RPC this package serves. Op
// selects which fields are meaningful; unused fields are left zero.
type Request struct {
	Op    string
	Token string

	DBID       string
	Name       string
	DBType     string
	Config     string
	Collection string

	Key   []byte
	Value []byte
	Mode  wire.Mode
	DocID uint64

	TokenTTL time.Duration

	// Region carries a bulk-pull request's encoded payload (spec.md
	// §4.1): the provider stages it through a pkg/buffer.Cache buffer
	// rather than decoding the gob bytes in place, so the response
	// Region below reflects the staged (and possibly mutated) copy.
	Region []byte
	Count  int
	Packed bool

	// FromKey/Filter/MaxCount/FromID drive the direct and streaming
	// shapes of list_keys/list_keyvals/fetch/iter/doc_list/doc_fetch/
	// doc_iter, where the scan description travels as plain fields
	// instead of inside Region.
	FromKey  []byte
	Filter   []byte
	MaxCount int
	FromID   uint64

	// FromKeySize/FilterSize/KeyBufSize/ValBufSize/WithValues describe
	// a list_keys_bulk/list_keyvals_bulk Region's layout (spec.md §4.1);
	// the scan inputs travel inside Region for this shape, sized by
	// these fields rather than passed as FromKey/Filter directly.
	FromKeySize int
	FilterSize  int
	KeyBufSize  int
	ValBufSize  int
	WithValues  bool

	// OpRef/BatchSize identify the streaming back-RPC shape (spec.md
	// §4.7): OpRef is the address of the client's own back-RPC
	// endpoint, BatchSize bounds how many items travel per batch (0
	// meaning "all at once").
	OpRef     string
	BatchSize int
}

// Response is the wire envelope for every RPC's reply.
type Response struct {
	Err string

	DBID  string
	Names []string

	Value []byte
	Found bool
	Size  uint64

	Token     string
	ExpiresAt time.Time

	DocID uint64

	// Region echoes back a bulk-pull request's staged buffer, carrying
	// whatever result sizes/bytes the engine wrote into it.
	Region []byte

	// Keys/Values answer the direct shape of list_keys/list_keyvals;
	// DocIDs/Docs answer doc_list.
	Keys   [][]byte
	Values [][]byte
	DocIDs []uint64
	Docs   [][]byte
}

// Server dispatches decoded Requests against a registry, the engine
// built on it, and a migration coordinator sharing that registry.
type Server struct {
	Registry  *registry.Registry
	Engine    *engine.Engine
	Migration *migration.Coordinator
	Buffers   buffer.Cache

	ln     net.Listener
	opSeq  uint64 // atomic: scopes streaming back-RPC batches (spec.md §4.7)
}

// NewServer builds a Server around a fresh registry/engine/migration
// coordinator triple and a default-policy buffer cache (spec.md §4.2/
// §6 "buffer_cache") staging every bulk-pull request.
func NewServer() *Server {
	reg := registry.New()
	return &Server{
		Registry:  reg,
		Engine:    engine.New(reg),
		Migration: migration.New(reg),
		Buffers:   buffer.New(buffer.Config{Policy: buffer.PolicyDefault}),
	}
}

// Listen binds addr; call Serve afterward to run the accept loop. The
// bind completes before Listen returns, so Addr is safe to call
// immediately after — unlike folding both into one ListenAndServe
// call, which would race a caller that runs it in its own goroutine.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen: %w", err)
	}
	s.ln = ln
	return nil
}

// Serve runs the accept loop until Close is called. Listen must have
// been called first.
func (s *Server) Serve() error {
	logger := log.WithComponent("rpc")
	logger.Info().Str("addr", s.ln.Addr().String()).Msg("provider listening")
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return nil
		}
		go s.handle(conn)
	}
}

// ListenAndServe binds addr and serves until Close is called.
func (s *Server) ListenAndServe(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Addr reports the listener's bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close stops accepting new connections and logs a leak warning if any
// staging buffer is still checked out (spec.md §4.2).
func (s *Server) Close() error {
	if leaked := s.Buffers.Close(); leaked > 0 {
		log.WithComponent("rpc").Warn().Int("count", leaked).Msg("staging buffers still checked out at shutdown")
	}
	return s.ln.Close()
}

// stage runs fn against a pkg/buffer.Cache-allocated staging region
// seeded with payload's contents (spec.md §4.6 step 3: "obtains one
// staging buffer sized to the payload"), releasing it on every exit
// path, and returns the region's bytes afterward so the caller can
// echo back whatever fn wrote into it.
func (s *Server) stage(payload []byte, mode wire.TransferMode, fn func(r codec.Region) error) ([]byte, error) {
	buf, err := s.Buffers.Get(len(payload), mode)
	if err != nil {
		return nil, err
	}
	defer buf.Release()
	region := buf.Data[:len(payload)]
	copy(region, payload)
	if err := fn(transport.NewBulkHandle(region)); err != nil {
		return nil, err
	}
	out := make([]byte, len(region))
	copy(out, region)
	return out, nil
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := gob.NewDecoder(conn).Decode(&req); err != nil {
		return
	}
	resp := s.dispatch(req)
	gob.NewEncoder(conn).Encode(resp)
}

func errResp(err error) Response { return Response{Err: err.Error()} }

func (s *Server) dispatch(req Request) Response {
	switch req.Op {
	case "open":
		return s.open(req)
	case "close":
		return s.closeDB(req)
	case "destroy":
		return s.destroy(req)
	case "list":
		return s.list(req)
	case "token_generate":
		return s.tokenGenerate(req)
	case "migrate_start":
		return s.migrateStart(req)
	case "migrate_complete":
		return s.migrateComplete(req)
	case "migrate_cancel":
		return s.migrateCancel(req)
	case "put":
		return s.put(req)
	case "get":
		return s.get(req)
	case "exists":
		return s.exists(req)
	case "length":
		return s.length(req)
	case "erase":
		return s.erase(req)
	case "count":
		return s.count(req)
	case "put_bulk":
		return s.putBulk(req)
	case "get_bulk":
		return s.getBulk(req)
	case "exists_bulk":
		return s.existsBulk(req)
	case "length_bulk":
		return s.lengthBulk(req)
	case "erase_bulk":
		return s.eraseBulk(req)
	case "list_keys":
		return s.listKeys(req, false)
	case "list_keyvals":
		return s.listKeys(req, true)
	case "list_keys_bulk":
		return s.listKeysBulk(req, false)
	case "list_keyvals_bulk":
		return s.listKeysBulk(req, true)
	case "fetch":
		return s.fetch(req, true)
	case "iter":
		return s.fetch(req, false)
	case "coll_create":
		return s.collCreate(req)
	case "coll_drop":
		return s.collDrop(req)
	case "coll_exists":
		return s.collExists(req)
	case "coll_size":
		return s.collSize(req)
	case "coll_last_id":
		return s.collLastID(req)
	case "doc_store":
		return s.docStore(req)
	case "doc_load":
		return s.docLoad(req)
	case "doc_update":
		return s.docUpdate(req)
	case "doc_erase":
		return s.docErase(req)
	case "doc_length":
		return s.docLength(req)
	case "doc_list":
		return s.docList(req)
	case "doc_store_bulk":
		return s.docStoreBulk(req)
	case "doc_load_bulk":
		return s.docLoadBulk(req)
	case "doc_erase_bulk":
		return s.docEraseBulk(req)
	case "doc_length_bulk":
		return s.docLengthBulk(req)
	case "doc_fetch":
		return s.docFetch(req, true)
	case "doc_iter":
		return s.docFetch(req, false)
	default:
		return Response{Err: fmt.Sprintf("rpc: unknown op %q", req.Op)}
	}
}

func (s *Server) requireAdmin(token string) error {
	return s.Registry.Tokens().Validate(token)
}

func (s *Server) open(req Request) Response {
	if err := s.requireAdmin(req.Token); err != nil {
		return errResp(err)
	}
	be, err := newBackend(req.DBType, req.Config)
	if err != nil {
		return errResp(err)
	}
	db, err := s.Registry.Open(req.Name, req.DBType, req.Config, be)
	if err != nil {
		return errResp(err)
	}
	return Response{DBID: db.ID.String()}
}

func (s *Server) closeDB(req Request) Response {
	if err := s.requireAdmin(req.Token); err != nil {
		return errResp(err)
	}
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	if err := s.Registry.Close(id); err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) destroy(req Request) Response {
	if err := s.requireAdmin(req.Token); err != nil {
		return errResp(err)
	}
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	if err := s.Registry.Destroy(context.Background(), id); err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) list(req Request) Response {
	if err := s.requireAdmin(req.Token); err != nil {
		return errResp(err)
	}
	ids := s.Registry.List()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return Response{Names: names}
}

func (s *Server) tokenGenerate(req Request) Response {
	ttl := req.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	tok, err := s.Registry.Tokens().Generate(ttl)
	if err != nil {
		return errResp(err)
	}
	return Response{Token: tok.Token, ExpiresAt: tok.ExpiresAt}
}

func (s *Server) migrateStart(req Request) Response {
	if err := s.requireAdmin(req.Token); err != nil {
		return errResp(err)
	}
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	plan, err := s.Migration.StartMigration(context.Background(), id)
	if err != nil {
		return errResp(err)
	}
	return Response{Names: plan.Files, Value: []byte(plan.Root)}
}

func (s *Server) migrateComplete(req Request) Response {
	if err := s.requireAdmin(req.Token); err != nil {
		return errResp(err)
	}
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	if err := s.Migration.CompleteMigration(context.Background(), id); err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) migrateCancel(req Request) Response {
	if err := s.requireAdmin(req.Token); err != nil {
		return errResp(err)
	}
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	if err := s.Migration.CancelMigration(context.Background(), id); err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) put(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	if err := s.Engine.Put(context.Background(), id, req.Mode, req.Key, req.Value); err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) get(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	v, size, err := s.Engine.Get(context.Background(), id, req.Key)
	if err != nil {
		return errResp(err)
	}
	if size == wire.KeyNotFound {
		return Response{Found: false}
	}
	return Response{Value: v, Found: true, Size: size}
}

func (s *Server) exists(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	ok, err := s.Engine.Exists(context.Background(), id, req.Key)
	if err != nil {
		return errResp(err)
	}
	return Response{Found: ok}
}

func (s *Server) length(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	size, err := s.Engine.Length(context.Background(), id, req.Key)
	if err != nil {
		return errResp(err)
	}
	if size == wire.KeyNotFound {
		return Response{Found: false}
	}
	return Response{Found: true, Size: size}
}

func (s *Server) erase(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	if err := s.Engine.Erase(context.Background(), id, req.Key); err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) count(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	n, err := s.Engine.Count(context.Background(), id)
	if err != nil {
		return errResp(err)
	}
	return Response{Size: n}
}

func (s *Server) collCreate(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	if err := s.Engine.CollCreate(context.Background(), id, req.Collection); err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) docStore(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	docID, err := s.Engine.DocStore(context.Background(), id, req.Collection, req.Value)
	if err != nil {
		return errResp(err)
	}
	return Response{DocID: docID}
}

func (s *Server) docLoad(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	v, found, err := s.Engine.DocLoad(context.Background(), id, req.Collection, req.DocID)
	if err != nil {
		return errResp(err)
	}
	return Response{Value: v, Found: found}
}

func (s *Server) putBulk(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	_, err = s.stage(req.Region, wire.TransferReadOnly, func(r codec.Region) error {
		return s.Engine.PutBulk(context.Background(), id, req.Mode, r, req.Count)
	})
	if err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) getBulk(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	out, err := s.stage(req.Region, wire.TransferReadWrite, func(r codec.Region) error {
		return s.Engine.GetBulk(context.Background(), id, r, req.Count, req.Packed)
	})
	if err != nil {
		return errResp(err)
	}
	return Response{Region: out}
}

func (s *Server) existsBulk(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	out, err := s.stage(req.Region, wire.TransferReadWrite, func(r codec.Region) error {
		return s.Engine.ExistsBulk(context.Background(), id, r, req.Count)
	})
	if err != nil {
		return errResp(err)
	}
	return Response{Region: out}
}

func (s *Server) lengthBulk(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	out, err := s.stage(req.Region, wire.TransferReadWrite, func(r codec.Region) error {
		return s.Engine.LengthBulk(context.Background(), id, r, req.Count)
	})
	if err != nil {
		return errResp(err)
	}
	return Response{Region: out}
}

func (s *Server) eraseBulk(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	_, err = s.stage(req.Region, wire.TransferReadOnly, func(r codec.Region) error {
		return s.Engine.EraseBulk(context.Background(), id, r, req.Count)
	})
	if err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) listKeys(req Request, withValues bool) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	results, err := s.Engine.ListKeys(context.Background(), id, req.Mode, req.FromKey, req.Filter, req.MaxCount, withValues)
	if err != nil {
		return errResp(err)
	}
	keys := make([][]byte, len(results))
	var values [][]byte
	if withValues {
		values = make([][]byte, len(results))
	}
	for i, r := range results {
		keys[i] = r.Key
		if withValues {
			values[i] = r.Value
		}
	}
	return Response{Keys: keys, Values: values}
}

func (s *Server) listKeysBulk(req Request, withValues bool) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	out, err := s.stage(req.Region, wire.TransferReadWrite, func(r codec.Region) error {
		return s.Engine.ListKeysBulk(context.Background(), id, req.Mode, r, req.Count, req.FromKeySize, req.FilterSize, req.KeyBufSize, req.ValBufSize, withValues)
	})
	if err != nil {
		return errResp(err)
	}
	return Response{Region: out}
}

// fetch implements `fetch`/`iter`: same scan as listKeys, but results
// travel over a streaming back-RPC to the client's own endpoint
// (spec.md §4.7) instead of through this RPC's response.
func (s *Server) fetch(req Request, withValues bool) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	results, err := s.Engine.ListKeys(context.Background(), id, req.Mode, req.FromKey, req.Filter, req.MaxCount, withValues)
	if err != nil {
		return errResp(err)
	}
	items := make([]streaming.Item, len(results))
	for i, r := range results {
		items[i] = streaming.Item{Index: i, Key: r.Key, Value: r.Value}
	}
	opID := atomic.AddUint64(&s.opSeq, 1)
	if err := streaming.NewSender(req.OpRef, req.BatchSize).Send(opID, items); err != nil {
		return errResp(err)
	}
	return Response{Size: uint64(len(items))}
}

func (s *Server) collDrop(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	if err := s.Engine.CollDrop(context.Background(), id, req.Collection); err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) collExists(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	ok, err := s.Engine.CollExists(context.Background(), id, req.Collection)
	if err != nil {
		return errResp(err)
	}
	return Response{Found: ok}
}

func (s *Server) collSize(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	n, err := s.Engine.CollSize(context.Background(), id, req.Collection)
	if err != nil {
		return errResp(err)
	}
	return Response{Size: n}
}

func (s *Server) collLastID(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	n, err := s.Engine.CollLastID(context.Background(), id, req.Collection)
	if err != nil {
		return errResp(err)
	}
	return Response{Size: n}
}

func (s *Server) docUpdate(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	if err := s.Engine.DocUpdate(context.Background(), id, req.Collection, req.DocID, req.Value); err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) docErase(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	if err := s.Engine.DocErase(context.Background(), id, req.Collection, req.DocID); err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) docLength(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	size, found, err := s.Engine.DocLength(context.Background(), id, req.Collection, req.DocID)
	if err != nil {
		return errResp(err)
	}
	return Response{Size: size, Found: found}
}

func (s *Server) docList(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	results, err := s.Engine.DocList(context.Background(), id, req.Collection, req.Mode, req.FromID, req.Filter, req.MaxCount)
	if err != nil {
		return errResp(err)
	}
	docIDs := make([]uint64, len(results))
	docs := make([][]byte, len(results))
	for i, r := range results {
		docIDs[i] = r.ID
		docs[i] = r.Doc
	}
	return Response{DocIDs: docIDs, Docs: docs}
}

func (s *Server) docStoreBulk(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	out, err := s.stage(req.Region, wire.TransferReadWrite, func(r codec.Region) error {
		return s.Engine.DocStoreBulk(context.Background(), id, req.Collection, r, req.Count)
	})
	if err != nil {
		return errResp(err)
	}
	return Response{Region: out}
}

func (s *Server) docLoadBulk(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	out, err := s.stage(req.Region, wire.TransferReadWrite, func(r codec.Region) error {
		return s.Engine.DocLoadBulk(context.Background(), id, req.Collection, r, req.Count, req.Packed)
	})
	if err != nil {
		return errResp(err)
	}
	return Response{Region: out}
}

func (s *Server) docEraseBulk(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	_, err = s.stage(req.Region, wire.TransferReadOnly, func(r codec.Region) error {
		return s.Engine.DocEraseBulk(context.Background(), id, req.Collection, r, req.Count)
	})
	if err != nil {
		return errResp(err)
	}
	return Response{}
}

func (s *Server) docLengthBulk(req Request) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	out, err := s.stage(req.Region, wire.TransferReadWrite, func(r codec.Region) error {
		return s.Engine.DocLengthBulk(context.Background(), id, req.Collection, r, req.Count)
	})
	if err != nil {
		return errResp(err)
	}
	return Response{Region: out}
}

// docFetch implements `doc_fetch`/`doc_iter`: same scan as docList, but
// streamed back over a back-RPC (spec.md §4.7).
func (s *Server) docFetch(req Request, withDocs bool) Response {
	id, err := uuid.Parse(req.DBID)
	if err != nil {
		return errResp(err)
	}
	results, err := s.Engine.DocList(context.Background(), id, req.Collection, req.Mode, req.FromID, req.Filter, req.MaxCount)
	if err != nil {
		return errResp(err)
	}
	items := make([]streaming.Item, len(results))
	for i, r := range results {
		it := streaming.Item{Index: i, ID: r.ID}
		if withDocs {
			it.Doc = r.Doc
		}
		items[i] = it
	}
	opID := atomic.AddUint64(&s.opSeq, 1)
	if err := streaming.NewSender(req.OpRef, req.BatchSize).Send(opID, items); err != nil {
		return errResp(err)
	}
	return Response{Size: uint64(len(items))}
}

func newBackend(dbType, config string) (backend.Backend, error) {
	switch dbType {
	case "map":
		return mapkv.New(), nil
	case "bolt":
		path, err := boltPathFromConfig(config)
		if err != nil {
			return nil, err
		}
		return boltkv.Open(path)
	default:
		return nil, fmt.Errorf("rpc: unknown backend type %q", dbType)
	}
}

func boltPathFromConfig(config string) (string, error) {
	var parsed struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(config), &parsed); err != nil {
		return "", fmt.Errorf("rpc: parse bolt config: %w", err)
	}
	if parsed.Path == "" {
		return "", fmt.Errorf("rpc: bolt config missing path")
	}
	return parsed.Path, nil
}
