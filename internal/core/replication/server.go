package replication

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/scenegraph/internal/core/observability/log"
	"github.com/zeusync/scenegraph/internal/core/scene"
)

// Server publishes a scene's replicated state to connected clients. Each
// client gets a full snapshot on its first tick after connecting, then
// per-node deltas built from the scene's dirty set.
//
// The scene is not safe for concurrent mutation, so Tick must run on the
// goroutine that updates the scene. Accept and read loops only touch the
// client table.
type Server struct {
	scene     *scene.Scene
	transport Transport
	state     *SceneReplicationState
	logger    log.Log

	listener Listener
	clients  map[string]*serverClient
	mu       sync.RWMutex

	running int32
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type serverClient struct {
	id   string
	conn Conn

	// needsSnapshot defers the initial full snapshot to the next Tick so
	// scene access stays on the update goroutine.
	needsSnapshot atomic.Bool
}

// NewServer creates a replication server for the scene over the transport.
func NewServer(sc *scene.Scene, transport Transport, logger log.Log) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	return &Server{
		scene:     sc,
		transport: transport,
		state:     NewSceneReplicationState(),
		logger:    logger.With(log.String("transport", transport.Name())),
		clients:   make(map[string]*serverClient),
	}
}

// Start begins listening and accepting clients.
func (s *Server) Start(ctx context.Context, address string) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := s.transport.Listen(s.ctx, address)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("Replication server started", log.String("address", listener.Addr().String()))
	return nil
}

// Stop disconnects all clients and stops listening.
func (s *Server) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrNotRunning
	}
	s.cancel()
	err := s.listener.Close()

	s.mu.Lock()
	for _, client := range s.clients {
		_ = client.conn.Close()
	}
	s.clients = make(map[string]*serverClient)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Replication server stopped")
	return err
}

// IsRunning reports whether the server accepts clients.
func (s *Server) IsRunning() bool { return atomic.LoadInt32(&s.running) == 1 }

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil && atomic.LoadInt32(&s.running) == 1 {
				s.logger.Error("Accept failed", log.Error(err))
			}
			return
		}
		client := &serverClient{id: uuid.NewString(), conn: conn}
		client.needsSnapshot.Store(true)

		s.mu.Lock()
		s.clients[client.id] = client
		s.mu.Unlock()

		s.logger.Info("Client connected",
			log.String("client_id", client.id),
			log.String("remote", conn.RemoteAddr().String()))

		s.wg.Add(1)
		go s.readLoop(client)
	}
}

// readLoop drains inbound frames. Clients are passive receivers; only
// liveness probes get a reply.
func (s *Server) readLoop(client *serverClient) {
	defer s.wg.Done()
	defer s.dropClient(client)

	for {
		raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := Decode(raw)
		if err != nil {
			s.logger.Warn("Malformed message", log.String("client_id", client.id), log.Error(err))
			continue
		}
		if msg.Type == MsgPing {
			if reply, err := Encode(MsgPong, nil); err == nil {
				_ = client.conn.WriteMessage(reply)
			}
		}
	}
}

func (s *Server) dropClient(client *serverClient) {
	s.mu.Lock()
	_, present := s.clients[client.id]
	delete(s.clients, client.id)
	s.mu.Unlock()

	_ = client.conn.Close()
	if present && atomic.LoadInt32(&s.running) == 1 {
		s.logger.Info("Client disconnected", log.String("client_id", client.id))
	}
}

// Tick drains the scene's dirty set and broadcasts the resulting updates.
// Fresh clients receive a full snapshot first. Call once per frame after
// the scene update, on the update goroutine.
func (s *Server) Tick() error {
	if atomic.LoadInt32(&s.running) != 1 {
		return ErrNotRunning
	}

	s.sendSnapshots()

	dirty := s.scene.PrepareNetworkUpdate()
	if dirty.Empty() {
		return nil
	}

	for _, id := range s.resolveDirtyNodes(dirty) {
		node := s.scene.GetNode(scene.NodeID(id))
		if node == nil {
			if s.state.Knows(id) {
				s.state.Forget(id)
				s.broadcast(MsgNodeRemoved, NodeRemoved{ID: id})
			}
			continue
		}
		var buf bytes.Buffer
		if err := node.SaveNetwork(&buf); err != nil {
			s.logger.Error("Node snapshot failed", log.NodeID(id), log.Error(err))
			continue
		}
		s.state.Touch(id, replicatedComponentIDs(node))
		s.broadcast(MsgNodeUpdate, NodeUpdate{
			ID:       id,
			Parent:   s.wireParent(node),
			Snapshot: buf.Bytes(),
		})
	}
	return nil
}

// resolveDirtyNodes folds dirty component ids into their owning nodes and
// returns the sorted union with the dirty node ids. The root never travels
// as a node update; its changes ride in full snapshots.
func (s *Server) resolveDirtyNodes(dirty scene.DirtySet) []uint32 {
	set := make(map[uint32]struct{}, len(dirty.Nodes))
	rootID := uint32(s.scene.Node.ID())
	for _, id := range dirty.Nodes {
		if uint32(id) != rootID {
			set[uint32(id)] = struct{}{}
		}
	}
	for _, id := range dirty.Components {
		if comp := s.scene.GetComponent(id); comp != nil && comp.Node() != nil {
			if nodeID := uint32(comp.Node().ID()); nodeID != rootID {
				set[nodeID] = struct{}{}
			}
		} else if owner, ok := s.state.Owner(uint32(id)); ok {
			set[owner] = struct{}{}
		}
	}
	ids := make([]uint32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sendSnapshots serves full scene state to clients that connected since the
// last tick and seeds the replication state for their follow-up deltas.
func (s *Server) sendSnapshots() {
	s.mu.RLock()
	fresh := make([]*serverClient, 0, 2)
	for _, client := range s.clients {
		if client.needsSnapshot.Load() {
			fresh = append(fresh, client)
		}
	}
	s.mu.RUnlock()
	if len(fresh) == 0 {
		return
	}

	var buf bytes.Buffer
	if err := s.scene.Node.SaveNetwork(&buf); err != nil {
		s.logger.Error("Scene snapshot failed", log.Error(err))
		return
	}
	raw, err := Encode(MsgSceneSnapshot, SceneSnapshot{
		Checksum: s.scene.Checksum(),
		Snapshot: buf.Bytes(),
	})
	if err != nil {
		s.logger.Error("Scene snapshot encode failed", log.Error(err))
		return
	}

	s.seedState()
	for _, client := range fresh {
		if err := client.conn.WriteMessage(raw); err != nil {
			s.logger.Warn("Snapshot send failed", log.String("client_id", client.id), log.Error(err))
			continue
		}
		client.needsSnapshot.Store(false)
		s.logger.Debug("Snapshot sent",
			log.String("client_id", client.id),
			log.Int("bytes", len(raw)))
	}
}

// seedState records every replicated node currently in the scene so later
// removals are routable even for nodes that never went dirty after the
// snapshot.
func (s *Server) seedState() {
	rootID := uint32(s.scene.Node.ID())
	s.forEachReplicated(&s.scene.Node, func(node *scene.Node) {
		if uint32(node.ID()) == rootID {
			return
		}
		s.state.Touch(uint32(node.ID()), replicatedComponentIDs(node))
	})
}

func (s *Server) forEachReplicated(node *scene.Node, fn func(*scene.Node)) {
	fn(node)
	for _, child := range node.Children() {
		if child.ID().Replicated() {
			s.forEachReplicated(child, fn)
		}
	}
}

func (s *Server) broadcast(msgType string, payload any) {
	raw, err := Encode(msgType, payload)
	if err != nil {
		s.logger.Error("Message encode failed", log.String("type", msgType), log.Error(err))
		return
	}

	s.mu.RLock()
	targets := make([]*serverClient, 0, len(s.clients))
	for _, client := range s.clients {
		if !client.needsSnapshot.Load() {
			targets = append(targets, client)
		}
	}
	s.mu.RUnlock()

	for _, client := range targets {
		if err := client.conn.WriteMessage(raw); err != nil {
			s.logger.Warn("Broadcast send failed", log.String("client_id", client.id), log.Error(err))
		}
	}
}

// wireParent maps a node's parent to its wire form: zero means the scene
// root.
func (s *Server) wireParent(node *scene.Node) uint32 {
	parent := node.Parent()
	if parent == nil || parent == &s.scene.Node {
		return 0
	}
	return uint32(parent.ID())
}

func replicatedComponentIDs(node *scene.Node) []uint32 {
	ids := make([]uint32, 0, len(node.Components()))
	for _, comp := range node.Components() {
		if comp.ID().Replicated() {
			ids = append(ids, uint32(comp.ID()))
		}
	}
	return ids
}

// RunTicker drives Tick at the interval until the context ends. Only for
// servers whose scene is mutated exclusively from the same goroutine that
// called RunTicker.
func (s *Server) RunTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
