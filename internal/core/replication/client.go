package replication

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zeusync/scenegraph/internal/core/observability/log"
	"github.com/zeusync/scenegraph/internal/core/scene"
)

// Client mirrors a server's replicated scene state into a local scene. The
// read loop only queues messages; ApplyPending applies them and must run on
// the goroutine that owns the scene, typically once per frame.
type Client struct {
	scene     *scene.Scene
	transport Transport
	logger    log.Log

	conn     Conn
	incoming chan Message
	synced   atomic.Bool

	connected int32
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewClient creates a replication client applying updates to the scene.
func NewClient(sc *scene.Scene, transport Transport, logger log.Log) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		scene:     sc,
		transport: transport,
		logger:    logger.With(log.String("transport", transport.Name())),
	}
}

// Connect dials the server and starts receiving updates.
func (c *Client) Connect(ctx context.Context, address string) error {
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyRunning
	}
	conn, err := c.transport.Dial(ctx, address)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		return err
	}
	c.conn = conn
	c.incoming = make(chan Message, 256)
	c.synced.Store(false)

	readCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.readLoop(readCtx)

	c.logger.Info("Connected", log.String("remote", conn.RemoteAddr().String()))
	return nil
}

// Close disconnects from the server. Queued but unapplied updates are
// dropped.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.connected, 1, 0) {
		return ErrNotConnected
	}
	c.cancel()
	err := c.conn.Close()
	c.wg.Wait()
	return err
}

// IsConnected reports whether the read loop is live.
func (c *Client) IsConnected() bool { return atomic.LoadInt32(&c.connected) == 1 }

// Synced reports whether the initial full snapshot has been applied.
func (c *Client) Synced() bool { return c.synced.Load() }

func (c *Client) readLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && atomic.LoadInt32(&c.connected) == 1 {
				c.logger.Warn("Connection lost", log.Error(err))
				atomic.StoreInt32(&c.connected, 0)
			}
			return
		}
		msg, err := Decode(raw)
		if err != nil {
			c.logger.Warn("Malformed message", log.Error(err))
			continue
		}
		select {
		case c.incoming <- msg:
		case <-ctx.Done():
			return
		default:
			c.logger.Warn("Update queue overflow, dropping message", log.String("type", msg.Type))
		}
	}
}

// ApplyPending drains queued updates into the scene and returns how many
// messages were applied.
func (c *Client) ApplyPending() int {
	applied := 0
	for {
		select {
		case msg := <-c.incoming:
			c.apply(msg)
			applied++
		default:
			return applied
		}
	}
}

func (c *Client) apply(msg Message) {
	switch msg.Type {
	case MsgSceneSnapshot:
		var payload SceneSnapshot
		if err := DecodePayload(msg, &payload); err != nil {
			c.logger.Warn("Bad scene snapshot", log.Error(err))
			return
		}
		if err := c.scene.Node.LoadNetwork(payload.Snapshot); err != nil {
			c.logger.Error("Scene snapshot apply failed", log.Error(err))
			return
		}
		c.synced.Store(true)
		c.logger.Info("Scene synchronized",
			log.Int("nodes", c.scene.NumNodes()),
			log.Uint64("checksum", payload.Checksum))

	case MsgNodeUpdate:
		var payload NodeUpdate
		if err := DecodePayload(msg, &payload); err != nil {
			c.logger.Warn("Bad node update", log.Error(err))
			return
		}
		c.applyNodeUpdate(payload)

	case MsgNodeRemoved:
		var payload NodeRemoved
		if err := DecodePayload(msg, &payload); err != nil {
			c.logger.Warn("Bad node removal", log.Error(err))
			return
		}
		if node := c.scene.GetNode(scene.NodeID(payload.ID)); node != nil {
			node.Remove()
		}

	case MsgPong:
		// liveness reply, nothing to apply

	default:
		c.logger.Warn("Unhandled message", log.String("type", msg.Type))
	}
}

// applyNodeUpdate locates or creates the target node, reparents it when the
// server moved it, and applies the snapshot.
func (c *Client) applyNodeUpdate(payload NodeUpdate) {
	parent := &c.scene.Node
	if payload.Parent != 0 {
		if p := c.scene.GetNode(scene.NodeID(payload.Parent)); p != nil {
			parent = p
		} else {
			// Parent not replicated yet; attach under the root and let a
			// later update of the parent pick the node up by id.
			c.logger.Debug("Update for node with unknown parent",
				log.NodeID(payload.ID), log.Uint32("parent", payload.Parent))
		}
	}

	node := c.scene.GetNode(scene.NodeID(payload.ID))
	if node == nil {
		node = parent.CreateChildWithID("", scene.NodeID(payload.ID))
	} else if node.Parent() != parent {
		if err := parent.AddChild(node); err != nil {
			c.logger.Warn("Reparent failed", log.NodeID(payload.ID), log.Error(err))
		}
	}

	if err := node.LoadNetwork(payload.Snapshot); err != nil {
		c.logger.Warn("Node update apply failed", log.NodeID(payload.ID), log.Error(err))
	}
}

// Ping sends a liveness probe; the server echoes a pong.
func (c *Client) Ping() error {
	if atomic.LoadInt32(&c.connected) != 1 {
		return ErrNotConnected
	}
	raw, err := Encode(MsgPing, nil)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(raw)
}
