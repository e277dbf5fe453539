package replication_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenegraph/internal/core/math3d"
	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/internal/core/replication"
	"github.com/zeusync/scenegraph/internal/core/scene"
	"github.com/zeusync/scenegraph/internal/core/variant"
)

// Health is the replicated test component.
type Health struct {
	scene.BaseComponent
	value float32
}

func (*Health) TypeName() string { return "Health" }

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, scene.RegisterComponent(reg, func() scene.Component { return &Health{} }))
	require.NoError(t, reg.RegisterAttributes("Health",
		registry.Attr("Value", variant.TypeFloat, variant.FromFloat(0), registry.ModeDefault,
			func(h *Health) variant.Variant { return variant.FromFloat(h.value) },
			func(h *Health, v variant.Variant) { h.value = v.Float() }),
	))
	return reg
}

func newTestScene(t *testing.T) *scene.Scene {
	t.Helper()
	return scene.NewScene(newTestRegistry(t), nil, nil, nil)
}

// memTransport is an in-process transport so server/client tests stay off
// the network and deterministic.
type memTransport struct {
	accepted chan replication.Conn
}

func newMemTransport() *memTransport {
	return &memTransport{accepted: make(chan replication.Conn, 8)}
}

func (t *memTransport) Name() string { return "mem" }

func (t *memTransport) Listen(context.Context, string) (replication.Listener, error) {
	return &memListener{transport: t}, nil
}

func (t *memTransport) Dial(context.Context, string) (replication.Conn, error) {
	client, server := newMemConnPair()
	t.accepted <- server
	return client, nil
}

type memListener struct {
	transport *memTransport
}

func (l *memListener) Accept(ctx context.Context) (replication.Conn, error) {
	select {
	case conn := <-l.transport.accepted:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *memListener) Addr() net.Addr {
	return &net.UnixAddr{Name: "mem", Net: "unix"}
}

func (l *memListener) Close() error { return nil }

type memConn struct {
	in     chan []byte
	peer   *memConn
	closed chan struct{}
	once   sync.Once
}

func newMemConnPair() (*memConn, *memConn) {
	a := &memConn{in: make(chan []byte, 256), closed: make(chan struct{})}
	b := &memConn{in: make(chan []byte, 256), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (c *memConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, replication.ErrClosed
	case <-c.peer.closed:
		return nil, replication.ErrClosed
	}
}

func (c *memConn) WriteMessage(data []byte) error {
	select {
	case c.peer.in <- data:
		return nil
	case <-c.closed:
		return replication.ErrClosed
	case <-c.peer.closed:
		return replication.ErrClosed
	}
}

func (c *memConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *memConn) RemoteAddr() net.Addr {
	return &net.UnixAddr{Name: "mem-peer", Net: "unix"}
}

// startPair wires a server and a connected, synced client over the memory
// transport.
func startPair(t *testing.T) (*replication.Server, *scene.Scene, *replication.Client, *scene.Scene) {
	t.Helper()
	transport := newMemTransport()

	serverScene := newTestScene(t)
	srv := replication.NewServer(serverScene, transport, nil)
	require.NoError(t, srv.Start(context.Background(), "mem"))
	t.Cleanup(func() { _ = srv.Stop() })

	clientScene := newTestScene(t)
	cl := replication.NewClient(clientScene, transport, nil)
	require.NoError(t, cl.Connect(context.Background(), "mem"))
	t.Cleanup(func() {
		if cl.IsConnected() {
			_ = cl.Close()
		}
	})

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 },
		time.Second, time.Millisecond)
	return srv, serverScene, cl, clientScene
}

// pump ticks the server and applies client updates until cond holds.
func pump(t *testing.T, srv *replication.Server, cl *replication.Client, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if err := srv.Tick(); err != nil {
			return false
		}
		cl.ApplyPending()
		return cond()
	}, 2*time.Second, time.Millisecond)
}

func TestClientReceivesInitialSnapshot(t *testing.T) {
	srv, serverScene, cl, clientScene := startPair(t)

	hero := serverScene.CreateChild("hero", scene.Replicated)
	hero.SetPosition(math3d.Vector3{X: 5, Y: 1, Z: 0})
	comp, err := hero.CreateComponent("Health", scene.Replicated)
	require.NoError(t, err)
	comp.(*Health).value = 80
	serverScene.CreateChild("camera", scene.Local)

	pump(t, srv, cl, cl.Synced)

	mirrored := clientScene.GetNode(hero.ID())
	require.NotNil(t, mirrored)
	require.Equal(t, "hero", mirrored.Name())
	require.Equal(t, hero.Position(), mirrored.Position())

	health, ok := clientScene.GetComponent(comp.ID()).(*Health)
	require.True(t, ok)
	require.Equal(t, float32(80), health.value)

	// The server's local node never leaves the process.
	require.Nil(t, clientScene.Node.Child("camera"))
}

func TestDeltaPropagatesTransformChange(t *testing.T) {
	srv, serverScene, cl, clientScene := startPair(t)
	hero := serverScene.CreateChild("hero", scene.Replicated)
	pump(t, srv, cl, cl.Synced)

	hero.SetPosition(math3d.Vector3{X: -3, Y: 2, Z: 9})
	pump(t, srv, cl, func() bool {
		mirrored := clientScene.GetNode(hero.ID())
		return mirrored != nil && mirrored.Position() == hero.Position()
	})
}

func TestDeltaPropagatesNewNodeAndRemoval(t *testing.T) {
	srv, serverScene, cl, clientScene := startPair(t)
	pump(t, srv, cl, cl.Synced)

	spawned := serverScene.CreateChild("spawned", scene.Replicated)
	pump(t, srv, cl, func() bool {
		return clientScene.GetNode(spawned.ID()) != nil
	})
	spawnedID := spawned.ID()

	spawned.Remove()
	pump(t, srv, cl, func() bool {
		return clientScene.GetNode(spawnedID) == nil
	})
}

func TestComponentRemovalReachesClient(t *testing.T) {
	srv, serverScene, cl, clientScene := startPair(t)
	hero := serverScene.CreateChild("hero", scene.Replicated)
	comp, err := hero.CreateComponent("Health", scene.Replicated)
	require.NoError(t, err)
	pump(t, srv, cl, cl.Synced)
	require.NotNil(t, clientScene.GetComponent(comp.ID()))
	compID := comp.ID()

	hero.RemoveComponent("Health")
	pump(t, srv, cl, func() bool {
		return clientScene.GetComponent(compID) == nil
	})
	require.NotNil(t, clientScene.GetNode(hero.ID()), "node must survive component removal")
}

func TestChildNodesNestUnderParent(t *testing.T) {
	srv, serverScene, cl, clientScene := startPair(t)
	pump(t, srv, cl, cl.Synced)

	parent := serverScene.CreateChild("parent", scene.Replicated)
	child := parent.CreateChild("child", scene.Replicated)
	pump(t, srv, cl, func() bool {
		return clientScene.GetNode(child.ID()) != nil
	})

	mirroredChild := clientScene.GetNode(child.ID())
	require.NotNil(t, mirroredChild.Parent())
	require.Equal(t, parent.ID(), mirroredChild.Parent().ID())
}

func TestPingPong(t *testing.T) {
	srv, _, cl, _ := startPair(t)
	_ = srv
	require.NoError(t, cl.Ping())
	// The pong arrives as a silently consumed message.
	require.Eventually(t, func() bool {
		return cl.ApplyPending() > 0
	}, time.Second, time.Millisecond)
}

func TestSecondConnectFails(t *testing.T) {
	_, _, cl, _ := startPair(t)
	require.ErrorIs(t, cl.Connect(context.Background(), "mem"), replication.ErrAlreadyRunning)
}
