package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/sitecraft/internal/identity"
	"github.com/ashureev/sitecraft/internal/metrics"
	"github.com/ashureev/sitecraft/internal/session"
	"github.com/ashureev/sitecraft/internal/store"
	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedWorkspaces struct {
	ws      *session.Workspace
	touches atomic.Int32
}

func (f *fixedWorkspaces) Get(string, string) (*session.Workspace, bool) { return f.ws, false }
func (f *fixedWorkspaces) Touch(string, string)                          { f.touches.Add(1) }

type feed struct {
	workspaces *fixedWorkspaces
	conns      *ConnManager
	metrics    *metrics.Metrics
	url        string
}

func startFeed(t *testing.T) *feed {
	t.Helper()
	f := &feed{
		workspaces: &fixedWorkspaces{ws: &session.Workspace{UserID: "anon_t", SessionID: "tab-1", Store: store.New()}},
		conns:      NewConnManager(),
		metrics:    metrics.New(prometheus.NewRegistry()),
	}
	h := NewWebSocketHandler(f.workspaces, f.conns, f.metrics, nil, true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), "anon_t", "tab-1")))
	}))
	t.Cleanup(srv.Close)
	f.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return f
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestFeedSendsSnapshotThenChanges(t *testing.T) {
	f := startFeed(t)
	st := f.workspaces.ws.Store
	st.SetTitle("before")

	conn := dial(t, f.url)
	first := read(t, conn)
	assert.Equal(t, TypeSnapshot, first.Type)
	require.NotNil(t, first.State)
	assert.Equal(t, "before", first.State.Title)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LiveConnections))

	st.SetUserPrompt("a portfolio for a photographer")
	next := read(t, conn)
	assert.Equal(t, TypeChange, next.Type)
	assert.Equal(t, []store.Field{store.FieldUserPrompt}, next.Fields)
	assert.Greater(t, next.Seq, first.Seq)
	assert.Equal(t, "a portfolio for a photographer", next.State.UserPrompt)
}

func TestFeedAnswersPing(t *testing.T) {
	f := startFeed(t)
	conn := dial(t, f.url)
	read(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))

	assert.Equal(t, TypePong, read(t, conn).Type)
	assert.Equal(t, int32(1), f.workspaces.touches.Load())
}

func TestCloseSessionEndsFeed(t *testing.T) {
	f := startFeed(t)
	conn := dial(t, f.url)
	read(t, conn)
	require.Equal(t, 1, f.conns.Count())

	readErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _, err := conn.Read(ctx)
		readErr <- err
	}()

	f.conns.CloseSession("anon_t", "tab-1")

	err := <-readErr
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	assert.Zero(t, f.conns.Count())
}

func TestOriginRejectedInProduction(t *testing.T) {
	h := NewWebSocketHandler(&fixedWorkspaces{}, NewConnManager(), nil, []string{"https://sitecraft.example.com"}, false)

	req := httptest.NewRequest(http.MethodGet, "/ws/state", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set("Origin", "https://sitecraft.example.com")
	assert.True(t, h.checkOrigin(req))
}

func TestQueueDropsOldest(t *testing.T) {
	q := newChangeQueue(2)
	for i := 1; i <= 5; i++ {
		q.push(store.Change{Seq: uint64(i)})
	}

	assert.Equal(t, int64(3), q.dropped.Load())
	assert.Equal(t, uint64(4), (<-q.ch).Seq)
	assert.Equal(t, uint64(5), (<-q.ch).Seq)
}

func TestQueueNeverBlocksProducers(t *testing.T) {
	q := newChangeQueue(1)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.push(store.Change{Seq: uint64(i)})
			}
		}()
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("push blocked")
	}
	assert.Len(t, q.ch, 1)
}

func TestConnManager_Register(t *testing.T) {
	cm := NewConnManager()
	conn := &websocket.Conn{}

	cm.Register("user123", "tab-1", conn)

	assert.Equal(t, 1, cm.Count())

	cm.Register("user123", "tab-1", conn)
	assert.Equal(t, 1, cm.Count(), "re-registering a tab keeps one feed")
}

func TestConnManager_UnregisterStale(t *testing.T) {
	cm := NewConnManager()
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}

	cm.Register("user123", "tab-1", conn1)
	cm.Register("user123", "tab-2", conn2)
	cm.Unregister("user123", "tab-1", conn1)
	cm.Unregister("user123", "tab-2", conn1)

	assert.Equal(t, 1, cm.Count())
	cm.Unregister("user123", "tab-2", conn2)
	assert.Zero(t, cm.Count())
}

func TestConnManager_ConcurrentAccess(t *testing.T) {
	cm := NewConnManager()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			cm.Register("concurrentUser", "tab-"+strconv.Itoa(i), &websocket.Conn{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			cm.Count()
		}
	}()
	wg.Wait()
	assert.Equal(t, 1000, cm.Count())
}
