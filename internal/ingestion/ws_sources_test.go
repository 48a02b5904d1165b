package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fly2any-growth/internal/domain"
)

func fastWSConfig() *WSConfig {
	return &WSConfig{
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
		PingInterval:      time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      time.Second,
		HandshakeTimeout:  time.Second,
		Buffer:            16,
	}
}

// eventServer upgrades each connection and writes the frames for that connection index.
// The connection is closed after its frames unless it is the last configured one.
func eventServer(t *testing.T, frames ...[]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		idx := int(conns.Add(1)) - 1
		if idx >= len(frames) {
			idx = len(frames) - 1
		}
		for _, f := range frames[idx] {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if idx < len(frames)-1 {
			return
		}
		// Hold the last connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func receive(t *testing.T, ch <-chan domain.RetentionEvent) domain.RetentionEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.RetentionEvent{}
}

func TestWSSource_DeliversDecodedEvents(t *testing.T) {
	srv, _ := eventServer(t, []string{
		`{"id":"e1","type":"price_drop","user_id":"u1","data":{"watched":true,"route":"JFK-LAX"}}`,
		`garbage`,
		`{"id":"e2","type":"teleport","user_id":"u1"}`,
		`{"id":"e3","type":"error","user_id":"u2","data":{"error_code":"TIMEOUT"}}`,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewWSSource(wsURL(srv), fastWSConfig(), nil)
	ch, err := src.Subscribe(ctx)
	require.NoError(t, err)

	first := receive(t, ch)
	assert.Equal(t, "e1", first.ID)
	assert.True(t, first.Data.Watched)

	second := receive(t, ch)
	assert.Equal(t, "e3", second.ID, "malformed frames are skipped")
	assert.Equal(t, "TIMEOUT", second.Data.ErrorCode)
}

func TestWSSource_ReconnectsAfterDrop(t *testing.T) {
	srv, conns := eventServer(t,
		[]string{`{"id":"before","type":"search","user_id":"u1"}`},
		[]string{`{"id":"after","type":"search","user_id":"u1"}`},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := NewWSSource(wsURL(srv), fastWSConfig(), nil).Subscribe(ctx)
	require.NoError(t, err)

	assert.Equal(t, "before", receive(t, ch).ID)
	assert.Equal(t, "after", receive(t, ch).ID)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestWSSource_ClosesChannelOnCancel(t *testing.T) {
	srv, _ := eventServer(t, []string{})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewWSSource(wsURL(srv), fastWSConfig(), nil).Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestWSSource_InitialDialFailure(t *testing.T) {
	src := NewWSSource("ws://127.0.0.1:1/events", fastWSConfig(), nil)
	_, err := src.Subscribe(context.Background())
	assert.Error(t, err)
}
