package relay_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verdantio/hydrofarm-backend/internal/relay"
)

// overlapConn counts writes that arrive while another write is still in
// flight. The underlying websocket library rejects concurrent writers, so
// any overlap is a defect.
type overlapConn struct {
	writing  int32
	overlaps int32
	writes   int32
	lastType int32
	closed   bool
}

func (c *overlapConn) enter() {
	if !atomic.CompareAndSwapInt32(&c.writing, 0, 1) {
		atomic.AddInt32(&c.overlaps, 1)
	}
	time.Sleep(time.Millisecond)
	atomic.AddInt32(&c.writes, 1)
	atomic.StoreInt32(&c.writing, 0)
}

func (c *overlapConn) WriteMessage(messageType int, data []byte) error {
	atomic.StoreInt32(&c.lastType, int32(messageType))
	c.enter()
	return nil
}

func (c *overlapConn) WriteJSON(v interface{}) error {
	c.enter()
	return nil
}

func (c *overlapConn) Close() error {
	c.closed = true
	return nil
}

func TestConn_SerializesConcurrentWrites(t *testing.T) {
	ws := &overlapConn{}
	conn := relay.NewConn(ws)

	hub := relay.NewHub()
	channel := relay.NewChannelName("controller")
	hub.Register(channel, conn)

	// Pushed commands race the acks the socket's read loop sends.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := hub.Send(channel, []byte(`{"kind":"cmd"}`)); err != nil {
				t.Errorf("Expected send to succeed, got %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := conn.WriteJSON(map[string]string{"status": "ok"}); err != nil {
				t.Errorf("Expected ack write to succeed, got %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&ws.overlaps); got != 0 {
		t.Errorf("Expected no overlapping writes, got %d", got)
	}
	if got := atomic.LoadInt32(&ws.writes); got != 16 {
		t.Errorf("Expected 16 writes, got %d", got)
	}
}

func TestConn_SendUsesTextFrames(t *testing.T) {
	ws := &overlapConn{}
	hub := relay.NewHub()
	hub.Register("coordinator.a", relay.NewConn(ws))

	if err := hub.Send("coordinator.a", []byte(`{}`)); err != nil {
		t.Fatalf("Expected send to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&ws.lastType); got != websocket.TextMessage {
		t.Errorf("Expected text frame %d, got %d", websocket.TextMessage, got)
	}
}

func TestConn_Close(t *testing.T) {
	ws := &overlapConn{}
	conn := relay.NewConn(ws)

	if err := conn.Close(); err != nil {
		t.Fatalf("Expected close to succeed, got %v", err)
	}
	if !ws.closed {
		t.Error("Expected underlying connection to be closed")
	}
}
