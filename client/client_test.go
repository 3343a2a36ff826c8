package client

import (
	"bytes"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/stcp/common"
)

// startEchoListener runs a minimal accept-and-echo loop on an ephemeral
// loopback port: every accepted connection echoes whatever arrives
func startEchoListener(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go func(nc net.Conn) {
				defer nc.Close()
				_, _ = io.Copy(nc, nc)
			}(nc)
		}
	}()
	return ln
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()

	settings := common.NewClientSettings(endpoint)
	settings.EnableMonitor = false
	settings.BufferSize = 1024

	cl, err := New(settings)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return cl
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	settings := common.NewClientSettings("localhost:9000")
	settings.BufferSize = 0
	if _, err := New(settings); err == nil {
		t.Fatal("expected error for invalid settings")
	}
}

func TestOperationsBeforeConnect(t *testing.T) {
	cl := newTestClient(t, "localhost:9000")

	if _, err := cl.Send([]byte("x")); err == nil {
		t.Error("expected error for send before connect")
	}
	if _, err := cl.Receive(1); err == nil {
		t.Error("expected error for receive before connect")
	}
	if _, err := cl.RawStream(); err == nil {
		t.Error("expected error for raw stream before connect")
	}
	if cl.IsConnected() {
		t.Error("fresh client must not report connected")
	}

	// Disconnect before connect is inert
	cl.Disconnect()
}

func TestConnectFailure(t *testing.T) {
	// Bind then close to get a port that refuses connections
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cl := newTestClient(t, addr)
	if err := cl.Connect(time.Second); err == nil {
		t.Fatal("expected connect to a closed port to fail")
	}
	if cl.IsConnected() {
		t.Error("failed connect must leave the client disconnected")
	}
}

func TestConnectEchoRoundTrip(t *testing.T) {
	ln := startEchoListener(t)
	cl := newTestClient(t, ln.Addr().String())

	connected := make(chan common.ConnectionInfo, 1)
	cl.Events().OnConnected(func(info common.ConnectionInfo) {
		connected <- info
	})

	if err := cl.Connect(5 * time.Second); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer cl.Disconnect()

	select {
	case info := <-connected:
		if info.RemoteAddr != ln.Addr().String() {
			t.Errorf("connected notification carries %s, want %s", info.RemoteAddr, ln.Addr())
		}
	case <-time.After(time.Second):
		t.Fatal("connected notification never fired")
	}

	if !cl.IsConnected() {
		t.Fatal("client must report connected")
	}
	if err := cl.Connect(time.Second); err == nil {
		t.Error("expected error for connect while connected")
	}

	payload := []byte("roundtrip")
	if result, err := cl.SendTimeout(payload, 5*time.Second); err != nil || result.Status != common.StatusSuccess {
		t.Fatalf("send failed: %v / %v", result.Status, err)
	}
	result, err := cl.ReceiveTimeout(len(payload), 5*time.Second)
	if err != nil || result.Status != common.StatusSuccess {
		t.Fatalf("receive failed: %v", err)
	}
	if !bytes.Equal(result.Data, payload) {
		t.Errorf("expected %q, got %q", payload, result.Data)
	}
}

func TestSendReader(t *testing.T) {
	ln := startEchoListener(t)
	cl := newTestClient(t, ln.Addr().String())
	if err := cl.Connect(5 * time.Second); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer cl.Disconnect()

	payload := []byte("streamed-payload")
	result, err := cl.SendReader(bytes.NewReader(payload), len(payload), 5*time.Second, nil)
	if err != nil || result.Status != common.StatusSuccess {
		t.Fatalf("send reader failed: %v", err)
	}

	result, err = cl.ReceiveTimeout(len(payload), 5*time.Second)
	if err != nil || result.Status != common.StatusSuccess {
		t.Fatalf("receive failed: %v", err)
	}
	if !bytes.Equal(result.Data, payload) {
		t.Errorf("expected %q, got %q", payload, result.Data)
	}

	// Programmer errors
	if _, err := cl.SendReader(nil, 1, 0, nil); err == nil {
		t.Error("expected error for nil source")
	}
	if _, err := cl.SendReader(bytes.NewReader(nil), 0, 0, nil); err == nil {
		t.Error("expected error for non-positive count")
	}
	if _, err := cl.SendReader(bytes.NewReader([]byte("ab")), 5, 0, nil); err == nil {
		t.Error("expected error for short source")
	}
}

func TestExplicitTimeoutMustBePositive(t *testing.T) {
	ln := startEchoListener(t)
	cl := newTestClient(t, ln.Addr().String())
	if err := cl.Connect(5 * time.Second); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer cl.Disconnect()

	// The explicit-deadline variants never degrade to unbounded
	if _, err := cl.SendTimeout([]byte("x"), 0); err == nil {
		t.Error("expected error for zero send timeout")
	}
	if _, err := cl.ReceiveTimeout(1, 0); err == nil {
		t.Error("expected error for zero receive timeout")
	}
	if _, err := cl.SendTimeout([]byte("x"), -time.Second); err == nil {
		t.Error("expected error for negative send timeout")
	}

	// The unbounded variant still accepts the same payload
	if result, err := cl.Send([]byte("x")); err != nil || result.Status != common.StatusSuccess {
		t.Fatalf("unbounded send failed: %v", err)
	}
}

func TestDisconnectNotifiesExactlyOnce(t *testing.T) {
	ln := startEchoListener(t)
	cl := newTestClient(t, ln.Addr().String())

	var notifications int32
	reasons := make(chan common.DisconnectReason, 4)
	cl.Events().OnDisconnected(func(_ common.ConnectionInfo, reason common.DisconnectReason) {
		atomic.AddInt32(&notifications, 1)
		reasons <- reason
	})

	if err := cl.Connect(5 * time.Second); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	cl.Disconnect()
	cl.Disconnect()

	select {
	case reason := <-reasons:
		if reason != common.ReasonNormal {
			t.Errorf("expected reason Normal, got %s", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("disconnect notification never fired")
	}
	if got := atomic.LoadInt32(&notifications); got != 1 {
		t.Errorf("expected exactly one notification, got %d", got)
	}
	if cl.IsConnected() {
		t.Error("client must report disconnected")
	}
}

func TestPeerCloseObservedOnTransfer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- nc
	}()

	cl := newTestClient(t, ln.Addr().String())

	reasons := make(chan common.DisconnectReason, 1)
	cl.Events().OnDisconnected(func(_ common.ConnectionInfo, reason common.DisconnectReason) {
		reasons <- reason
	})

	if err := cl.Connect(5 * time.Second); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer cl.Disconnect()

	peer := <-accepted
	peer.Close()

	result, err := cl.ReceiveTimeout(1, 2*time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if result.Status != common.StatusDisconnected {
		t.Fatalf("expected Disconnected, got %s", result.Status)
	}
	if cl.IsConnected() {
		t.Error("client must report disconnected after the loss")
	}

	select {
	case reason := <-reasons:
		if reason != common.ReasonNormal {
			t.Errorf("expected reason Normal, got %s", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("disconnect notification never fired")
	}
}

func TestReconnectCreatesFreshIdentity(t *testing.T) {
	ln := startEchoListener(t)
	cl := newTestClient(t, ln.Addr().String())

	ids := make(chan common.ConnectionInfo, 2)
	cl.Events().OnConnected(func(info common.ConnectionInfo) {
		ids <- info
	})

	if err := cl.Connect(5 * time.Second); err != nil {
		t.Fatalf("first connect failed: %v", err)
	}
	cl.Disconnect()
	if err := cl.Connect(5 * time.Second); err != nil {
		t.Fatalf("second connect failed: %v", err)
	}
	defer cl.Disconnect()

	first, second := <-ids, <-ids
	if first.ID == second.ID {
		t.Error("reconnect must produce a fresh connection identity")
	}
}
