package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

func TestExecute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/script/exec", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "print(1)", body["script"])

		json.NewEncoder(w).Encode(Result{Success: true, Result: json.RawMessage(`{"ok":true}`)})
	}))
	defer srv.Close()

	client := New(srv.URL)
	result, err := client.Execute(context.Background(), "print(1)")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestCall_BridgeErrorSurfacesUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{
			Success: false,
			Error:   &WireError{Code: CodeUnknownFunction, Message: "no such function"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.Call(context.Background(), "Missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), CodeUnknownFunction)
}

func TestExecute_DeadlineExceededIsTimeoutKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		json.NewEncoder(w).Encode(Result{Success: true})
	}))
	defer srv.Close()

	client := New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()

	_, err := client.Execute(ctx, "slow")
	require.Error(t, err)
	assert.Equal(t, voxerr.Timeout, voxerr.KindOf(err))
}

func TestHealth_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(Health{BridgeUp: true, RemoteUp: true, Uptime: 12.5, Version: "1.0"})
	}))
	defer srv.Close()

	client := New(srv.URL)
	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, health.BridgeUp)
	assert.Equal(t, "1.0", health.Version)
}

func TestBroadcaster_FanOutAndConnectedSignal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(srv.URL)
	ch1, unsub1 := client.Subscribe()
	defer unsub1()
	ch2, unsub2 := client.Subscribe()
	defer unsub2()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go client.Run(ctx)

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, ConnectedEventType, ev.Type)
		case <-time.After(1 * time.Second):
			t.Fatal("expected a connected event on both subscriptions")
		}
	}
}
