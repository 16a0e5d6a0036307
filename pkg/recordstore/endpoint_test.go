package recordstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedWrite struct {
	ContentType string
	Body        envelope
	RawData     json.RawMessage
}

func newEndpointServer(t *testing.T, listBody string, writeReply string, writeStatus int) (*httptest.Server, *[]capturedWrite) {
	t.Helper()
	var mu sync.Mutex
	writes := []capturedWrite{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "users", r.URL.Query().Get("type"))
			_, _ = io.WriteString(w, listBody)
		case http.MethodPost:
			raw, _ := io.ReadAll(r.Body)
			var env struct {
				Type   string          `json:"type"`
				Action string          `json:"action"`
				Data   json.RawMessage `json:"data"`
			}
			assert.NoError(t, json.Unmarshal(raw, &env))
			mu.Lock()
			writes = append(writes, capturedWrite{
				ContentType: r.Header.Get("Content-Type"),
				Body:        envelope{Type: env.Type, Action: env.Action},
				RawData:     env.Data,
			})
			mu.Unlock()
			w.WriteHeader(writeStatus)
			_, _ = io.WriteString(w, writeReply)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &writes
}

func TestEndpointListAcceptsArrayAndWrapped(t *testing.T) {
	for _, body := range []string{
		`[{"id":"u1","name":"An"},{"id":"u2"}]`,
		`{"data":[{"id":"u1","name":"An"},{"id":"u2"}]}`,
		`{"users":[{"id":"u1","name":"An"},{"id":"u2"}]}`,
	} {
		srv, _ := newEndpointServer(t, body, "", http.StatusOK)
		store, err := NewEndpointStore(srv.URL+"/exec", time.Second)
		require.NoError(t, err)

		records, err := store.List(context.Background(), EntityUsers)
		require.NoError(t, err)
		require.Len(t, records, 2)
		id, err := RecordID(records[0])
		require.NoError(t, err)
		assert.Equal(t, "u1", id)
	}
}

func TestEndpointListErrorObject(t *testing.T) {
	srv, _ := newEndpointServer(t, `{"error":"Sheet not found"}`, "", http.StatusOK)
	store, err := NewEndpointStore(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = store.List(context.Background(), EntityUsers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sheet not found")
}

func TestEndpointSavePostsEnvelope(t *testing.T) {
	srv, writes := newEndpointServer(t, `[]`, `{"status":"success"}`, http.StatusOK)
	store, err := NewEndpointStore(srv.URL, time.Second)
	require.NoError(t, err)

	err = store.Save(context.Background(), EntityScores, map[string]interface{}{"id": "u1_HKI", "tt": 10})
	require.NoError(t, err)
	require.Len(t, *writes, 1)
	got := (*writes)[0]
	assert.Equal(t, "text/plain;charset=utf-8", got.ContentType)
	assert.Equal(t, "scores", got.Body.Type)
	assert.Equal(t, "save", got.Body.Action)
	assert.JSONEq(t, `{"id":"u1_HKI","tt":10}`, string(got.RawData))

	require.NoError(t, store.Delete(context.Background(), EntityScores, "u1_HKI"))
	assert.JSONEq(t, `{"id":"u1_HKI"}`, string((*writes)[1].RawData))
}

func TestEndpointWriteRejections(t *testing.T) {
	cases := map[string]struct {
		reply  string
		status int
	}{
		"http status":    {reply: "boom", status: http.StatusInternalServerError},
		"status error":   {reply: `{"status":"error","message":"locked"}`, status: http.StatusOK},
		"success false":  {reply: `{"success":false}`, status: http.StatusOK},
		"error property": {reply: `{"error":"quota"}`, status: http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := newEndpointServer(t, `[]`, tc.reply, tc.status)
			store, err := NewEndpointStore(srv.URL, time.Second)
			require.NoError(t, err)
			err = store.Save(context.Background(), EntityUsers, map[string]string{"id": "u1"})
			require.Error(t, err)
		})
	}
}

func TestEndpointPlainTextReplyIsSuccess(t *testing.T) {
	srv, _ := newEndpointServer(t, `[]`, "OK", http.StatusOK)
	store, err := NewEndpointStore(srv.URL, time.Second)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), EntityUsers, map[string]string{"id": "u1"}))
}

func TestEndpointValidation(t *testing.T) {
	_, err := NewEndpointStore("not a url", time.Second)
	require.Error(t, err)

	store, err := NewEndpointStore("https://example.com/exec", time.Second)
	require.NoError(t, err)
	require.ErrorIs(t, store.Save(context.Background(), EntityUsers, map[string]string{"name": "no id"}), ErrRecordID)
	require.Error(t, store.Delete(context.Background(), "grades", "x"))
}

func TestEndpointTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	store, err := NewEndpointStore(srv.URL, 20*time.Millisecond)
	require.NoError(t, err)
	_, err = store.List(context.Background(), EntityUsers)
	require.Error(t, err)
}

func TestRecordIDNumeric(t *testing.T) {
	id, err := RecordID(json.RawMessage(`{"id": 1712345678901}`))
	require.NoError(t, err)
	assert.Equal(t, "1712345678901", id)

	_, err = RecordID(json.RawMessage(`{"id": "  "}`))
	require.ErrorIs(t, err, ErrRecordID)
}
