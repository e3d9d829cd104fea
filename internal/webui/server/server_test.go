package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cookterm/internal/session"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeHost struct {
	mu      sync.Mutex
	written []string
	onWrite func(p []byte)
}

func (h *fakeHost) CreateShell(context.Context) error { return nil }
func (h *fakeHost) Read() ([]byte, error)             { return nil, nil }
func (h *fakeHost) Resize(int, int) error             { return nil }
func (h *fakeHost) Close() error                      { return nil }

func (h *fakeHost) Write(p []byte) (int, error) {
	h.mu.Lock()
	h.written = append(h.written, string(p))
	fn := h.onWrite
	h.mu.Unlock()
	if fn != nil {
		fn(p)
	}
	return len(p), nil
}

func (h *fakeHost) writes() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return strings.Join(h.written, "")
}

const (
	oscA = "\x1b]133;A\a"
	oscB = "\x1b]133;B\a"
	oscC = "\x1b]133;C\a"
)

func newTestServer(t *testing.T) (*Server, *session.Session, *fakeHost) {
	t.Helper()
	h := &fakeHost{}
	sess := session.New(h, session.Options{Cols: 80, Rows: 24})
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	return &Server{Session: sess}, sess, h
}

func do(t *testing.T, hdl http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("content-type", "application/json")
	}
	rec := httptest.NewRecorder()
	hdl.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndState(t *testing.T) {
	srv, sess, _ := newTestServer(t)
	hdl := srv.Handler()

	if rec := do(t, hdl, http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("health = %d %s", rec.Code, rec.Body)
	}

	sess.Feed([]byte(oscA + "me@box$ " + oscB + "\x1b]7;file:///srv/app\a"))
	rec := do(t, hdl, http.MethodGet, "/api/state", "")
	var st struct {
		State session.Snapshot `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body)
	}
	if st.State.Prompt != "me@box$" || st.State.Cwd != "/srv/app" || st.State.State != "awaiting-command" {
		t.Fatalf("state = %+v", st.State)
	}
}

func TestRun_CapturesAndRecordsHistory(t *testing.T) {
	srv, sess, h := newTestServer(t)
	hdl := srv.Handler()
	sess.Feed([]byte(oscA + "$ " + oscB))
	h.onWrite = func(p []byte) {
		if string(p) == "false\n" {
			go sess.Feed([]byte("false\r\n" + oscC + "\x1b]133;D;1\a"))
		}
	}

	rec := do(t, hdl, http.MethodPost, "/api/run", `{"command":"false"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("run = %d %s", rec.Code, rec.Body)
	}
	var res struct {
		Output   string `json:"output"`
		ExitCode int    `json:"exitCode"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.ExitCode != 1 || res.Output != "" {
		t.Fatalf("result = %+v", res)
	}

	rec = do(t, hdl, http.MethodGet, "/api/history", "")
	var hist struct {
		Entries []struct {
			ID       string `json:"id"`
			Command  string `json:"command"`
			ExitCode int    `json:"exitCode"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil || len(hist.Entries) != 1 {
		t.Fatalf("history = %s (%v)", rec.Body, err)
	}
	if hist.Entries[0].Command != "false" || hist.Entries[0].ExitCode != 1 {
		t.Fatalf("entry = %+v", hist.Entries[0])
	}

	if rec := do(t, hdl, http.MethodGet, "/api/history/last?command=false", ""); rec.Code != http.StatusOK {
		t.Fatalf("last = %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, hdl, http.MethodDelete, "/api/history/"+hist.Entries[0].ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("dismiss = %d", rec.Code)
	}
	if rec := do(t, hdl, http.MethodDelete, "/api/history/"+hist.Entries[0].ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second dismiss = %d", rec.Code)
	}
	if rec := do(t, hdl, http.MethodDelete, "/api/history", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("clear = %d", rec.Code)
	}
}

func TestRun_ConflictWhilePending(t *testing.T) {
	srv, sess, _ := newTestServer(t)
	if _, err := sess.Submit("sleep 10"); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	rec := do(t, srv.Handler(), http.MethodPost, "/api/run", `{"command":"ls"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("run = %d %s", rec.Code, rec.Body)
	}
}

func TestRun_BadRequests(t *testing.T) {
	srv, _, h := newTestServer(t)
	hdl := srv.Handler()
	for _, body := range []string{`{}`, `{"command":"   "}`, `not json`, `{"command":"ls","mode":"bogus"}`} {
		if rec := do(t, hdl, http.MethodPost, "/api/run", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s = %d", body, rec.Code)
		}
	}
	if rec := do(t, hdl, http.MethodPost, "/api/run", `{"command":"vim","mode":"paste"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("paste = %d", rec.Code)
	}
	if got := h.writes(); got != "vim" {
		t.Fatalf("writes = %q", got)
	}
}

func TestCheckBinary(t *testing.T) {
	srv, _, _ := newTestServer(t)
	hdl := srv.Handler()
	if rec := do(t, hdl, http.MethodGet, "/api/check/a;b", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid = %d", rec.Code)
	}
	rec := do(t, hdl, http.MethodGet, "/api/check/cookterm-surely-missing", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"exists":false`) {
		t.Fatalf("missing = %d %s", rec.Code, rec.Body)
	}
}

func TestEmbeddedIndex(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "cookterm") {
		t.Fatalf("index = %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown api = %d", rec.Code)
	}
}

func TestTerminalWS(t *testing.T) {
	srv, sess, h := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/term/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "input", "data": "ls\r"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": "resize", "cols": 100, "rows": 40}); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for h.writes() != "ls\r" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.writes(); got != "ls\r" {
		t.Fatalf("host writes = %q", got)
	}
	for sess.Snapshot().Cols != 100 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if snap := sess.Snapshot(); snap.Cols != 100 || snap.Rows != 40 {
		t.Fatalf("size = %dx%d", snap.Cols, snap.Rows)
	}

	sess.Feed([]byte(oscA + "$ " + oscB))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var sawOutput, sawEvent bool
	for !sawOutput || !sawEvent {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (output=%v event=%v)", err, sawOutput, sawEvent)
		}
		switch mt {
		case websocket.BinaryMessage:
			sawOutput = true
		case websocket.TextMessage:
			if strings.Contains(string(data), `"prompt_changed"`) {
				sawEvent = true
			}
		}
	}
}
