package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/CageChen/modmirror/internal/config"
	"github.com/CageChen/modmirror/internal/mirror"
	"github.com/CageChen/modmirror/internal/watcher"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newMirror(t *testing.T) *mirror.Mirror {
	t.Helper()
	src := t.TempDir()
	files := map[string]string{
		"package.json":                 `{"devDependencies": {"devdep": "1"}}`,
		"node_modules/a/index.js":      "a",
		"node_modules/a/.npmignore":    "*.md",
		"node_modules/a/README.md":     "readme",
		"node_modules/devdep/index.js": "dev",
	}
	for rel, content := range files {
		p := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.SourceRoot = src
	cfg.PackageDir = src
	cfg.DestinationRoot = t.TempDir()
	m, err := mirror.New(mirror.Options{Config: cfg, Out: &bytes.Buffer{}})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func do(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestStartRun(t *testing.T) {
	m := newMirror(t)
	r := NewRouter(m, nil, nil)

	w := do(r, http.MethodPost, "/api/runs")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var rep mirror.Report
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Included != 3 || rep.Excluded != 2 {
		t.Errorf("counts = %d/%d, want 3/2", rep.Included, rep.Excluded)
	}
}

func TestStartRunConflict(t *testing.T) {
	m := newMirror(t)
	r := NewRouter(m, nil, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	m.OnStart(func() {
		close(entered)
		<-release
	})

	done := make(chan int)
	go func() { done <- do(r, http.MethodPost, "/api/runs").Code }()
	<-entered

	if w := do(r, http.MethodPost, "/api/runs"); w.Code != http.StatusConflict {
		t.Errorf("concurrent run status = %d, want 409", w.Code)
	}
	close(release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first run status = %d", code)
	}
}

func TestStatus(t *testing.T) {
	m := newMirror(t)
	r := NewRouter(m, nil, nil)

	w := do(r, http.MethodGet, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Running bool           `json:"running"`
		Config  config.Config  `json:"config"`
		Last    *mirror.Report `json:"last"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Running || body.Last != nil || body.Config.DirName != "node_modules" {
		t.Errorf("body = %+v", body)
	}
}

func TestReport(t *testing.T) {
	m := newMirror(t)
	r := NewRouter(m, nil, nil)

	if w := do(r, http.MethodGet, "/api/report"); w.Code != http.StatusNotFound {
		t.Errorf("report before run = %d, want 404", w.Code)
	}
	if _, err := m.Run(); err != nil {
		t.Fatal(err)
	}

	w := do(r, http.MethodGet, "/api/report")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("html report = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "<table>") {
		t.Error("html report has no table")
	}

	w = do(r, http.MethodGet, "/api/report?format=md")
	if !strings.Contains(w.Body.String(), "# Mirror report") {
		t.Errorf("markdown report = %s", w.Body)
	}

	w = do(r, http.MethodGet, "/api/report?format=json")
	var rep mirror.Report
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil || rep.Included != 3 {
		t.Errorf("json report = %s, %v", w.Body, err)
	}
}

func TestPreview(t *testing.T) {
	m := newMirror(t)
	r := NewRouter(m, nil, nil)

	w := do(r, http.MethodGet, "/api/preview")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var root TreeNode
	if err := json.Unmarshal(w.Body.Bytes(), &root); err != nil {
		t.Fatal(err)
	}
	if root.Name != "node_modules" || len(root.Children) != 2 {
		t.Fatalf("root = %+v", root)
	}
	var a *TreeNode
	for _, c := range root.Children {
		if c.Name == "a" {
			a = c
		}
	}
	if a == nil || a.Type != "directory" || len(a.Children) != 3 {
		t.Fatalf("a = %+v", a)
	}

	entries, _ := os.ReadDir(filepath.Join(m.Config().DestinationRoot))
	if len(entries) != 0 {
		t.Error("preview wrote to the destination")
	}
}

func TestBuildTreeOrphan(t *testing.T) {
	tree := buildTree("node_modules", []mirror.PlanEntry{
		{Path: "node_modules/x", Dir: true, Disposition: "in"},
		{Path: "node_modules/x/y.js", Disposition: "in"},
		{Path: "elsewhere/z.js", Disposition: "in"},
	})
	if len(tree.Children) != 2 || len(tree.Children[0].Children) != 1 {
		t.Errorf("tree = %+v", tree)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := NewRouter(newMirror(t), nil, nil)
	w := do(r, http.MethodOptions, "/api/status")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", w.Code, w.Header())
	}
}

func TestWebSocketPushes(t *testing.T) {
	m := newMirror(t)
	ws := NewWSHandler(nil)
	m.OnStart(ws.OnRunStarted)
	m.OnComplete(ws.OnRunCompleted)

	srv := httptest.NewServer(NewRouter(m, ws, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ws.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := m.Run(); err != nil {
		t.Fatal(err)
	}
	ws.OnSourceChange([]watcher.Event{{Type: watcher.EventWrite, Op: "write", Path: "x"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var types []string
	for i := 0; i < 3; i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		types = append(types, msg.Type)
	}
	want := []string{MsgRunStarted, MsgRunCompleted, MsgSourceChange}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("messages = %v, want %v", types, want)
	}
}
