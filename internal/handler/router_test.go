package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/resume-studio/backend/internal/config"
	channelModel "github.com/zhouzirui/resume-studio/backend/internal/model/channel"
	sessionModel "github.com/zhouzirui/resume-studio/backend/internal/model/session"
	"github.com/zhouzirui/resume-studio/backend/internal/service/channel"
	"github.com/zhouzirui/resume-studio/backend/internal/service/orchestration"
	"github.com/zhouzirui/resume-studio/backend/internal/service/parser"
	"github.com/zhouzirui/resume-studio/backend/internal/service/session"
)

const draftHTML = `<div id="resume"><h1>Jane Doe</h1></div>`

// draftingEngine saves one draft, pushes it and tells the user.
type draftingEngine struct{}

func (draftingEngine) Run(ctx context.Context, req orchestration.Request, tools orchestration.Tools) (string, error) {
	if strings.HasPrefix(tools.ReadProfile(ctx), "Error") || strings.HasPrefix(tools.ReadJobDescription(ctx), "Error") {
		return "", nil
	}
	tools.WriteDocument(ctx, "```html\n"+draftHTML+"\n```", 0)
	tools.PushDocumentUpdate(ctx, 0)
	tools.NotifyUser(ctx, "Your first draft is ready")
	return "done", nil
}

func testConfig(staticDir string) *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{FrontendURL: "*", Environment: "development", StaticDir: staticDir},
		Session: config.SessionConfig{CookieMaxAge: 1800},
		Upload:  config.UploadConfig{MaxSize: 1 << 20},
	}
}

func newTestServer(t *testing.T, staticDir string) (*httptest.Server, *session.Registry) {
	t.Helper()
	p, err := parser.New(context.Background())
	if err != nil {
		t.Fatalf("parser.New err: %v", err)
	}

	wire := func(r *session.Registry, token string) (session.Channel, session.Orchestrator) {
		binding := orchestration.NewBinding(token, r, draftingEngine{})
		return channel.NewHandler(token, r, binding, channel.Options{}), binding
	}
	reg := session.NewRegistry(session.DefaultConfig(), wire)

	srv := httptest.NewServer(NewRouter(testConfig(staticDir), reg, p))
	t.Cleanup(srv.Close)
	return srv, reg
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func upload(t *testing.T, client *http.Client, base, filename, content string) sessionModel.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", filename)
	fw.Write([]byte(content))
	mw.Close()

	resp, err := client.Post(base+"/api/user-profile/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload err: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload expected 200, got %d", resp.StatusCode)
	}

	var body sessionModel.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	return body
}

func TestEndToEndResumeGeneration(t *testing.T) {
	srv, reg := newTestServer(t, "")
	client := newClient(t)

	uploaded := upload(t, client, srv.URL, "cv.txt", "Jane Doe, Go engineer")

	resp, err := client.Post(srv.URL+"/api/job-description", "application/json", strings.NewReader(`{"description":"Platform engineer"}`))
	if err != nil {
		t.Fatalf("job description err: %v", err)
	}
	var jd sessionModel.Response
	json.NewDecoder(resp.Body).Decode(&jd)
	resp.Body.Close()
	if jd.SessionID != uploaded.SessionID {
		t.Fatalf("expected cookie to carry the session, got %s vs %s", jd.SessionID, uploaded.SessionID)
	}

	resp, err = client.Get(srv.URL + "/api/session/validate")
	if err != nil {
		t.Fatalf("validate err: %v", err)
	}
	var validity struct {
		Valid     bool   `json:"valid"`
		SessionID string `json:"session_id"`
	}
	json.NewDecoder(resp.Body).Decode(&validity)
	resp.Body.Close()
	if !validity.Valid || validity.SessionID != uploaded.SessionID {
		t.Fatalf("unexpected validation %+v", validity)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + uploaded.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(channelModel.Inbound{Type: "generate"}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	wantTypes := []string{
		channelModel.EventInProgress,
		channelModel.EventResumeUpdated,
		channelModel.EventAgentResponse,
		channelModel.EventCompleted,
	}
	for _, want := range wantTypes {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var event channelModel.Outbound
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		if event.Type != want {
			t.Fatalf("expected %s, got %+v", want, event)
		}
		if want == channelModel.EventResumeUpdated && event.Data != draftHTML {
			t.Fatalf("expected fence-stripped draft, got %q", event.Data)
		}
	}

	versions, err := reg.Versions(uploaded.SessionID)
	if err != nil || len(versions) != 1 || versions[0] != 1 {
		t.Fatalf("unexpected versions %v err=%v", versions, err)
	}
}

func TestPingAndCORS(t *testing.T) {
	srv, _ := newTestServer(t, "")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/ping", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("ping err: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("expected CORS header, got %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestStaticFrontend(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644)
	os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644)
	srv, _ := newTestServer(t, dir)

	for path, want := range map[string]string{
		"/":             "<html>app</html>",
		"/app.js":       "console.log(1)",
		"/builder/edit": "<html>app</html>",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s err: %v", path, err)
		}
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		resp.Body.Close()
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("GET %s: expected %q, got %q", path, want, buf.String())
		}
	}
}
