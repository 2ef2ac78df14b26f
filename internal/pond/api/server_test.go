package api

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/lcroft/pond/internal/platform/errors"
	"github.com/lcroft/pond/internal/pond/asset"
	"github.com/lcroft/pond/internal/pond/domain"
	"github.com/lcroft/pond/internal/pond/service"
	"github.com/lcroft/pond/internal/pond/session"
	"github.com/lcroft/pond/internal/pond/storage"
	"github.com/lcroft/pond/internal/pond/storage/sqlite"
)

const testMaintenanceToken = "maintenance-secret"

type testHarness struct {
	server  *httptest.Server
	signKey ed25519.PrivateKey
	cfg     session.Config
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "pond.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	pipeline, err := asset.NewPipeline(t.TempDir())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	svc, err := service.New(service.Config{Store: store, Assets: pipeline})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	sessionCfg := session.Config{
		Issuer:   "pond-auth",
		Audience: "pond",
		Key:      pub,
		Now:      time.Now,
	}

	server := httptest.NewServer(NewServer(Config{
		Service:          svc,
		Session:          sessionCfg,
		AssetDir:         pipeline.Dir(),
		MaintenanceToken: testMaintenanceToken,
		StreamPoll:       20 * time.Millisecond,
		StreamHeartbeat:  50 * time.Millisecond,
	}).Handler())
	t.Cleanup(server.Close)

	return &testHarness{server: server, signKey: priv, cfg: sessionCfg}
}

func (h *testHarness) token(t *testing.T, userID, username string) string {
	t.Helper()
	token, err := session.Issue(h.signKey, h.cfg, session.Identity{UserID: userID, Username: username}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (h *testHarness) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (h *testHarness) addFish(t *testing.T, token, name string) domain.Object {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("name", name); err != nil {
		t.Fatalf("write name field: %v", err)
	}
	part, err := form.CreateFormFile("image", "fish.png")
	if err != nil {
		t.Fatalf("create image part: %v", err)
	}
	if _, err := part.Write(pngBuf.Bytes()); err != nil {
		t.Fatalf("write image part: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	resp := h.do(t, http.MethodPost, "/api/fish", token, &body, form.FormDataContentType())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add fish status = %d", resp.StatusCode)
	}
	var obj domain.Object
	decodeBody(t, resp, &obj)
	return obj
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	decodeBody(t, resp, &body)
	return body
}

func TestUpEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	resp := h.do(t, http.MethodGet, "/up", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAPIRequiresSession(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	resp := h.do(t, http.MethodGet, "/api/pond", "", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Code != apperrors.CodeSessionMissing {
		t.Errorf("code = %s, want %s", body.Code, apperrors.CodeSessionMissing)
	}
}

func TestCatchReleaseFlow(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")
	bob := h.token(t, "user-bob", "Bob")

	obj := h.addFish(t, alice, "Koi")

	resp := h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/catch", alice, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first catch status = %d", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/catch", bob, nil, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second catch status = %d, want 409", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Code != apperrors.CodeObjectAlreadyCaught {
		t.Errorf("code = %s, want %s", body.Code, apperrors.CodeObjectAlreadyCaught)
	}

	resp = h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/release", alice, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("release status = %d", resp.StatusCode)
	}

	// Released fish are claimable again, by anyone.
	resp = h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/catch", bob, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catch after release status = %d", resp.StatusCode)
	}
}

func TestReleaseWithoutHoldingSucceeds(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")
	obj := h.addFish(t, alice, "Koi")

	resp := h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/release", alice, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for idempotent release", resp.StatusCode)
	}
}

func TestVoteEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")
	obj := h.addFish(t, alice, "Koi")

	resp := h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/vote", alice,
		strings.NewReader(`{"value":1}`), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("vote status = %d", resp.StatusCode)
	}
	var tally storage.VoteTally
	decodeBody(t, resp, &tally)
	if tally.Likes != 1 || tally.MyVote != 1 {
		t.Errorf("tally = %+v, want likes=1 my_vote=1", tally)
	}

	resp = h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/vote", alice,
		strings.NewReader(`{"value":5}`), "application/json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid vote status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")
	bob := h.token(t, "user-bob", "Bob")
	obj := h.addFish(t, alice, "Koi")

	resp := h.do(t, http.MethodDelete, "/api/fish/"+obj.ID, bob, nil, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger delete status = %d, want 403", resp.StatusCode)
	}

	resp = h.do(t, http.MethodDelete, "/api/fish/"+obj.ID, alice, nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("creator delete status = %d, want 204", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/catch", alice, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("catch of deleted fish status = %d, want 404", resp.StatusCode)
	}
}

func TestRecentEventsEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")
	obj := h.addFish(t, alice, "Koi")

	resp := h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/catch", alice, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catch status = %d", resp.StatusCode)
	}

	resp = h.do(t, http.MethodGet, "/api/events?limit=10", alice, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events status = %d", resp.StatusCode)
	}
	var body struct {
		Events []domain.Event `json:"events"`
	}
	decodeBody(t, resp, &body)
	if len(body.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(body.Events))
	}
	if body.Events[0].Type != domain.EventCatch || body.Events[1].Type != domain.EventAdd {
		t.Errorf("order = %s, %s; want CATCH then ADD", body.Events[0].Type, body.Events[1].Type)
	}
	if body.Events[0].ActorName != "Alice" || body.Events[0].ObjectName != "Koi" {
		t.Errorf("snapshots = %+v", body.Events[0])
	}
}

func TestErrorLocalization(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")

	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/api/fish/missing/catch", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+alice)
	req.Header.Set("Accept-Language", "ja-JP,ja;q=0.9")
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	body := decodeError(t, resp)
	if body.Message != "その魚はもう池にいません。" {
		t.Errorf("message = %q, want localized Japanese text", body.Message)
	}
}

func TestMaintenanceResetDaily(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")
	obj := h.addFish(t, alice, "Koi")
	resp := h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/catch", alice, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catch status = %d", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/internal/maintenance/reset-daily", "wrong-token", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/internal/maintenance/reset-daily", testMaintenanceToken, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}
	var body map[string]int64
	decodeBody(t, resp, &body)
	if body["users_reset"] != 1 {
		t.Errorf("users_reset = %d, want 1", body["users_reset"])
	}
}

func TestAssetServing(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")
	obj := h.addFish(t, alice, "Koi")

	resp := h.do(t, http.MethodGet, "/assets/"+obj.ImagePath, "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("asset status = %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read asset: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("served asset is not a png: %v", err)
	}
}
