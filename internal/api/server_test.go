package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/meshsim/internal/audit"
	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/endpoint"
	"github.com/nerrad567/meshsim/internal/infrastructure/config"
	"github.com/nerrad567/meshsim/internal/infrastructure/database"
	"github.com/nerrad567/meshsim/internal/infrastructure/logging"
	"github.com/nerrad567/meshsim/internal/mesh"
	"github.com/nerrad567/meshsim/internal/message"
	"github.com/nerrad567/meshsim/internal/topology"
	_ "github.com/nerrad567/meshsim/migrations"
)

var testWSConfig = config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}

func testLogger() *logging.Logger {
	return logging.Discard()
}

// testEnv is a running simulation behind an API server.
type testEnv struct {
	srv      *Server
	router   http.Handler
	network  *mesh.Network
	loopback *endpoint.Loopback
	audit    audit.Repository
}

// constantAdapter makes every lightweight device compute value.
func constantAdapter(value float64) device.AdapterBuilder {
	return func(device.Device) device.Executor {
		return device.ExecutorFunc(func(context.Context) (any, error) { return value, nil })
	}
}

// newTestEnv builds a ring of four remote devices over a loopback transport,
// backed by an in-memory database with history and audit wired in.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, topology.Ring, true)
}

func newTestEnvWith(t *testing.T, kind topology.Kind, persist bool) *testEnv {
	t.Helper()

	lb := endpoint.NewLoopback()
	lb.SetResponder(endpoint.CounterResponder())

	opts := mesh.Options{Transport: lb, Adapter: constantAdapter(7)}
	var (
		db        *database.DB
		history   *device.SQLiteStatusHistoryRepository
		auditRepo audit.Repository
	)
	if persist {
		var err error
		db, err = database.Open(config.DatabaseConfig{Path: database.MemoryPath})
		if err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		if err := db.Migrate(context.Background()); err != nil {
			t.Fatalf("Migrate() error: %v", err)
		}
		history = device.NewSQLiteStatusHistoryRepository(db.DB)
		auditRepo = audit.NewSQLiteRepository(db.DB)
		opts.History = history
	}

	network, err := mesh.New(device.NewRegistry(), opts)
	if err != nil {
		t.Fatalf("mesh.New() error: %v", err)
	}
	lb.SetTarget(network)
	if auditRepo != nil {
		network.AddObserver(audit.NewRecorder(auditRepo, "test", nil).Observe)
	}

	for i := 0; i < 4; i++ {
		if _, err := network.AddDevice(fmt.Sprintf("dev-%d", i), device.ModeRemote); err != nil {
			t.Fatal(err)
		}
	}
	if kind.Valid() {
		if err := network.Finalize(kind); err != nil {
			t.Fatal(err)
		}
	}

	hub := NewHub(testWSConfig, testLogger())
	network.AddObserver(hub.Observe)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	deps := Deps{
		Config:       config.APIConfig{Host: "127.0.0.1"},
		WS:           testWSConfig,
		Logger:       testLogger(),
		Network:      network,
		ExternalHub:  hub,
		SimulationID: "test",
		Version:      "test",
	}
	if persist {
		deps.History = history
		deps.AuditRepo = auditRepo
		deps.Schema = db
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{
		srv:      srv,
		router:   srv.buildRouter(),
		network:  network,
		loopback: lb,
		audit:    auditRepo,
	}
}

// do performs a request against the router and decodes a JSON object body.
func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal %s %s: %v (body %q)", method, path, err, w.Body.String())
		}
	}
	return w.Code, resp
}

func idList(t *testing.T, items any) []int {
	t.Helper()
	list, ok := items.([]any)
	if !ok {
		t.Fatalf("expected list, got %T", items)
	}
	ids := make([]int, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case float64:
			ids[i] = int(v)
		case map[string]any:
			ids[i] = int(v["id"].(float64))
		default:
			t.Fatalf("unexpected list item %T", item)
		}
	}
	return ids
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ─── Health and Middleware ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodGet, "/api/v1/health", "")
	if code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", code, http.StatusOK)
	}
	if resp["status"] != "ok" || resp["version"] != "test" || resp["simulation"] != "test" || resp["finalized"] != true {
		t.Errorf("health = %v", resp)
	}
	if resp["websocket_clients"] != 0.0 {
		t.Errorf("websocket_clients = %v, want 0", resp["websocket_clients"])
	}
	schema, ok := resp["schema"].(map[string]any)
	if !ok || schema["applied"] == 0.0 || schema["version"] == "" || schema["pending"] != nil {
		t.Errorf("schema = %v, want migrated", resp["schema"])
	}
}

type brokenSchema struct{}

func (brokenSchema) SchemaStatus(context.Context) (database.SchemaStatus, error) {
	return database.SchemaStatus{}, errors.New("database is closed")
}

func TestHealth_SchemaUnavailable(t *testing.T) {
	env := newTestEnvWith(t, topology.Ring, false)
	if code, resp := env.do(t, http.MethodGet, "/api/v1/health", ""); code != http.StatusOK || resp["schema"] != nil {
		t.Errorf("health without database = %d %v", code, resp)
	}

	env.srv.schema = brokenSchema{}
	code, resp := env.do(t, http.MethodGet, "/api/v1/health", "")
	if code != http.StatusServiceUnavailable || resp["code"] != ErrCodeUnavailable {
		t.Errorf("health with failing database = %d %v", code, resp)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{"generated", ""},
		{"preserved", "client-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got == "" || (tt.header != "" && got != tt.header) {
				t.Errorf("X-Request-ID = %q, want %q", got, tt.header)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	env := newTestEnv(t)
	env.srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestRecovery(t *testing.T) {
	env := newTestEnv(t)
	handler := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"unknown route", http.MethodGet, "/api/v1/nonexistent", http.StatusNotFound, ErrCodeNotFound},
		{"outside api prefix", http.MethodGet, "/metrics", http.StatusNotFound, ErrCodeNotFound},
		{"wrong method", http.MethodPatch, "/api/v1/rounds", http.StatusMethodNotAllowed, ErrCodeNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := env.do(t, tt.method, tt.path, "")
			if code != tt.wantStatus || resp["code"] != tt.wantCode {
				t.Errorf("%s %s = %d %v, want %d with code %q", tt.method, tt.path, code, resp, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

// ─── Devices ───────────────────────────────────────────────────────

func TestListDevices(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.network.GoLightweight(context.Background(), 2); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantIDs  []int
	}{
		{"all", "", http.StatusOK, []int{0, 1, 2, 3}},
		{"remote only", "?mode=remote", http.StatusOK, []int{0, 1, 3}},
		{"lightweight only", "?mode=lightweight", http.StatusOK, []int{2}},
		{"stub none", "?mode=stub", http.StatusOK, []int{}},
		{"bad mode", "?mode=ghost", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := env.do(t, http.MethodGet, "/api/v1/devices"+tt.query, "")
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d", code, tt.wantCode)
			}
			if tt.wantIDs == nil {
				return
			}
			if got := idList(t, resp["devices"]); !equalInts(got, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", got, tt.wantIDs)
			}
		})
	}
}

func TestGetDevice(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodGet, "/api/v1/devices/0", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp["address"] != "dev-0" || resp["mode"] != "remote" {
		t.Errorf("device = %v", resp)
	}
	if got := idList(t, resp["neighbours"]); !equalInts(got, []int{1, 3}) {
		t.Errorf("neighbours = %v, want [1 3]", got)
	}

	if code, _ := env.do(t, http.MethodGet, "/api/v1/devices/42", ""); code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", code)
	}
	if code, _ := env.do(t, http.MethodGet, "/api/v1/devices/abc", ""); code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", code)
	}
}

func TestGetDevice_BeforeFinalize(t *testing.T) {
	env := newTestEnvWith(t, 0, false)

	code, resp := env.do(t, http.MethodGet, "/api/v1/devices/1", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if _, ok := resp["neighbours"]; ok {
		t.Errorf("neighbours present before finalize: %v", resp)
	}
}

func TestNeighbours(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantIDs  []int
	}{
		{"ring neighbours", "/api/v1/devices/0/neighbours", http.StatusOK, []int{1, 3}},
		{"include self", "/api/v1/devices/0/neighbours?self=true", http.StatusOK, []int{0, 1, 3}},
		{"explicit false", "/api/v1/devices/2/neighbours?self=false", http.StatusOK, []int{1, 3}},
		{"unknown id is empty", "/api/v1/devices/99/neighbours", http.StatusOK, []int{}},
		{"bad self", "/api/v1/devices/0/neighbours?self=maybe", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := env.do(t, http.MethodGet, tt.path, "")
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d", code, tt.wantCode)
			}
			if tt.wantIDs == nil {
				return
			}
			if got := idList(t, resp["neighbours"]); !equalInts(got, tt.wantIDs) {
				t.Errorf("neighbours = %v, want %v", got, tt.wantIDs)
			}
		})
	}
}

func TestNeighbours_BeforeFinalize(t *testing.T) {
	env := newTestEnvWith(t, 0, false)

	code, resp := env.do(t, http.MethodGet, "/api/v1/devices/0/neighbours", "")
	if code != http.StatusConflict || resp["code"] != ErrCodeConflict {
		t.Errorf("status = %d body = %v, want 409 conflict", code, resp)
	}
}

func TestTopologyAndEdges(t *testing.T) {
	env := newTestEnvWith(t, topology.Line, false)

	code, stats := env.do(t, http.MethodGet, "/api/v1/topology", "")
	if code != http.StatusOK {
		t.Fatalf("topology status = %d", code)
	}
	if stats["total_devices"] != 4.0 || stats["edges"] != 3.0 || stats["topology"] != "line" || stats["finalized"] != true {
		t.Errorf("stats = %v", stats)
	}

	code, resp := env.do(t, http.MethodGet, "/api/v1/topology/edges", "")
	if code != http.StatusOK {
		t.Fatalf("edges status = %d", code)
	}
	if resp["count"] != 3.0 || resp["topology"] != "line" {
		t.Errorf("edges = %v", resp)
	}
	first := resp["edges"].([]any)[0].(map[string]any)
	if first["a"] != 0.0 || first["b"] != 1.0 {
		t.Errorf("first edge = %v, want 0-1", first)
	}

	unfinalized := newTestEnvWith(t, 0, false)
	if code, _ := unfinalized.do(t, http.MethodGet, "/api/v1/topology/edges", ""); code != http.StatusConflict {
		t.Errorf("edges before finalize status = %d, want 409", code)
	}
}

// ─── Status and History ────────────────────────────────────────────

func TestSetStatusAndHistory(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPut, "/api/v1/devices/1/status", `{"temperature": 21.5}`)
	if code != http.StatusOK {
		t.Fatalf("set status = %d (%v)", code, resp)
	}
	status := resp["status"].(map[string]any)
	if status["temperature"] != 21.5 {
		t.Errorf("status = %v", status)
	}

	code, resp = env.do(t, http.MethodGet, "/api/v1/devices/1/history", "")
	if code != http.StatusOK {
		t.Fatalf("history status = %d", code)
	}
	if resp["count"] != 1.0 {
		t.Fatalf("history = %v", resp)
	}
	entry := resp["history"].([]any)[0].(map[string]any)
	if entry["source"] != device.StatusSourceAPI {
		t.Errorf("source = %v, want %s", entry["source"], device.StatusSourceAPI)
	}

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	if _, resp := env.do(t, http.MethodGet, "/api/v1/devices/1/history?since="+future, ""); resp["count"] != 0.0 {
		t.Errorf("history since future = %v", resp)
	}
}

func TestSetStatus_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{"not an object", "/api/v1/devices/1/status", `[1,2]`, http.StatusBadRequest},
		{"null", "/api/v1/devices/1/status", `null`, http.StatusBadRequest},
		{"invalid json", "/api/v1/devices/1/status", `{`, http.StatusBadRequest},
		{"unknown device", "/api/v1/devices/9/status", `{"a":1}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := env.do(t, http.MethodPut, tt.path, tt.body); code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestHistory_Errors(t *testing.T) {
	env := newTestEnv(t)
	bare := newTestEnvWith(t, topology.Ring, false)

	tests := []struct {
		name     string
		env      *testEnv
		path     string
		wantCode int
	}{
		{"bad limit", env, "/api/v1/devices/0/history?limit=-1", http.StatusBadRequest},
		{"bad since", env, "/api/v1/devices/0/history?since=yesterday", http.StatusBadRequest},
		{"unknown device", env, "/api/v1/devices/9/history", http.StatusNotFound},
		{"no repository", bare, "/api/v1/devices/0/history", http.StatusServiceUnavailable},
		{"no audit repository", bare, "/api/v1/audit", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := tt.env.do(t, http.MethodGet, tt.path, ""); code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestParseHistoryLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", defaultHistoryLimit, false},
		{"10", 10, false},
		{"5000", maxHistoryLimit, false},
		{"0", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		got, err := parseHistoryLimit(tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseHistoryLimit(%q) = %d, %v", tt.raw, got, err)
		}
	}
}

// ─── Mode transitions and execution ────────────────────────────────

func TestLightweightTransitions(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/v1/devices/2/lightweight", "")
	if code != http.StatusOK || resp["mode"] != "lightweight" || resp["id"] != 2.0 {
		t.Fatalf("go lightweight = %d %v", code, resp)
	}

	code, resp = env.do(t, http.MethodPost, "/api/v1/devices/2/lightweight", "")
	if code != http.StatusConflict {
		t.Errorf("second go lightweight = %d %v, want 409", code, resp)
	}

	code, resp = env.do(t, http.MethodDelete, "/api/v1/devices/2/lightweight", "")
	if code != http.StatusOK || resp["mode"] != "remote" {
		t.Fatalf("leave lightweight = %d %v", code, resp)
	}

	code, _ = env.do(t, http.MethodDelete, "/api/v1/devices/2/lightweight", "")
	if code != http.StatusConflict {
		t.Errorf("leave on remote = %d, want 409", code)
	}

	code, resp = env.do(t, http.MethodGet, "/api/v1/audit?action=replace", "")
	if code != http.StatusOK || resp["total"] != 2.0 {
		t.Errorf("replace audit = %d %v, want 2 entries", code, resp)
	}
}

func TestExecute(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/v1/devices/1/execute", "")
	if code != http.StatusAccepted {
		t.Fatalf("execute = %d", code)
	}
	sent := env.loopback.Sent(1)
	if len(sent) == 0 || sent[0].Type != message.TypeExecute {
		t.Errorf("sent to device 1 = %v", sent)
	}

	if code, _ := env.do(t, http.MethodPost, "/api/v1/devices/8/execute", ""); code != http.StatusNotFound {
		t.Errorf("unknown device execute = %d, want 404", code)
	}
}

func TestExecute_NoExecutor(t *testing.T) {
	lb := endpoint.NewLoopback()
	network, err := mesh.New(device.NewRegistry(), mesh.Options{Transport: lb})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := network.AddDevice("lw", device.ModeLightweight); err != nil {
		t.Fatal(err)
	}
	srv, err := New(Deps{Logger: testLogger(), Network: network, ExternalHub: NewHub(testWSConfig, testLogger())})
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/devices/0/execute", nil))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestExecuteRound(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/v1/rounds", "")
	if code != http.StatusOK || resp["executed"] != 4.0 {
		t.Errorf("round = %d %v", code, resp)
	}

	unfinalized := newTestEnvWith(t, 0, false)
	if code, _ := unfinalized.do(t, http.MethodPost, "/api/v1/rounds", ""); code != http.StatusConflict {
		t.Errorf("round before finalize = %d, want 409", code)
	}
}

func TestAudit_Finalize(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodGet, "/api/v1/audit?action=finalize&limit=5", "")
	if code != http.StatusOK {
		t.Fatalf("audit status = %d", code)
	}
	if resp["total"] != 1.0 || resp["limit"] != 5.0 {
		t.Errorf("audit = %v", resp)
	}
}

// ─── Hub ───────────────────────────────────────────────────────────

func newMockClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
}

func TestHub_Observe(t *testing.T) {
	hub := NewHub(testWSConfig, testLogger())
	replaced := newMockClient(hub, mesh.EventDeviceReplaced)
	everything := newMockClient(hub, WSChannelAll)
	other := newMockClient(hub, mesh.EventTopologyReset)
	hub.Register(replaced)
	hub.Register(everything)
	hub.Register(other)

	hub.Observe(mesh.Event{Type: mesh.EventDeviceReplaced, DeviceID: 3, From: "remote", Mode: "lightweight"})

	for name, client := range map[string]*WSClient{"subscribed": replaced, "wildcard": everything} {
		select {
		case data := <-client.send:
			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("%s: unmarshal: %v", name, err)
			}
			payload := msg.Payload.(map[string]any)
			if msg.EventType != mesh.EventDeviceReplaced || payload["device_id"] != 3.0 || payload["mode"] != "lightweight" {
				t.Errorf("%s: message = %+v", name, msg)
			}
		case <-time.After(time.Second):
			t.Errorf("%s: timed out waiting for broadcast", name)
		}
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testWSConfig, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := newMockClient(hub)
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	hub.Unregister(client) // second call must not close twice
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	hub.Register(newMockClient(hub))
	cancel()
	<-done
	if hub.ClientCount() != 0 {
		t.Errorf("after Run exit count = %d, want 0", hub.ClientCount())
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWS(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	return msg
}

func TestWebSocket_EventFeed(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	ws := dialWS(t, ts)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{mesh.EventDeviceReplaced}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if resp := readWS(t, ws); resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	resp, err := http.Post(ts.URL+"/api/v1/devices/1/lightweight", "application/json", nil)
	if err != nil {
		t.Fatalf("go lightweight request: %v", err)
	}
	resp.Body.Close()

	event := readWS(t, ws)
	if event.Type != WSTypeEvent || event.EventType != mesh.EventDeviceReplaced {
		t.Fatalf("event = %+v", event)
	}
	payload := event.Payload.(map[string]any)
	if payload["device_id"] != 1.0 || payload["from"] != "remote" || payload["mode"] != "lightweight" {
		t.Errorf("payload = %v", payload)
	}
}

func TestWebSocket_Messages(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	ws := dialWS(t, ts)

	tests := []struct {
		name     string
		send     string
		wantType string
		wantID   string
	}{
		{"ping", `{"type":"ping","id":"p1"}`, WSTypePong, "p1"},
		{"unsubscribe", `{"type":"unsubscribe","id":"u1","payload":{"channels":["*"]}}`, WSTypeResponse, "u1"},
		{"unknown type", `{"type":"dance","id":"d1"}`, WSTypeError, "d1"},
		{"invalid json", `not json`, WSTypeError, ""},
		{"bad payload", `{"type":"subscribe","id":"s1","payload":{"channels":"all"}}`, WSTypeError, "s1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatalf("write: %v", err)
			}
			msg := readWS(t, ws)
			if msg.Type != tt.wantType || msg.ID != tt.wantID {
				t.Errorf("reply = %+v, want type %s id %q", msg, tt.wantType, tt.wantID)
			}
		})
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := New(Deps{Network: env.network}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without network should fail")
	}
}

func TestServer_StartAndClose(t *testing.T) {
	env := newTestEnv(t)
	env.srv.cfg = config.APIConfig{
		Host:     "127.0.0.1",
		Port:     19080,
		Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
	}

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := env.srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := env.srv.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	addr := "http://127.0.0.1:19080/api/v1/health"
	resp, err := http.Get(addr)
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := http.Get(addr); err == nil {
		t.Error("server still responding after Close()")
	}
}
