package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/sensorgate"
	"github.com/MrEthical07/sensorgate/devicetoken"
	"github.com/MrEthical07/sensorgate/metrics"
	"github.com/MrEthical07/sensorgate/password"
	"github.com/MrEthical07/sensorgate/response"
	"github.com/MrEthical07/sensorgate/telemetry"
	"github.com/MrEthical07/sensorgate/userstore"
)

var fastArgon = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

type recordingRenderer struct {
	mu   sync.Mutex
	last string
}

func (r *recordingRenderer) Render(code string) ([]byte, error) {
	r.mu.Lock()
	r.last = code
	r.mu.Unlock()
	return []byte("<svg>" + code + "</svg>"), nil
}

func (r *recordingRenderer) ContentType() string { return "image/svg+xml" }

func (r *recordingRenderer) code() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

type memoryMailer struct {
	mu   sync.Mutex
	sent map[string]string
}

func (m *memoryMailer) SendCode(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = map[string]string{}
	}
	m.sent[to] = code
	return nil
}

func (m *memoryMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[to]
}

type testAPI struct {
	srv      *httptest.Server
	client   *http.Client
	mr       *miniredis.Miniredis
	engine   *sensorgate.Engine
	users    *userstore.Memory
	renderer *recordingRenderer
	mailer   *memoryMailer
	router   *telemetry.Router
	hub      *telemetry.Hub
	devices  *devicetoken.Manager
	metrics  *metrics.Collector
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := sensorgate.DefaultConfig()
	cfg.Password = fastArgon
	cfg.Audit.Enabled = false

	api := &testAPI{
		mr:       mr,
		users:    userstore.NewMemory(),
		renderer: &recordingRenderer{},
		mailer:   &memoryMailer{},
		metrics:  metrics.NewCollector(prometheus.NewRegistry()),
	}

	engine, err := sensorgate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(api.users).
		WithMailer(api.mailer).
		WithRenderer(api.renderer).
		WithMetrics(api.metrics).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	api.engine = engine

	api.hub = telemetry.NewHub(8, nil)
	t.Cleanup(api.hub.Close)
	api.router = telemetry.NewRouter(telemetry.RouterOptions{
		Broadcaster: api.hub,
		Metrics:     api.metrics,
	}, telemetry.DefaultProcessors()...)

	api.devices, err = devicetoken.NewManager(devicetoken.Config{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		TTL:    time.Hour,
	})
	require.NoError(t, err)

	server := NewServer(Options{
		Engine:    engine,
		Telemetry: api.router,
		Hub:       api.hub,
		Devices:   api.devices,
		Metrics:   api.metrics,
	})
	api.srv = httptest.NewServer(server.Handler())
	t.Cleanup(api.srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	api.client = &http.Client{Jar: jar}
	return api
}

func (a *testAPI) seedUser(t *testing.T, name, plain string) {
	t.Helper()
	argon, err := password.NewArgon2(fastArgon)
	require.NoError(t, err)
	hash, err := argon.Hash(plain)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, a.users.Create(context.Background(), &sensorgate.User{
		ID:           "id-" + name,
		UserName:     name,
		PasswordHash: hash,
		NickName:     name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (*http.Response, response.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env response.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

// challenge fetches an image challenge and returns its key and answer.
func (a *testAPI) challenge(t *testing.T) (string, string) {
	t.Helper()
	resp, env := a.do(t, http.MethodGet, "/user/code/image", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 0, env.Code)
	data := env.Data.(map[string]any)
	return data["codeKey"].(string), a.renderer.code()
}

func (a *testAPI) loginBody(t *testing.T, name, plain string) map[string]string {
	t.Helper()
	key, code := a.challenge(t)
	return map[string]string{"userName": name, "password": plain, "codeKey": key, "code": code}
}
