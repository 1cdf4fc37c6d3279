package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/soyart/explorer-web/config"
	"github.com/soyart/explorer-web/loader"
	"github.com/soyart/explorer-web/nodefetch"
	"github.com/soyart/explorer-web/prefs"
)

type fixture struct {
	prefs    *prefs.Preferences
	host     *httptest.Server
	upstream *httptest.Server

	// headers seen by the upstream explorer API
	seen []http.Header
}

func newFixture(t *testing.T, upstream http.HandlerFunc) *fixture {
	t.Helper()

	f := &fixture{}

	f.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.seen = append(f.seen, r.Header.Clone())
		upstream(w, r)
	}))
	t.Cleanup(f.upstream.Close)

	p, err := prefs.Load(context.Background(), zap.NewNop(), prefs.NewMemStorage())
	require.NoError(t, err)
	f.prefs = p

	client, err := nodefetch.NewClient(p.NodeAddress)
	require.NoError(t, err)

	l, err := loader.New(
		loader.WithHTTPClient(client),
		loader.WithBase(loader.Base{Source: config.APISourceExternal, URL: f.upstream.URL}),
		loader.WithBlockCount(p.NumberOfBlocks),
	)
	require.NoError(t, err)

	f.host = httptest.NewServer(New(l, p, zap.NewNop()).Handler())
	t.Cleanup(f.host.Close)

	return f
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func do(t *testing.T, method, url string, body string, header http.Header) (int, string) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(b)
}

func TestRelayNodeAddress(t *testing.T) {
	var gotHeader string
	var gotContext string
	var inContext bool

	h := RelayNodeAddress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(nodefetch.HeaderNodeAddress)
		gotContext, inContext = nodefetch.AddressFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(nodefetch.HeaderNodeAddress, "node-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "node-42", gotHeader)
	assert.True(t, inContext)
	assert.Equal(t, "node-42", gotContext)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "", gotHeader)
	assert.False(t, inContext)
}

func TestRequestOrigin(t *testing.T) {
	var origin string

	h := RequestOrigin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin, _ = loader.OriginFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "http://explorer.local:3000/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "http://explorer.local:3000", origin)

	req.Header.Set("X-Forwarded-Proto", "https")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "https://explorer.local:3000", origin)
}

func TestBlocksRoute(t *testing.T) {
	f := newFixture(t, respond(http.StatusOK, `{"blocks":[{"header":{"number":"5"},"transactions":[]}]}`))

	status, body := do(t, http.MethodGet, f.host.URL+"/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"blocks":[{"header":{"number":"5"},"transactions":[]}]}`, body)

	require.Len(t, f.seen, 1)
	assert.Empty(t, f.seen[0].Values(nodefetch.HeaderNodeAddress))
}

func TestBlocksRouteFallback(t *testing.T) {
	f := newFixture(t, respond(http.StatusInternalServerError, ``))

	status, body := do(t, http.MethodGet, f.host.URL+"/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"blocks":[]}`, body)
}

func TestTransactionRouteForwardsAddress(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/0xfeed", r.URL.Path)
		_, _ = io.WriteString(w, `{"hash":"0xfeed","isPending":true}`)
	})

	require.NoError(t, f.prefs.NodeAddress.Set(context.Background(), "from-prefs"))

	status, body := do(t, http.MethodGet, f.host.URL+"/transaction/0xfeed", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"transaction":{"hash":"0xfeed","isPending":true}}`, body)

	status, _ = do(t, http.MethodGet, f.host.URL+"/transaction/0xfeed", "", http.Header{
		nodefetch.HeaderNodeAddress: {"from-request"},
	})
	assert.Equal(t, http.StatusOK, status)

	require.Len(t, f.seen, 2)
	assert.Equal(t, "from-prefs", f.seen[0].Get(nodefetch.HeaderNodeAddress))
	assert.Equal(t, "from-request", f.seen[1].Get(nodefetch.HeaderNodeAddress))
}

func TestTransactionRouteFallback(t *testing.T) {
	f := newFixture(t, respond(http.StatusNotFound, `not found`))

	_, body := do(t, http.MethodGet, f.host.URL+"/transaction/0xdead", "", nil)
	assert.JSONEq(t, `{"transaction":null}`, body)
}

func TestEntriesRoute(t *testing.T) {
	f := newFixture(t, respond(http.StatusOK,
		`{"blocks":[{"transactions":[{"hash":"a"}]},{"transactions":[{"hash":"b"},{"hash":"c"}]}]}`))

	_, body := do(t, http.MethodGet, f.host.URL+"/entries", "", nil)
	assert.JSONEq(t, `[{"hash":"a"},{"hash":"b"},{"hash":"c"}]`, body)
}

func TestSameOriginReachesMountedAPI(t *testing.T) {
	var apiHits, pageHits atomic.Int32

	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiHits.Add(1)
		switch r.URL.Path {
		case "/blocks":
			_, _ = io.WriteString(w, `{"blocks":[{"transactions":[{"hash":"0xfeed"}]}]}`)
		case "/transaction/0xfeed":
			_, _ = io.WriteString(w, `{"hash":"0xfeed"}`)
		default:
			http.NotFound(w, r)
		}
	})

	p, err := prefs.Load(context.Background(), zap.NewNop(), prefs.NewMemStorage())
	require.NoError(t, err)

	l, err := loader.New(
		loader.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
		loader.WithBase(loader.Base{Source: config.APISourceSameOrigin, Path: config.DefaultAPIPath}),
	)
	require.NoError(t, err)

	pages := New(l, p, zap.NewNop()).Handler()

	mux := http.NewServeMux()
	mux.Handle(config.DefaultAPIPath+"/", http.StripPrefix(config.DefaultAPIPath, api))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		pages.ServeHTTP(w, r)
	}))

	host := httptest.NewServer(mux)
	defer host.Close()

	_, body := do(t, http.MethodGet, host.URL+"/transaction/0xfeed", "", nil)
	assert.JSONEq(t, `{"transaction":{"hash":"0xfeed"}}`, body)
	assert.Equal(t, int32(1), pageHits.Load())
	assert.Equal(t, int32(1), apiHits.Load())

	_, body = do(t, http.MethodGet, host.URL+"/", "", nil)
	assert.JSONEq(t, `{"blocks":[{"transactions":[{"hash":"0xfeed"}]}]}`, body)
	assert.Equal(t, int32(2), pageHits.Load())
	assert.Equal(t, int32(2), apiHits.Load())
}

func TestPreferencesRoutes(t *testing.T) {
	f := newFixture(t, respond(http.StatusOK, `{"blocks":[]}`))

	status, body := do(t, http.MethodGet, f.host.URL+"/preferences", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"nodeAddress":"","numberOfBlocks":10}`, body)

	status, body = do(t, http.MethodPut, f.host.URL+"/preferences", `{"numberOfBlocks":4}`, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"nodeAddress":"","numberOfBlocks":4}`, body)

	status, _ = do(t, http.MethodPut, f.host.URL+"/preferences", `{"numberOfBlocks":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, http.MethodPut, f.host.URL+"/preferences", `nope`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	do(t, http.MethodGet, f.host.URL+"/", "", nil)
	require.Len(t, f.seen, 1)
}

func TestPreferencesCountReachesUpstream(t *testing.T) {
	var query string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("number_of_blocks")
		_, _ = io.WriteString(w, `{"blocks":[]}`)
	})

	do(t, http.MethodPut, f.host.URL+"/preferences", `{"numberOfBlocks":4}`, nil)
	do(t, http.MethodGet, f.host.URL+"/", "", nil)

	assert.Equal(t, "4", query)
}

func TestPreferencesWebsocket(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t, respond(http.StatusOK, `{"blocks":[]}`))
	defer f.upstream.Close()
	defer f.host.Close()

	wsURL := "ws" + strings.TrimPrefix(f.host.URL, "http") + "/preferences/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	read := func() prefs.Snapshot {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		var snapshot prefs.Snapshot
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &snapshot))

		return snapshot
	}

	assert.Equal(t, prefs.Snapshot{NodeAddress: "", NumberOfBlocks: 10}, read())

	require.NoError(t, f.prefs.NodeAddress.Set(context.Background(), "node-42"))

	var snapshot prefs.Snapshot
	for snapshot.NodeAddress != "node-42" {
		snapshot = read()
	}
	assert.Equal(t, prefs.Snapshot{NodeAddress: "node-42", NumberOfBlocks: 10}, snapshot)

	require.NoError(t, conn.Close())
}
