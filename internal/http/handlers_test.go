package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tilegate/internal/config"
	"tilegate/internal/loader"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	data  []byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	return f.data, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func pngTile(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))))
	return buf.Bytes()
}

func newTestHandlers(t *testing.T, fetcher *fakeFetcher) (*Handlers, *loader.Loader) {
	t.Helper()

	l, err := loader.New(loader.Config{
		Layer:    "osm",
		Template: "https://tile.example.org/{z}/{x}/{y}.png",
		Fetcher:  fetcher,
	})
	require.NoError(t, err)

	registry := loader.NewRegistry()
	registry.Register("osm", l)

	return New(&config.Config{}, zap.NewNop(), registry), l
}

func TestHandleTilesServesTile(t *testing.T) {
	fetcher := &fakeFetcher{data: pngTile(t)}
	h, _ := newTestHandlers(t, fetcher)

	req := httptest.NewRequest(http.MethodGet, "/tiles/osm/10/512/256.png", nil)
	w := httptest.NewRecorder()
	h.HandleTiles(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, fetcher.data, w.Body.Bytes())
}

func TestHandleTilesWithoutExtension(t *testing.T) {
	fetcher := &fakeFetcher{data: pngTile(t)}
	h, _ := newTestHandlers(t, fetcher)

	req := httptest.NewRequest(http.MethodGet, "/tiles/osm/3/1/2", nil)
	w := httptest.NewRecorder()
	h.HandleTiles(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleTilesUnknownLayer(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeFetcher{data: pngTile(t)})

	req := httptest.NewRequest(http.MethodGet, "/tiles/nope/1/2/3.png", nil)
	w := httptest.NewRecorder()
	h.HandleTiles(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleTilesRejectsBadCoordinates(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeFetcher{data: pngTile(t)})

	for _, path := range []string{
		"/tiles/osm/x/1/2.png",
		"/tiles/osm/1/y/2.png",
		"/tiles/osm/1/2/z.png",
		"/tiles/osm/-1/2/3.png",
		"/tiles/osm/1/2.png",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.HandleTiles(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestHandleTilesOffline(t *testing.T) {
	fetcher := &fakeFetcher{data: pngTile(t)}
	h, l := newTestHandlers(t, fetcher)
	l.SetOffline(true)

	req := httptest.NewRequest(http.MethodGet, "/tiles/osm/1/0/0.png", nil)
	w := httptest.NewRecorder()
	h.HandleTiles(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "offline")
	assert.Equal(t, 0, fetcher.callCount())
}

func TestHandleTilesMalformedUpstream(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeFetcher{data: []byte("garbage")})

	req := httptest.NewRequest(http.MethodGet, "/tiles/osm/1/0/0.png", nil)
	w := httptest.NewRecorder()
	h.HandleTiles(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestTemplateUpdateChangesFetchTarget(t *testing.T) {
	fetcher := &fakeFetcher{data: pngTile(t)}
	h, _ := newTestHandlers(t, fetcher)

	body := strings.NewReader(`{"template":"https://other.example.org/{z}/{x}/{y}.png"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/layers/osm/template", body)
	w := httptest.NewRecorder()
	h.HandleLayerRoutes(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/tiles/osm/1/0/0.png", nil)
	w = httptest.NewRecorder()
	h.HandleTiles(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, "https://other.example.org/1/0/0.png", fetcher.calls[0])
}

func TestParameterEndpoints(t *testing.T) {
	fetcher := &fakeFetcher{data: pngTile(t)}
	h, l := newTestHandlers(t, fetcher)

	// add one
	req := httptest.NewRequest(http.MethodPost, "/api/layers/osm/parameters",
		strings.NewReader(`{"name":"key","value":"abc"}`))
	w := httptest.NewRecorder()
	h.HandleLayerRoutes(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	// replace all
	req = httptest.NewRequest(http.MethodPut, "/api/layers/osm/parameters",
		strings.NewReader(`[{"name":"api_key","value":"secret"},{"name":"style","value":"dark"}]`))
	w = httptest.NewRecorder()
	h.HandleLayerRoutes(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	// the replaced parameter is gone, order of the new set is preserved
	var params []paramJSON
	req = httptest.NewRequest(http.MethodGet, "/api/layers/osm/parameters", nil)
	w = httptest.NewRecorder()
	h.HandleLayerRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &params))
	require.Equal(t, []paramJSON{{Name: "api_key", Value: "secret"}, {Name: "style", Value: "dark"}}, params)

	// remove one
	req = httptest.NewRequest(http.MethodDelete, "/api/layers/osm/parameters/style", nil)
	w = httptest.NewRecorder()
	h.HandleLayerRoutes(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	// removing an absent one is still 204
	req = httptest.NewRequest(http.MethodDelete, "/api/layers/osm/parameters/missing", nil)
	w = httptest.NewRecorder()
	h.HandleLayerRoutes(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	// clear
	req = httptest.NewRequest(http.MethodDelete, "/api/layers/osm/parameters", nil)
	w = httptest.NewRecorder()
	h.HandleLayerRoutes(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	snap := l.Snapshot()
	assert.Empty(t, snap.Params)
}

func TestOfflineEndpoint(t *testing.T) {
	h, l := newTestHandlers(t, &fakeFetcher{data: pngTile(t)})

	req := httptest.NewRequest(http.MethodPut, "/api/layers/osm/offline",
		strings.NewReader(`{"offline":true}`))
	w := httptest.NewRecorder()
	h.HandleLayerRoutes(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, l.Offline())

	req = httptest.NewRequest(http.MethodGet, "/api/layers/osm/offline", nil)
	w = httptest.NewRecorder()
	h.HandleLayerRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"offline":true}`, w.Body.String())
}

func TestLayerConfigEndpoint(t *testing.T) {
	h, l := newTestHandlers(t, &fakeFetcher{data: pngTile(t)})
	l.AddParameter("key", "abc")

	req := httptest.NewRequest(http.MethodGet, "/api/layers/osm", nil)
	w := httptest.NewRecorder()
	h.HandleLayerRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var cfg layerConfigJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "https://tile.example.org/{z}/{x}/{y}.png", cfg.Template)
	assert.Equal(t, []paramJSON{{Name: "key", Value: "abc"}}, cfg.Parameters)
	assert.False(t, cfg.Offline)
}

func TestHandleLayersLists(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeFetcher{data: pngTile(t)})

	req := httptest.NewRequest(http.MethodGet, "/api/layers", nil)
	w := httptest.NewRecorder()
	h.HandleLayers(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["osm"]`, w.Body.String())
}

func TestHandleHealthz(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.HandleHealthz(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
