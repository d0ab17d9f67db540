package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tilegate/internal/config"
	"tilegate/internal/decode"
	"tilegate/internal/fetch"
	"tilegate/internal/loader"
	"tilegate/internal/source"
	"tilegate/internal/tile"
)

type Handlers struct {
	config   *config.Config
	logger   *zap.Logger
	registry *loader.Registry
}

func New(config *config.Config, logger *zap.Logger, registry *loader.Registry) *Handlers {
	return &Handlers{
		config:   config,
		logger:   logger,
		registry: registry,
	}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		bytes := wrapped.bytesWritten

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", bytes),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigin := ""

		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		} else {
			host := r.Host
			if origin != "" && strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host) {
				allowedOrigin = origin
			} else if origin == "" {
				allowedOrigin = "*"
			}
		}

		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleTiles serves GET /tiles/{layer}/{z}/{x}/{y}[.{ext}], resolving the
// tile through the layer's loader pipeline.
func (h *Handlers) HandleTiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/tiles/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		http.Error(w, "Invalid tile path", http.StatusBadRequest)
		return
	}

	ldr, ok := h.registry.Get(parts[0])
	if !ok {
		http.Error(w, "Unknown layer", http.StatusNotFound)
		return
	}

	var z, x, y int
	if _, err := fmt.Sscanf(parts[1], "%d", &z); err != nil {
		http.Error(w, "Invalid zoom level", http.StatusBadRequest)
		return
	}
	if _, err := fmt.Sscanf(parts[2], "%d", &x); err != nil {
		http.Error(w, "Invalid x coordinate", http.StatusBadRequest)
		return
	}

	tileFile := parts[3]
	ext := filepath.Ext(tileFile)
	if _, err := fmt.Sscanf(strings.TrimSuffix(tileFile, ext), "%d", &y); err != nil {
		http.Error(w, "Invalid y coordinate", http.StatusBadRequest)
		return
	}

	if z < 0 || x < 0 || y < 0 {
		http.Error(w, "Coordinates must be non-negative", http.StatusBadRequest)
		return
	}

	result, err := ldr.Load(r.Context(), tile.NewKey(z, x, y))
	if err != nil {
		h.writeTileError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.ContentType())
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(result.Bytes())))

	// HEAD request doesn't send body
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Write(result.Bytes())
}

func (h *Handlers) writeTileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, loader.ErrOffline):
		http.Error(w, "Tile unavailable offline", http.StatusNotFound)
	default:
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			if fetchErr.NotFound() {
				http.Error(w, "Tile does not exist", http.StatusNotFound)
				return
			}
			http.Error(w, "Upstream fetch failed", http.StatusBadGateway)
			return
		}
		var decodeErr *decode.Error
		if errors.As(err, &decodeErr) {
			http.Error(w, "Upstream returned a malformed tile", http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleLayers serves GET /api/layers, the list of registered layer names.
func (h *Handlers) HandleLayers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.registry.Names())
}

// HandleLayerRoutes dispatches /api/layers/{layer}/... to the runtime
// configuration endpoints of a single layer.
func (h *Handlers) HandleLayerRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/layers/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 0 || parts[0] == "" {
		h.HandleLayers(w, r)
		return
	}

	ldr, ok := h.registry.Get(parts[0])
	if !ok {
		http.Error(w, "Unknown layer", http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 1:
		h.handleLayerConfig(w, r, ldr)
	case len(parts) == 2 && parts[1] == "template":
		h.handleTemplate(w, r, ldr)
	case len(parts) == 2 && parts[1] == "parameters":
		h.handleParameters(w, r, ldr)
	case len(parts) == 3 && parts[1] == "parameters":
		h.handleParameter(w, r, ldr, parts[2])
	case len(parts) == 2 && parts[1] == "offline":
		h.handleOffline(w, r, ldr)
	default:
		http.NotFound(w, r)
	}
}

type paramJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type layerConfigJSON struct {
	Template   string      `json:"template"`
	Parameters []paramJSON `json:"parameters"`
	Offline    bool        `json:"offline"`
}

func (h *Handlers) handleLayerConfig(w http.ResponseWriter, r *http.Request, ldr *loader.Loader) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := ldr.Snapshot()
	resp := layerConfigJSON{
		Template:   snap.Template,
		Parameters: make([]paramJSON, 0, len(snap.Params)),
		Offline:    ldr.Offline(),
	}
	for _, p := range snap.Params {
		resp.Parameters = append(resp.Parameters, paramJSON{Name: p.Name, Value: p.Value})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) handleTemplate(w http.ResponseWriter, r *http.Request, ldr *loader.Loader) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Template string `json:"template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Templates are accepted verbatim; a template without placeholders is
	// legal and simply yields the same URL for every tile.
	ldr.SetTemplate(req.Template)
	h.logger.Info("updated url template", zap.String("template", req.Template))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleParameters(w http.ResponseWriter, r *http.Request, ldr *loader.Loader) {
	switch r.Method {
	case http.MethodGet:
		snap := ldr.Snapshot()
		params := make([]paramJSON, 0, len(snap.Params))
		for _, p := range snap.Params {
			params = append(params, paramJSON{Name: p.Name, Value: p.Value})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(params)

	case http.MethodPut:
		var req []paramJSON
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		params := make([]source.Param, 0, len(req))
		for _, p := range req {
			params = append(params, source.Param{Name: p.Name, Value: p.Value})
		}
		ldr.SetParameters(params)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodPost:
		var req paramJSON
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		ldr.AddParameter(req.Name, req.Value)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		ldr.ClearParameters()
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) handleParameter(w http.ResponseWriter, r *http.Request, ldr *loader.Loader, name string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Removing an absent parameter is a no-op, not an error
	ldr.RemoveParameter(name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleOffline(w http.ResponseWriter, r *http.Request, ldr *loader.Loader) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"offline": ldr.Offline()})

	case http.MethodPut:
		var req struct {
			Offline bool `json:"offline"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		ldr.SetOffline(req.Offline)
		h.logger.Info("offline mode changed", zap.Bool("offline", req.Offline))
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Not for real production use due to potential spoofing
// but it's fine for a demo
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
