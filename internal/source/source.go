package source

import (
	"net/url"
	"strconv"
	"strings"
	"sync"

	"tilegate/internal/tile"
)

// Param is a single query parameter appended to built tile URLs.
type Param struct {
	Name  string
	Value string
}

// Source holds the mutable fetch target of a tile layer: the URL template and
// the ordered query parameters. All mutators are safe to call while fetches
// are in flight; readers take a Snapshot so a single URL build never observes
// a half-applied update.
//
// Templates use the placeholders {z}, {x} and {y} (case-sensitive). Invalid
// or placeholder-free templates are accepted verbatim. Parameter insertion
// order is preserved in built URLs so the same configuration always produces
// byte-identical URLs. Empty parameter names are accepted and encoded
// literally.
type Source struct {
	mu       sync.RWMutex
	template string
	params   []Param
}

func New(template string) *Source {
	return &Source{template: template}
}

// SetTemplate replaces the URL template. The replacement is atomic: in-flight
// URL builds keep the snapshot they started with.
func (s *Source) SetTemplate(template string) {
	s.mu.Lock()
	s.template = template
	s.mu.Unlock()
}

// AddParameter inserts a parameter or, if the name already exists, overwrites
// its value in place without changing its position.
func (s *Source) AddParameter(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.params {
		if s.params[i].Name == name {
			s.params[i].Value = value
			return
		}
	}
	s.params = append(s.params, Param{Name: name, Value: value})
}

// SetParameters atomically discards the current parameter set and installs
// the given one.
func (s *Source) SetParameters(params []Param) {
	replacement := make([]Param, len(params))
	copy(replacement, params)

	s.mu.Lock()
	s.params = replacement
	s.mu.Unlock()
}

// RemoveParameter deletes a parameter by name. Removing an absent name is a
// no-op.
func (s *Source) RemoveParameter(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.params {
		if s.params[i].Name == name {
			s.params = append(s.params[:i], s.params[i+1:]...)
			return
		}
	}
}

// ClearParameters removes all parameters.
func (s *Source) ClearParameters() {
	s.mu.Lock()
	s.params = nil
	s.mu.Unlock()
}

// Snapshot returns an immutable copy of the current template and parameters.
// Every tile request takes one snapshot up front and builds its URL from it,
// so concurrent mutation either fully applies to the next request or not at
// all.
func (s *Source) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	params := make([]Param, len(s.params))
	copy(params, s.params)
	return Snapshot{Template: s.template, Params: params}
}

// Snapshot is a frozen view of a Source's configuration.
type Snapshot struct {
	Template string
	Params   []Param
}

// URL builds the request URL for a tile: placeholders are substituted with
// the decimal coordinate values and parameters are appended in insertion
// order, query-encoded. Builds are deterministic, so the result doubles as
// the tile's cache key.
func (s Snapshot) URL(key tile.Key) string {
	built := strings.NewReplacer(
		"{z}", strconv.Itoa(key.Z),
		"{x}", strconv.Itoa(key.X),
		"{y}", strconv.Itoa(key.Y),
	).Replace(s.Template)

	if len(s.Params) == 0 {
		return built
	}

	var b strings.Builder
	b.WriteString(built)
	for i, p := range s.Params {
		if i == 0 && !strings.Contains(built, "?") {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
