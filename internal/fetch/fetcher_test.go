package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte("tile-bytes"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(5*time.Second, "tilegate-test/1.0")
	data, err := f.Fetch(context.Background(), server.URL+"/3/1/2.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("tile-bytes"), data)
}

func TestHTTPFetcherNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := NewHTTPFetcher(5*time.Second, "tilegate-test/1.0")
	_, err := f.Fetch(context.Background(), server.URL)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.NotFound())
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestHTTPFetcherServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewHTTPFetcher(5*time.Second, "tilegate-test/1.0")
	_, err := f.Fetch(context.Background(), server.URL)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.False(t, fetchErr.NotFound())
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
}

func TestHTTPFetcherConnectionFailure(t *testing.T) {
	// a server that is already gone
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	f := NewHTTPFetcher(time.Second, "tilegate-test/1.0")
	_, err := f.Fetch(context.Background(), url)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 0, fetchErr.StatusCode)
	assert.Error(t, fetchErr.Unwrap())
}

func TestHTTPFetcherHonorsContext(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	f := NewHTTPFetcher(time.Minute, "tilegate-test/1.0")
	_, err := f.Fetch(ctx, server.URL)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, errors.Is(err, context.Canceled))
}
