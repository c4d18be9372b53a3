package fetch

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch_Success(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte("<rss/>"))
	}))
	defer srv.Close()

	res := NewClient(time.Second, WithUserAgent("test-agent")).Fetch(context.Background(), srv.URL)

	require.True(t, res.OK())
	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, []byte("<rss/>"), res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NoError(t, res.Cause)
	assert.Equal(t, "test-agent", gotUA)
	assert.Contains(t, gotAccept, "application/rss+xml")
}

func TestClient_Fetch_Non2xxIsTransient(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		res := NewClient(time.Second).Fetch(context.Background(), srv.URL)
		srv.Close()

		assert.Equal(t, TransientFailure, res.Outcome, "status %d", status)
		assert.Equal(t, status, res.StatusCode)
		assert.Nil(t, res.Body)
		assert.Error(t, res.Cause)
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	res := NewClient(50 * time.Millisecond).Fetch(context.Background(), srv.URL)

	assert.Equal(t, TransientFailure, res.Outcome)
	assert.Error(t, res.Cause)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_Fetch_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	res := NewClient(time.Second).Fetch(context.Background(), "http://"+addr+"/feed")

	assert.Equal(t, TransientFailure, res.Outcome)
	assert.Equal(t, 0, res.StatusCode)
	assert.Error(t, res.Cause)
}

func TestClient_Fetch_BadURL(t *testing.T) {
	res := NewClient(time.Second).Fetch(context.Background(), "://nope")
	assert.Equal(t, TransientFailure, res.Outcome)
	assert.Error(t, res.Cause)
}

func TestClient_Fetch_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", MaxBodySize+1)))
	}))
	defer srv.Close()

	res := NewClient(5 * time.Second).Fetch(context.Background(), srv.URL)
	assert.Equal(t, TransientFailure, res.Outcome)
	assert.Contains(t, res.Cause.Error(), "exceeds")
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "transient_failure", TransientFailure.String())
}
