package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/spf13/cobra"
)

// captureStdout redirects os.Stdout to a pipe and returns a function
// that restores stdout and returns the captured output.
// Uses a goroutine to read concurrently, avoiding pipe buffer deadlocks.
func captureStdout(t *testing.T) func() string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	return func() string {
		_ = w.Close()
		<-done
		os.Stdout = old
		return buf.String()
	}
}

// staticTokens satisfies graph.TokenProvider without touching the identity
// platform.
type staticTokens struct{}

func (staticTokens) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "test-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

// newTestRoot builds a root command with an isolated config dir and a
// pre-set token provider, pointed at the given directory fixture URL.
func newTestRoot(t *testing.T, graphURL string, args ...string) *cobra.Command {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	rootCmd, st := newRootCmd()
	st.tokens = staticTokens{}
	rootCmd.SetArgs(append([]string{"--graph-url", graphURL}, args...))
	return rootCmd
}

// capturedRequest holds details captured from an incoming HTTP request.
type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// requestRecorder is a thread-safe recorder for HTTP requests received by
// httptest servers.
type requestRecorder struct {
	mu       sync.Mutex
	requests []capturedRequest
}

func (r *requestRecorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	body, _ := io.ReadAll(req.Body)
	defer func() { _ = req.Body.Close() }()

	r.requests = append(r.requests, capturedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Body:   string(body),
	})
}

// mutations returns the captured requests that would change the directory.
func (r *requestRecorder) mutations() []capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []capturedRequest
	for _, req := range r.requests {
		if req.Method == http.MethodPost || req.Method == http.MethodDelete {
			out = append(out, req)
		}
	}
	return out
}
