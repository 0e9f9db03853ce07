package ankiconnect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points a short-timeout client at an httptest server running
// the given handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "", DefaultVersion, 5*time.Second, nil)
}

func respond(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if _, err := io.WriteString(w, body); err != nil {
		t.Errorf("writing response: %v", err)
	}
}

func TestInvokeResultPassthrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{"result": {"anything": [1, 2, 3], "nested": {"x": true}}, "error": null}`)
	})

	raw, err := c.Invoke(context.Background(), "someAction", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"anything": [1, 2, 3], "nested": {"x": true}}`, string(raw))
}

func TestInvokeEnvelope(t *testing.T) {
	var captured map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		respond(t, w, `{"result": null, "error": null}`)
	})

	_, err := c.Invoke(context.Background(), "deckNames", nil)
	require.NoError(t, err)

	assert.Equal(t, `"deckNames"`, string(captured["action"]))
	assert.Equal(t, "6", string(captured["version"]))
	// Empty key and nil params stay off the wire entirely.
	assert.NotContains(t, captured, "key")
	assert.NotContains(t, captured, "params")
}

func TestInvokeSendsAPIKey(t *testing.T) {
	var captured map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		respond(t, w, `{"result": null, "error": null}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", DefaultVersion, 5*time.Second, nil)
	_, err := c.Invoke(context.Background(), "sync", nil)
	require.NoError(t, err)
	assert.Equal(t, `"secret-key"`, string(captured["key"]))
}

func TestInvokeRemoteError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{"result": null, "error": "deck was not found: NoSuchDeck"}`)
	})

	_, err := c.Invoke(context.Background(), "getDeckStats", nil)
	require.Error(t, err)
	assert.Equal(t, KindRemoteAction, KindOf(err))
	assert.Equal(t, "deck was not found: NoSuchDeck", MessageOf(err))
}

func TestInvokeTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Invoke(context.Background(), "deckNames", nil)
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusInternalServerError, perr.Status)
}

func TestInvokeMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `this is not json`)
	})

	_, err := c.Invoke(context.Background(), "deckNames", nil)
	require.Error(t, err)
	assert.Equal(t, KindProtocol, KindOf(err))
}

func TestInvokeMissingEnvelopeKeys(t *testing.T) {
	for name, body := range map[string]string{
		"no error key":  `{"result": []}`,
		"no result key": `{"error": null}`,
		"empty object":  `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				respond(t, w, body)
			})

			_, err := c.Invoke(context.Background(), "deckNames", nil)
			require.Error(t, err)
			assert.Equal(t, KindProtocol, KindOf(err))
		})
	}
}

func TestInvokeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, "", DefaultVersion, 100*time.Millisecond, nil)

	start := time.Now()
	_, err := c.Invoke(context.Background(), "sync", nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	// The deadline bounds the wait; well under the handler's block time.
	assert.Less(t, elapsed, 2*time.Second)
}

func TestInvokeContextDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, "", DefaultVersion, 5*time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Invoke(ctx, "sync", nil)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestInvokeConnectivityError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // Nothing listens here anymore.

	c := NewClient(url, "", DefaultVersion, 5*time.Second, nil)
	_, err := c.Invoke(context.Background(), "version", nil)
	require.Error(t, err)
	assert.Equal(t, KindConnectivity, KindOf(err))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(io.EOF))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestValidationf(t *testing.T) {
	err := Validationf("missing required parameter: %s", "query")
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "missing required parameter: query", MessageOf(err))
}
