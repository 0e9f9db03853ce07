// Package ankiconnect implements a typed client for the AnkiConnect HTTP
// API (https://foosoft.net/projects/anki-connect/).
//
// Every action is a single JSON POST of {action, version, params, key} and
// a single {result, error} response; the package holds no state between
// calls and never caches anything the endpoint returns. Anki is the sole
// source of truth: card and note IDs are treated as opaque, and result
// decoding deliberately ignores fields this client does not know about so
// newer AnkiConnect releases do not break it.
package ankiconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultVersion is the AnkiConnect API version this client speaks.
const DefaultVersion = 6

// Client issues AnkiConnect actions over HTTP. It is safe for concurrent
// use; the embedded http.Client pools connections on its own.
type Client struct {
	endpoint string
	key      string
	version  int
	http     *http.Client
	logger   *zap.Logger
}

// NewClient builds a client for the given endpoint. apiKey may be empty;
// it is then omitted from the request envelope. A non-positive version
// falls back to DefaultVersion.
func NewClient(endpoint, apiKey string, version int, timeout time.Duration, logger *zap.Logger) *Client {
	if version <= 0 {
		version = DefaultVersion
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		key:      apiKey,
		version:  version,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// envelope is the AnkiConnect request body.
type envelope struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
	Key     string `json:"key,omitempty"`
}

// Invoke posts a single action and returns the raw result payload. The
// response must contain both the result and error keys; anything else is a
// protocol error. A non-null error field becomes a KindRemoteAction Error
// carrying the remote message verbatim. No retries are attempted.
func (c *Client) Invoke(ctx context.Context, action string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(envelope{
		Action:  action,
		Version: c.version,
		Params:  params,
		Key:     c.key,
	})
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("encoding %s params", action), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("building %s request", action), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("invoking AnkiConnect action", zap.String("action", action))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, translateSendFailure(action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:    KindTransport,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("%s returned HTTP %d", action, resp.StatusCode),
		}
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return nil, &Error{Kind: KindProtocol, Message: fmt.Sprintf("decoding %s response", action), Err: err}
	}
	result, haveResult := fields["result"]
	remoteErr, haveErr := fields["error"]
	if !haveResult || !haveErr {
		return nil, &Error{Kind: KindProtocol, Message: fmt.Sprintf("%s response is missing the result/error envelope", action)}
	}
	if string(remoteErr) != "null" {
		var msg string
		if err := json.Unmarshal(remoteErr, &msg); err != nil {
			// Non-string error payloads still pass through as text.
			msg = string(remoteErr)
		}
		return nil, &Error{Kind: KindRemoteAction, Message: msg}
	}
	return result, nil
}

// translateSendFailure maps an http.Client.Do error onto the taxonomy.
// Deadline overruns (per-call context or client timeout) become
// KindTimeout; everything else, including cancellation and refused
// connections, is KindConnectivity.
func translateSendFailure(action string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: fmt.Sprintf("%s timed out", action), Err: err}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return &Error{Kind: KindTimeout, Message: fmt.Sprintf("%s timed out", action), Err: err}
	}
	return &Error{Kind: KindConnectivity, Message: fmt.Sprintf("%s: AnkiConnect is unreachable", action), Err: err}
}
