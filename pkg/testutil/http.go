// Package testutil carries shared helpers for handler and integration
// tests: request construction and decoding of success and error bodies.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewJSONRequest builds a request whose body is the JSON encoding of body.
// A nil body yields a bodyless request.
func NewJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "marshal request body")
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest runs req through the handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// DecodeJSON unmarshals the recorded response body into T.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v),
		"decode response body: %s", rr.Body.String())
	return v
}

// ErrorEnvelope mirrors the JSON error body the error translator writes,
// so failed requests can be asserted without reaching into raw maps.
type ErrorEnvelope struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	StatusCode    int    `json:"status_code"`
	CorrelationID string `json:"correlation_id"`
}

// DecodeError unmarshals the error envelope of a failed request.
func DecodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	return DecodeJSON[ErrorEnvelope](t, rr)
}
