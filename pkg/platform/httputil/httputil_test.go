package httputil

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "receiptledger/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeUnauthorized:      http.StatusForbidden,
		dErrors.CodeUnauthenticated:   http.StatusUnauthorized,
		dErrors.CodeWrongState:        http.StatusConflict,
		dErrors.CodeExpired:           http.StatusConflict,
		dErrors.CodeAlreadyRegistered: http.StatusConflict,
		dErrors.CodeNotFound:          http.StatusNotFound,
		dErrors.CodeNotRegistered:     http.StatusNotFound,
		dErrors.CodeInvalidInput:      http.StatusBadRequest,
		dErrors.CodeInvalidAmount:     http.StatusUnprocessableEntity,
		dErrors.CodeSelfReceipt:       http.StatusUnprocessableEntity,
		dErrors.CodeFutureDate:        http.StatusUnprocessableEntity,
		dErrors.CodeTimeout:           http.StatusGatewayTimeout,
		dErrors.CodeRateLimited:       http.StatusTooManyRequests,
		dErrors.CodeInternal:          http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, StatusFor(code), "code %s", code)
	}
}

type sampleRequest struct {
	Name   string `json:"name" validate:"required,max=8"`
	Reason string `json:"reason"`
}

func (r *sampleRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r *sampleRequest) Validate() error {
	if r.Reason == "forbidden" {
		return dErrors.New(dErrors.CodeInvalidInput, "reason not allowed")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	decode := func(body string) (*sampleRequest, *httptest.ResponseRecorder) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		req, _ := DecodeAndPrepare[sampleRequest](w, r, logger, r.Context(), "req-1")
		return req, w
	}

	t.Run("normalizes before validating", func(t *testing.T) {
		req, _ := decode(`{"name":"  shop  "}`)
		require.NotNil(t, req)
		assert.Equal(t, "shop", req.Name)
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		req, w := decode(`{"name":`)
		assert.Nil(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		req, w := decode(`{"name":"shop","extra":1}`)
		assert.Nil(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("struct tags are enforced", func(t *testing.T) {
		req, w := decode(`{"name":"much too long"}`)
		assert.Nil(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation_error")
	})

	t.Run("request Validate error keeps its code", func(t *testing.T) {
		req, w := decode(`{"name":"shop","reason":"forbidden"}`)
		assert.Nil(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_input")
	})
}
