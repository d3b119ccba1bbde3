package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler возвращает тело запроса с тем же Content-Type.
func echoHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/plain"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func compress(t *testing.T, s string) io.Reader {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return &buf
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()

	var src io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer zr.Close()
		src = zr
	}

	out, err := io.ReadAll(src)
	require.NoError(t, err)
	return string(out)
}

func TestGzipMiddleware(t *testing.T) {
	cases := []struct {
		name           string
		body           string
		contentType    string
		acceptGzip     bool
		compressedBody bool
		wantEncoding   string
	}{
		{
			name:         "json response is compressed",
			body:         `{"house_id":"house-1"}`,
			contentType:  "application/json",
			acceptGzip:   true,
			wantEncoding: "gzip",
		},
		{
			name:         "html response is compressed",
			body:         "<p>danfe</p>",
			contentType:  "text/html",
			acceptGzip:   true,
			wantEncoding: "gzip",
		},
		{
			name:        "plain text is left as is",
			body:        "pong",
			contentType: "text/plain",
			acceptGzip:  true,
		},
		{
			name:        "client without gzip support",
			body:        `{"reason":"client request"}`,
			contentType: "application/json",
		},
		{
			name:           "compressed request body is unpacked",
			body:           `{"issuer_id":"issuer-1"}`,
			contentType:    "application/json",
			acceptGzip:     true,
			compressedBody: true,
			wantEncoding:   "gzip",
		},
	}

	h := GzipMiddleware(http.HandlerFunc(echoHandler))

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reqBody io.Reader = strings.NewReader(tc.body)
			if tc.compressedBody {
				reqBody = compress(t, tc.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/sales", reqBody)
			req.Header.Set("Content-Type", tc.contentType)
			if tc.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip")
			}
			if tc.compressedBody {
				req.Header.Set("Content-Encoding", "gzip")
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, tc.contentType, res.Header.Get("Content-Type"))
			assert.Equal(t, tc.wantEncoding, res.Header.Get("Content-Encoding"))
			assert.Equal(t, tc.body, readBody(t, res))
		})
	}
}

func TestGzipMiddleware_ErrorResponseNotCompressed(t *testing.T) {
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"house is not available"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/sales", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.JSONEq(t, `{"error":"house is not available"}`, rec.Body.String())
}

func TestGzipMiddleware_InvalidCompressedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
