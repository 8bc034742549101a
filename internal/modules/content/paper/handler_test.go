package paper

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h *harness) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(h.svc).RegisterRoutes(r.Group("/api"))
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHandler_EndToEnd(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h)

	w := do(t, r, http.MethodPost, "/api/papers", gin.H{
		"title":         "X",
		"abstract":      strings.Repeat("a", 60),
		"ipfsCid":       "Qm1",
		"walletAddress": "0xAA",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	paper := decode(t, w)
	assert.Equal(t, float64(1), paper["id"])
	assert.Equal(t, "submitted", paper["status"])
	h.dispatcher.Wait()
	assert.Equal(t, 3, h.balance(t, "0xaa"))

	for _, wallet := range []string{"0xbb", "0xcc"} {
		_, err := h.svc.identities.Resolve(t.Context(), wallet)
		require.NoError(t, err)
	}

	w = do(t, r, http.MethodPost, "/api/papers/1/reviews", reviewOf("0xbb", 4))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	review := decode(t, w)
	assert.Equal(t, float64(1), review["id"])
	assert.NotEmpty(t, review["ipfsCid"])
	assert.Equal(t, 5, h.balance(t, "0xbb"))

	w = do(t, r, http.MethodGet, "/api/papers/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "submitted", decode(t, w)["status"])

	w = do(t, r, http.MethodPost, "/api/papers/1/reviews", reviewOf("0xcc", 5))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["id"])

	w = do(t, r, http.MethodGet, "/api/papers/1", nil)
	got := decode(t, w)
	assert.Equal(t, "reviewed", got["status"])
	assert.Equal(t, float64(2), got["reviewCount"])
	assert.Equal(t, float64(2), got["viewCount"])

	h.model.setRating(8)
	w = do(t, r, http.MethodPost, "/api/papers/1/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	analyzed := decode(t, w)
	assert.Equal(t, "verified", analyzed["status"])
	assert.Equal(t, true, analyzed["aiVerified"])
	assert.Equal(t, 13, h.balance(t, "0xaa"))

	w = do(t, r, http.MethodGet, "/api/papers/1/reviews", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reviews []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reviews))
	require.Len(t, reviews, 2)
	assert.Equal(t, float64(5), reviews[0]["rating"])

	w = do(t, r, http.MethodGet, "/api/papers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var papers []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &papers))
	require.Len(t, papers, 1)
	assert.Equal(t, "user_aa", papers[0]["author"].(map[string]any)["username"])
}

func TestHandler_SubmitValidation(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h)

	w := do(t, r, http.MethodPost, "/api/papers", gin.H{
		"title":         "X",
		"abstract":      "too short",
		"walletAddress": "0xaa",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Invalid request data", body["message"])

	fields := make([]string, 0)
	for _, e := range body["errors"].([]any) {
		fields = append(fields, e.(map[string]any)["field"].(string))
	}
	assert.ElementsMatch(t, []string{"abstract", "ipfsCid"}, fields)

	w = do(t, r, http.MethodGet, "/api/papers", nil)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestHandler_InvalidSignature(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h)

	dto := submission("0x7e5f4552091a69125d5dfcb7b8c2659029395bdf")
	dto.Signature = "0x" + strings.Repeat("11", 65)
	w := do(t, r, http.MethodPost, "/api/papers", dto)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_ReviewErrors(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h)

	w := do(t, r, http.MethodPost, "/api/papers", submission("0xaa"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	h.dispatcher.Wait()

	cases := []struct {
		name   string
		path   string
		body   CreateReviewDTO
		status int
	}{
		{"unknown paper", "/api/papers/9/reviews", reviewOf("0xaa", 3), http.StatusNotFound},
		{"unknown reviewer", "/api/papers/1/reviews", reviewOf("0xee", 3), http.StatusNotFound},
		{"self review", "/api/papers/1/reviews", reviewOf("0xaa", 3), http.StatusBadRequest},
		{"rating out of range", "/api/papers/1/reviews", reviewOf("0xaa", 6), http.StatusBadRequest},
		{"bad id", "/api/papers/abc/reviews", reviewOf("0xaa", 3), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestHandler_NotFound(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h)

	w := do(t, r, http.MethodGet, "/api/papers/5", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Paper not found", decode(t, w)["message"])

	w = do(t, r, http.MethodPost, "/api/papers/5/analyze", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/papers/5/reviews", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}
