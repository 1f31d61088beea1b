package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medscribe/internal/agent"
)

type stubService struct {
	result    *ProcessingResult
	err       error
	urlCalls  int
	fileCalls int
}

func (s *stubService) ProcessURL(ctx context.Context, mediaURL string) (*ProcessingResult, error) {
	s.urlCalls++
	return s.result, s.err
}

func (s *stubService) ProcessAudioFile(ctx context.Context, path, mimeType string) (*ProcessingResult, error) {
	s.fileCalls++
	return s.result, s.err
}

func (s *stubService) RecentResults(ctx context.Context, limit int) ([]ResultRecord, error) {
	return nil, ErrHistoryUnavailable
}

func newTestRouter(t *testing.T, svc Service, apiKeyConfigured bool) http.Handler {
	t.Helper()
	h := NewHandler(svc, t.TempDir(), apiKeyConfigured, zap.NewNop())
	r := chi.NewRouter()
	RegisterRoutes(r, h)
	return r
}

func minimalResult() *ProcessingResult {
	result, _ := Normalize([]byte(`{"summary": "ok"}`), nil)
	return result
}

func multipartBody(t *testing.T, fieldName, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &stubService{}, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "healthy", payload["status"])
	assert.Equal(t, true, payload["api_key_configured"])
}

func TestProcessURLSuccess(t *testing.T) {
	svc := &stubService{result: minimalResult()}
	router := newTestRouter(t, svc, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/process-url", strings.NewReader(`{"url": "https://example.com/v"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.urlCalls)

	var result ProcessingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "ok", result.Summary)
}

func TestProcessURLMissingURL(t *testing.T) {
	svc := &stubService{result: minimalResult()}
	router := newTestRouter(t, svc, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/process-url", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, svc.urlCalls)
}

func TestProcessURLNotConfigured(t *testing.T) {
	svc := &stubService{err: agent.ErrNotConfigured}
	router := newTestRouter(t, svc, false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/process-url", strings.NewReader(`{"url": "https://example.com/v"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "GEMINI_API_KEY")
}

func TestProcessAudioRejectsUnsupportedType(t *testing.T) {
	svc := &stubService{result: minimalResult()}
	router := newTestRouter(t, svc, true)

	body, contentType := multipartBody(t, "file", "report.pdf", "application/pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest("POST", "/process-audio", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Rejected before any collaborator invocation.
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported audio format")
	assert.Equal(t, 0, svc.fileCalls)
}

func TestProcessAudioAcceptsAllowedType(t *testing.T) {
	svc := &stubService{result: minimalResult()}
	router := newTestRouter(t, svc, true)

	body, contentType := multipartBody(t, "file", "recording.webm", "audio/webm", []byte("fake-audio"))
	req := httptest.NewRequest("POST", "/process-audio", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.fileCalls)
}

func TestProcessAudioExtensionFallback(t *testing.T) {
	svc := &stubService{result: minimalResult()}
	router := newTestRouter(t, svc, true)

	// Unknown content type, but the filename extension is on the allow-list.
	body, contentType := multipartBody(t, "file", "voice.m4a", "application/octet-stream", []byte("fake-audio"))
	req := httptest.NewRequest("POST", "/process-audio", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.fileCalls)
}

func TestProcessAudioRejectsOversizedUpload(t *testing.T) {
	svc := &stubService{result: minimalResult()}
	router := newTestRouter(t, svc, true)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="long.mp3"`)
	header.Set("Content-Type", "audio/mpeg")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	chunk := bytes.Repeat([]byte("a"), 1<<20)
	for written := 0; written <= maxUploadBytes; written += len(chunk) {
		_, err = part.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/process-audio", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, svc.fileCalls)
}

func TestProcessAudioMissingFile(t *testing.T) {
	svc := &stubService{result: minimalResult()}
	router := newTestRouter(t, svc, true)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("other", "value"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/process-audio", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, svc.fileCalls)
}

func TestUpdateTaskAcknowledges(t *testing.T) {
	router := newTestRouter(t, &stubService{}, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/tasks/abc12345/update", strings.NewReader(`{"task_id": "abc12345", "status": "COMPLETED"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "abc12345", payload["task_id"])
	assert.Equal(t, "COMPLETED", payload["new_status"])
}

func TestRecentResultsUnavailable(t *testing.T) {
	router := newTestRouter(t, &stubService{}, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/results/recent", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
