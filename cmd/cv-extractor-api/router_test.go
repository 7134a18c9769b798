package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumia/cv-extractor/cmd/cv-extractor-api/handlers"
	"github.com/resumia/cv-extractor/internal/config"
	"github.com/resumia/cv-extractor/internal/observability"
)

// testRouter builds the full router with sh scripts standing in for the
// extraction and anonymization workers.
func testRouter(t *testing.T, extractScript, anonScript string) (http.Handler, string) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Scratch.Dir = t.TempDir()
	cfg.Workers.Extraction = config.WorkerConfig{Command: "sh", Args: []string{"-c", extractScript}}
	cfg.Workers.Anonymization = config.WorkerConfig{Command: "sh", Args: []string{"-c", anonScript}}
	cfg.Workers.Timeout = 10 * time.Second

	router, err := NewRouter(observability.Nop(), cfg)
	require.NoError(t, err)
	return router, cfg.Scratch.Dir
}

// uploadRequest builds a multipart POST /extract-text request with one file
// field carrying the given declared content type.
func uploadRequest(t *testing.T, filename, contentType string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract-text", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestExtractText_SuccessWithAnonymization(t *testing.T) {
	router, scratchDir := testRouter(t,
		`echo "John Doe, Software Engineer"`,
		`cat >/dev/null; echo "[NAME], Software Engineer"`)

	content := bytes.Repeat([]byte("a"), 10*1024)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "cv.pdf", "application/pdf", content))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handlers.ExtractionResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "[NAME], Software Engineer", resp.Text)
	assert.Equal(t, "John Doe, Software Engineer", resp.RawText)
	assert.Equal(t, "cv.pdf", resp.Filename)
	assert.Equal(t, int64(10240), resp.Size)

	assertScratchEmpty(t, scratchDir)
}

func TestExtractText_AnonymizationFailureReturnsRawText(t *testing.T) {
	router, scratchDir := testRouter(t,
		`echo "John Doe, Software Engineer"`,
		`exit 1`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "cv.pdf", "application/pdf", []byte("pdf")))

	require.Equal(t, http.StatusOK, rec.Code, "anonymization failure must not surface as an error")

	var resp handlers.ExtractionResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "John Doe, Software Engineer", resp.Text)
	assert.Equal(t, resp.RawText, resp.Text)

	assertScratchEmpty(t, scratchDir)
}

func TestExtractText_ExtractionFailureIs500AndCleansUp(t *testing.T) {
	router, scratchDir := testRouter(t,
		`echo "corrupt PDF" >&2; exit 1`,
		`cat`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "cv.pdf", "application/pdf", []byte("pdf")))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp handlers.ErrorResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Message)
	assert.NotContains(t, resp.Message, "corrupt PDF", "worker stderr must not leak to callers")

	assertScratchEmpty(t, scratchDir)
}

func TestExtractText_WrongTypeIs400WithoutInvokingWorkers(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "invoked")
	router, _ := testRouter(t,
		fmt.Sprintf("touch %s; echo text", marker),
		fmt.Sprintf("touch %s; cat", marker))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "cv.doc", "application/msword", []byte("doc")))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp handlers.ErrorResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Message)

	_, err := os.Stat(marker)
	assert.True(t, os.IsNotExist(err), "no worker may run for a rejected upload")
}

func TestExtractText_ScratchWriteFailureIs500(t *testing.T) {
	router, scratchDir := testRouter(t, `echo text`, `cat`)

	// Tearing the scratch directory out from under the service makes the
	// temp write fail on the next request.
	require.NoError(t, os.RemoveAll(scratchDir))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "cv.pdf", "application/pdf", []byte("pdf")))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp handlers.ErrorResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed to store uploaded file", resp.Message)
}

func TestExtractText_BodyOverLimitReportsSize(t *testing.T) {
	router, _ := testRouter(t, `echo text`, `cat`)

	// Well past the limit plus multipart slack, so MaxBytesReader trips
	// during form parsing rather than pipeline validation.
	content := bytes.Repeat([]byte("a"), 6*1024*1024)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "cv.pdf", "application/pdf", content))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp handlers.ErrorResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "maximum size")
}

func TestExtractText_OversizeUploadIs400(t *testing.T) {
	router, scratchDir := testRouter(t, `echo text`, `cat`)

	content := bytes.Repeat([]byte("a"), 5*1024*1024+1)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "cv.pdf", "application/pdf", content))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assertScratchEmpty(t, scratchDir)
}

func TestExtractText_MissingFileFieldIs400(t *testing.T) {
	router, _ := testRouter(t, `echo text`, `cat`)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("something", "else"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract-text", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractText_NonMultipartBodyIs400(t *testing.T) {
	router, _ := testRouter(t, `echo text`, `cat`)

	req := httptest.NewRequest(http.MethodPost, "/extract-text", bytes.NewBufferString(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	router, _ := testRouter(t, `echo text`, `cat`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory must be empty after the request")
}
