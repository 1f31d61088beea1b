package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// ErrNotConfigured is returned before any network call when the API key is
// missing. The HTTP layer maps it to a configuration error, distinct from a
// processing failure.
var ErrNotConfigured = errors.New("GEMINI_API_KEY not configured")

// Client is the external multimodal inference collaborator. Both methods
// return the raw JSON document produced by the model under the response
// schema; callers are responsible for normalizing it.
type Client interface {
	GenerateFromURL(ctx context.Context, mediaURL string) (json.RawMessage, error)
	GenerateFromFile(ctx context.Context, path, mimeType string) (json.RawMessage, error)
}

// Config holds the collaborator settings.
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type geminiClient struct {
	httpClient   *resty.Client
	apiKey       string
	model        string
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

// NewGeminiClient creates the inference client. It is constructed once at
// process start and shared by all requests.
func NewGeminiClient(cfg Config, logger *zap.Logger) Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 2 * time.Minute
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(120 * time.Second). // audio transcription can take a while
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")

	return &geminiClient{
		httpClient:   httpClient,
		apiKey:       cfg.APIKey,
		model:        model,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}
}

// --- wire types ---

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *Schema `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type remoteFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
}

type uploadResponse struct {
	File remoteFile `json:"file"`
}

const (
	fileStateProcessing = "PROCESSING"
	fileStateFailed     = "FAILED"
)

// GenerateFromURL asks the model to process media referenced by a remote URL.
func (c *geminiClient) GenerateFromURL(ctx context.Context, mediaURL string) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	return c.generate(ctx, part{FileData: &fileData{FileURI: mediaURL}})
}

// GenerateFromFile uploads a local media file, waits for the remote side to
// finish ingesting it, runs generation, and best-effort deletes the upload.
func (c *geminiClient) GenerateFromFile(ctx context.Context, path, mimeType string) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	uploaded, err := c.uploadFile(ctx, path, mimeType)
	if err != nil {
		return nil, err
	}
	defer c.deleteFile(uploaded.Name)

	uploaded, err = c.waitForFile(ctx, uploaded)
	if err != nil {
		return nil, err
	}

	return c.generate(ctx, part{FileData: &fileData{MimeType: uploaded.MimeType, FileURI: uploaded.URI}})
}

func (c *geminiClient) generate(ctx context.Context, media part) (json.RawMessage, error) {
	request := generateRequest{
		Contents: []content{{
			Parts: []part{media, {Text: MedicalPrompt}},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   ResponseSchema(),
		},
	}

	var (
		response generateResponse
		errBody  apiError
	)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		SetResult(&response).
		SetError(&errBody).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", c.model))
	if err != nil {
		return nil, fmt.Errorf("inference call failed: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("inference API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", errBody.Error.Message),
		)
		return nil, fmt.Errorf("inference API error: %s (status %d)", errBody.Error.Message, resp.StatusCode())
	}

	if len(response.Candidates) == 0 {
		return nil, errors.New("inference API returned no candidates")
	}

	var text strings.Builder
	for _, p := range response.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if text.Len() == 0 {
		return nil, errors.New("inference API returned an empty response")
	}

	return json.RawMessage(text.String()), nil
}

func (c *geminiClient) uploadFile(ctx context.Context, path, mimeType string) (remoteFile, error) {
	metadata, err := json.Marshal(map[string]any{
		"file": map[string]any{"display_name": filepath.Base(path)},
	})
	if err != nil {
		return remoteFile{}, err
	}

	var result uploadResponse
	var errBody apiError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetHeader("X-Goog-Upload-Protocol", "multipart").
		SetMultipartField("metadata", "", "application/json", strings.NewReader(string(metadata))).
		SetFile("file", path).
		SetResult(&result).
		SetError(&errBody).
		Post("/upload/v1beta/files")
	if err != nil {
		return remoteFile{}, fmt.Errorf("media upload failed: %w", err)
	}
	if resp.IsError() {
		return remoteFile{}, fmt.Errorf("media upload error: %s (status %d)", errBody.Error.Message, resp.StatusCode())
	}

	c.logger.Info("media uploaded",
		zap.String("remote_name", result.File.Name),
		zap.String("mime_type", mimeType),
		zap.String("state", result.File.State),
	)
	return result.File, nil
}

// waitForFile polls the remote ingestion state at a fixed interval until the
// file leaves PROCESSING, the deadline expires, or the context is canceled.
func (c *geminiClient) waitForFile(ctx context.Context, f remoteFile) (remoteFile, error) {
	deadline := time.Now().Add(c.pollTimeout)
	for f.State == fileStateProcessing {
		if time.Now().After(deadline) {
			return f, fmt.Errorf("media ingestion did not finish within %s", c.pollTimeout)
		}
		select {
		case <-ctx.Done():
			return f, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		var err error
		f, err = c.getFile(ctx, f.Name)
		if err != nil {
			return f, err
		}
	}
	if f.State == fileStateFailed {
		return f, errors.New("remote media ingestion failed")
	}
	return f, nil
}

func (c *geminiClient) getFile(ctx context.Context, name string) (remoteFile, error) {
	var result remoteFile
	var errBody apiError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetResult(&result).
		SetError(&errBody).
		Get("/v1beta/" + name)
	if err != nil {
		return remoteFile{}, fmt.Errorf("media state check failed: %w", err)
	}
	if resp.IsError() {
		return remoteFile{}, fmt.Errorf("media state check error: %s (status %d)", errBody.Error.Message, resp.StatusCode())
	}
	return result, nil
}

// deleteFile removes the uploaded artifact. Cleanup is best-effort and never
// surfaces to the caller.
func (c *geminiClient) deleteFile(name string) {
	if name == "" {
		return
	}
	_, err := c.httpClient.R().
		SetQueryParam("key", c.apiKey).
		Delete("/v1beta/" + name)
	if err != nil {
		c.logger.Warn("failed to delete uploaded media", zap.String("remote_name", name), zap.Error(err))
	}
}
