package docsource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	k8syaml "sigs.k8s.io/yaml"

	"github.com/i2y/apiportal/internal/usecase"
)

const maxDocumentBytes = 10 << 20

// Common paths frameworks serve their description document on.
var commonDocumentPaths = []string{
	"/openapi.json",
	"/docs/openapi.json",
	"/swagger.json",
	"/v3/api-docs",
	"/api-docs",
	"/api/openapi.json",
	"/api/v1/openapi.json",
	"/swagger/v1/swagger.json",
	"/openapi.yaml",
}

// Fetcher implements usecase.DocumentSource.
type Fetcher struct {
	httpClient *http.Client
	gh         *GHClient
	logger     *slog.Logger
}

// NewFetcher creates a new Fetcher. A nil client uses http.DefaultClient and a
// nil gh uses the gh binary.
func NewFetcher(client *http.Client, gh *GHClient, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if gh == nil {
		gh = NewGHClient(nil)
	}
	return &Fetcher{
		httpClient: client,
		gh:         gh,
		logger:     logger.With("component", "document_fetcher"),
	}
}

// Fetch reads src. An http(s) URL that does not itself serve a description
// document is treated as a base URL and probed on common document paths.
func (f *Fetcher) Fetch(ctx context.Context, src usecase.SourceConfig) ([]byte, error) {
	log := f.logger.With(slog.String("source", src.URL))

	if IsGitHubURL(src.URL) {
		log.Debug("Fetching from GitHub")
		return f.gh.FetchFile(ctx, src.URL)
	}

	u, err := url.ParseRequestURI(src.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		log.Debug("Assuming local file path")
		data, err := os.ReadFile(src.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to read document from file %s: %w", src.URL, err)
		}
		return data, nil
	}

	body, status, err := f.get(ctx, src.URL, src.Headers)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK && looksLikeDocument(body) {
		return body, nil
	}

	log.Info("Source is not a description document, probing common paths", slog.Int("status", status))
	for _, p := range commonDocumentPaths {
		candidate := u.JoinPath(p).String()
		body, status, err := f.get(ctx, candidate, src.Headers)
		if err != nil {
			log.Debug("Probe failed", slog.String("url", candidate), slog.Any("error", err))
			continue
		}
		if status == http.StatusOK && looksLikeDocument(body) {
			log.Info("Discovered description document", slog.String("url", candidate))
			return body, nil
		}
	}
	return nil, fmt.Errorf("no description document found at %s: %w", src.URL, usecase.ErrNotFound)
}

func (f *Fetcher) get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response from %s: %w", rawURL, err)
	}
	return body, resp.StatusCode, nil
}

// looksLikeDocument reports whether body is a JSON or YAML mapping declaring
// an openapi or swagger version.
func looksLikeDocument(body []byte) bool {
	var probe map[string]any
	if err := k8syaml.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe["openapi"] != nil || probe["swagger"] != nil
}
