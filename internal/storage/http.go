package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cleancity/cleancity/internal/config"
)

// HTTPStorage uploads images to a generic HTTP object store: PUT to
// {base}/{key} with a bearer token, DELETE to remove.
type HTTPStorage struct {
	baseURL  string
	apiToken string
	http     *http.Client
	logger   *slog.Logger
}

// NewHTTPStorage builds a client for the configured object store.
func NewHTTPStorage(cfg config.StorageConfig, logger *slog.Logger) *HTTPStorage {
	return &HTTPStorage{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		http:     &http.Client{},
		logger:   logger,
	}
}

// Upload PUTs the object and returns its public URL. The caller bounds the
// call with a deadline; deadline expiry maps to ErrUploadTimeout.
func (s *HTTPStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	url := s.objectURL(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if s.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiToken)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrUploadTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	return url, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *HTTPStorage) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	if s.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiToken)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("delete object: status %d", resp.StatusCode)
	}
}

func (s *HTTPStorage) objectURL(key string) string {
	return s.baseURL + "/" + key
}
