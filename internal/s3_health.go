package internal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lychee-technology/catalogue"
)

// ValidateS3Config checks the file store settings before a client is built.
func ValidateS3Config(cfg catalogue.StorageConfig) error {
	if !cfg.Enabled {
		return fmt.Errorf("s3: storage is disabled")
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("s3: bucket is required")
	}
	if cfg.Region == "" && cfg.Endpoint == "" {
		return fmt.Errorf("s3: region or endpoint is required")
	}
	if cfg.AccessKey != "" && cfg.SecretKey == "" {
		return fmt.Errorf("s3: accessKey provided without secretKey")
	}
	if cfg.SecretKey != "" && cfg.AccessKey == "" {
		return fmt.Errorf("s3: secretKey provided without accessKey")
	}
	return nil
}

// S3HealthCheck sends a HEAD request to the configured endpoint. It only
// proves reachability: AWS itself answers 403 to anonymous requests, which
// is reported as an auth error rather than a network failure.
func S3HealthCheck(ctx context.Context, cfg catalogue.StorageConfig, timeout time.Duration) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Endpoint == "" {
		return fmt.Errorf("s3 endpoint not configured")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("s3 health request build failed: %w", err)
	}
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("s3 health request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("s3 endpoint reachable but returned auth error: %d", resp.StatusCode)
	default:
		return fmt.Errorf("s3 endpoint returned unexpected status: %d", resp.StatusCode)
	}
}
