// internal/scraper/page.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/kuaigrab/kuaigrab/internal/errors"
)

// FetchDetailPage issues the authenticated GET for a canonical detail page
// and returns the raw markup. No parsing happens here; format concerns
// belong to the extract package.
func (c *Client) FetchDetailPage(ctx context.Context, canonicalURL string) (string, error) {
	headers := map[string]string{
		"User-Agent": c.config.UserAgent,
	}
	if c.config.Cookie != "" {
		headers["Cookie"] = c.config.Cookie
	}

	resp, err := c.Get(ctx, canonicalURL, headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// The platform answers an expired or missing credential with a redirect
	// to its login surface rather than a 401.
	if finalURL := resp.Request.URL; finalURL != nil {
		lowered := strings.ToLower(finalURL.String())
		if strings.Contains(lowered, "login") || strings.Contains(finalURL.Host, "passport.") {
			return "", &apperrors.AuthRequiredError{Reason: "redirected to login page, cookie missing or expired"}
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read detail page body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", &apperrors.AuthRequiredError{Reason: "empty detail page body, cookie missing or expired"}
	}

	return string(body), nil
}

// DownloadHeaders returns the header set for media fetches. Media CDN hosts
// reject requests that carry the session cookie, so only the user agent is
// sent.
func (c *Client) DownloadHeaders() map[string]string {
	return map[string]string{
		"User-Agent": c.config.UserAgent,
	}
}
