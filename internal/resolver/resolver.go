// internal/resolver/resolver.go
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	apperrors "github.com/kuaigrab/kuaigrab/internal/errors"
	"github.com/kuaigrab/kuaigrab/internal/utils"
)

// ResolvedLink identifies a single work on the platform. ContentID is
// non-empty for every successfully resolved link; a link that classifies as
// anything other than a detail page does not resolve.
type ResolvedLink struct {
	SiteVariant  string // "www" or "mobile"
	OwnerID      string // may be empty; not every detail URL names its owner
	ContentID    string
	CanonicalURL string
}

// Expander follows short-link redirects to a canonical URL. Implemented by
// the scraper client; abstracted here so resolution is testable without a
// network.
type Expander interface {
	ExpandShortLink(ctx context.Context, shortURL string) (string, error)
}

// Resolver turns arbitrary share text into a ResolvedLink.
type Resolver struct {
	expander Expander
	logger   utils.Logger
}

var (
	urlTokenPattern = regexp.MustCompile(`https?://[^\s"'<>，。]+`)

	// Known canonical detail-page shapes. Order matters: the first match wins.
	shortVideoPattern  = regexp.MustCompile(`kuaishou\.com/short-video/([0-9A-Za-z_-]+)`)
	photoPattern       = regexp.MustCompile(`kuaishou\.com/photo/([0-9A-Za-z_-]+)`)
	mobilePhotoPattern = regexp.MustCompile(`kuaishou\.com/fw/photo/([0-9A-Za-z_-]+)`)
	profilePattern     = regexp.MustCompile(`kuaishou\.com/profile/([0-9A-Za-z_-]+)`)
)

// shortLinkHosts are redirect services used by the platform's share sheets.
var shortLinkHosts = map[string]bool{
	"v.kuaishou.com":        true,
	"v.m.chenzhongtech.com": true,
	"kw.ai":                 true,
}

// New creates a resolver using the given redirect expander.
func New(expander Expander, logger utils.Logger) *Resolver {
	return &Resolver{expander: expander, logger: logger}
}

// Resolve extracts the first URL token from the share text, expands it if it
// is a short link, and classifies the canonical URL. Only detail pages
// resolve; profile, search, and discovery URLs fail with a resolution error.
func (r *Resolver) Resolve(ctx context.Context, rawText string) (*ResolvedLink, error) {
	token := urlTokenPattern.FindString(rawText)
	if token == "" {
		return nil, &apperrors.ResolutionError{Input: rawText, Reason: "no URL found in input"}
	}

	canonical := token
	parsed, err := url.Parse(token)
	if err != nil {
		return nil, &apperrors.ResolutionError{Input: token, Reason: fmt.Sprintf("malformed URL: %v", err)}
	}
	if shortLinkHosts[strings.ToLower(parsed.Host)] {
		canonical, err = r.expander.ExpandShortLink(ctx, token)
		if err != nil {
			// An unexpandable short link is a resolution failure, even when
			// the underlying cause is a network error.
			return nil, &apperrors.ResolutionError{
				Input:  token,
				Reason: "failed to expand short link",
				Err:    err,
			}
		}
		r.logger.Debugf("expanded short link %s -> %s", token, canonical)
	}

	link, err := ExtractParams(canonical)
	if err != nil {
		return nil, err
	}
	return link, nil
}

// ExtractParams classifies a canonical URL and pulls out the site variant,
// owner identifier, and content identifier. It is pure; resolving the same
// canonical URL twice yields identical fields.
func ExtractParams(canonicalURL string) (*ResolvedLink, error) {
	parsed, err := url.Parse(canonicalURL)
	if err != nil {
		return nil, &apperrors.ResolutionError{Input: canonicalURL, Reason: fmt.Sprintf("malformed URL: %v", err)}
	}

	link := &ResolvedLink{
		SiteVariant:  siteVariant(parsed.Host),
		CanonicalURL: canonicalURL,
	}

	if m := profilePattern.FindStringSubmatch(canonicalURL); m != nil {
		link.OwnerID = m[1]
	}

	switch {
	case matchInto(shortVideoPattern, canonicalURL, &link.ContentID):
	case matchInto(mobilePhotoPattern, canonicalURL, &link.ContentID):
		link.SiteVariant = "mobile"
	case matchInto(photoPattern, canonicalURL, &link.ContentID):
	case parsed.Query().Get("photoId") != "":
		link.ContentID = parsed.Query().Get("photoId")
	}

	if link.ContentID == "" {
		return nil, &apperrors.ResolutionError{
			Input:  canonicalURL,
			Reason: "URL does not point at a single work (detail page)",
		}
	}
	return link, nil
}

func matchInto(pattern *regexp.Regexp, s string, dst *string) bool {
	if m := pattern.FindStringSubmatch(s); m != nil {
		*dst = m[1]
		return true
	}
	return false
}

func siteVariant(host string) string {
	host = strings.ToLower(host)
	if strings.HasPrefix(host, "m.") || strings.HasPrefix(host, "c.") || strings.HasPrefix(host, "v.") {
		return "mobile"
	}
	return "www"
}
