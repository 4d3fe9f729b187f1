package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
	cache "github.com/patrickmn/go-cache"
)

// ScrapePage fetches an arbitrary page over plain HTTP and returns its main
// content as markdown-ish text. Used by the generic scrape endpoint and as a
// fallback when a structured lookup is not needed.
func (s *Service) ScrapePage(ctx context.Context, urlStr string, maxLength int, sessionID string) (string, error) {
	startTime := time.Now()

	if err := validatePageURL(urlStr); err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	cacheKey := "page:" + urlStr
	if cached, found := s.contentCache.Get(cacheKey); found {
		log.Printf("✅ [RETRIEVAL] Cache hit for URL: %s (latency: %dms)",
			urlStr, time.Since(startTime).Milliseconds())
		return cached.(string), nil
	}

	if err := s.gate(ctx, sessionID, urlStr); err != nil {
		return "", err
	}
	defer s.resourceMgr.Release()

	resp, err := s.client.Get(ctx, urlStr)
	if err != nil {
		log.Printf("❌ [RETRIEVAL] Failed to fetch URL %s: %v", urlStr, err)
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, resp.Status)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !isSupportedContentType(contentType) {
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	body, err := s.resourceMgr.ReadBody(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL: parsedURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	if result == nil || result.ContentText == "" {
		return "", fmt.Errorf("no content extracted from page")
	}

	content := result.ContentText
	if maxLength > 0 && len(content) > maxLength {
		content = content[:maxLength] + "\n\n[Content truncated due to length limit]"
	}

	metadata := fmt.Sprintf("# %s\n\n", result.Metadata.Title)
	if result.Metadata.Author != "" {
		metadata += fmt.Sprintf("**Author:** %s  \n", result.Metadata.Author)
	}
	if !result.Metadata.Date.IsZero() {
		metadata += fmt.Sprintf("**Published:** %s  \n", result.Metadata.Date.Format("January 2, 2006"))
	}
	metadata += fmt.Sprintf("**Source:** %s  \n", urlStr)
	metadata += "\n---\n\n"

	finalContent := metadata + content

	s.contentCache.Set(cacheKey, finalContent, cache.DefaultExpiration)

	log.Printf("✅ [RETRIEVAL] Scraped URL: %s (latency: %dms, length: %d chars)",
		urlStr, time.Since(startTime).Milliseconds(), len(finalContent))

	return finalContent, nil
}

// validatePageURL checks if the URL is safe to fetch (SSRF protection)
func validatePageURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("only HTTP/HTTPS URLs are supported, got: %s", parsedURL.Scheme)
	}

	hostname := strings.ToLower(parsedURL.Hostname())

	if hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1" {
		return fmt.Errorf("localhost URLs are not allowed")
	}

	privateRanges := []string{
		"192.168.", "10.", "172.16.", "172.17.", "172.18.", "172.19.",
		"172.20.", "172.21.", "172.22.", "172.23.", "172.24.", "172.25.",
		"172.26.", "172.27.", "172.28.", "172.29.", "172.30.", "172.31.",
		"169.254.", // Link-local
		"fd",       // IPv6 private
	}

	for _, prefix := range privateRanges {
		if strings.HasPrefix(hostname, prefix) {
			return fmt.Errorf("private IP addresses are not allowed")
		}
	}

	return nil
}

func isSupportedContentType(contentType string) bool {
	supported := []string{
		"text/html",
		"text/plain",
		"application/xhtml+xml",
	}
	for _, ct := range supported {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}
