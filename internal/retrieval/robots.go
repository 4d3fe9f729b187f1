package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const (
	robotsCacheTTL   = 24 * time.Hour
	robotsMaxSize    = 1 * 1024 * 1024
	defaultCrawlWait = 1 * time.Second
	maxCrawlWait     = 10 * time.Second
)

// robotsPolicy is the fetch decision for one URL
type robotsPolicy struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsChecker resolves robots.txt policies with a per-domain cache.
// A domain whose robots.txt is missing, unreachable or unparseable is
// treated as permissive with the default crawl wait.
type RobotsChecker struct {
	cache     *cache.Cache // domain -> *robotstxt.RobotsData
	userAgent string
	client    *http.Client
}

// NewRobotsChecker creates a new robots.txt checker
func NewRobotsChecker(userAgent string) *RobotsChecker {
	return &RobotsChecker{
		cache:     cache.New(robotsCacheTTL, time.Hour),
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Policy returns the robots.txt decision for urlStr
func (rc *RobotsChecker) Policy(ctx context.Context, urlStr string) (robotsPolicy, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return robotsPolicy{}, fmt.Errorf("invalid URL: %w", err)
	}
	domain := parsedURL.Scheme + "://" + parsedURL.Host

	data, found := rc.cache.Get(domain)
	if !found {
		fetched := rc.fetch(ctx, domain)
		if fetched == nil {
			// Unreachable or unparseable robots.txt does not block retrieval
			return robotsPolicy{Allowed: true, CrawlDelay: defaultCrawlWait}, nil
		}
		rc.cache.Set(domain, fetched, cache.DefaultExpiration)
		data = fetched
	}

	group := data.(*robotstxt.RobotsData).FindGroup(rc.userAgent)
	return robotsPolicy{
		Allowed:    group.Test(parsedURL.Path),
		CrawlDelay: clampCrawlDelay(group.CrawlDelay),
	}, nil
}

// fetch downloads and parses a domain's robots.txt, nil on any failure
func (rc *RobotsChecker) fetch(ctx context.Context, domain string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, "GET", domain+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxSize))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil
	}
	return data
}

func clampCrawlDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultCrawlWait
	}
	if d > maxCrawlWait {
		return maxCrawlWait
	}
	return d
}
