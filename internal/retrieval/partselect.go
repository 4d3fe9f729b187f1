package retrieval

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/markusmobius/go-trafilatura"
	cache "github.com/patrickmn/go-cache"
)

const (
	defaultUserAgent     = "PartsAgent-Bot/1.0 (+https://partsagent.example.com/bot)"
	defaultMaxBodySize   = 10 * 1024 * 1024 // 10MB
	defaultMaxConcurrent = 10
	defaultGlobalRate    = 10.0 // requests per second
	defaultPerSession    = 5.0  // requests per second
)

// CompatiblePart is a part listed on a model page
type CompatiblePart struct {
	PartNumber  string `json:"part_number"`
	Description string `json:"description,omitempty"`
}

// ProductRecord holds structured data extracted from a part page
type ProductRecord struct {
	PartNumber        string            `json:"part_number"`
	URL               string            `json:"url"`
	Title             string            `json:"title"`
	Description       string            `json:"description,omitempty"`
	ApplianceType     string            `json:"appliance_type,omitempty"`
	Compatibility     []string          `json:"compatibility,omitempty"`
	InstallationGuide string            `json:"installation_guide,omitempty"`
	Specifications    map[string]string `json:"specifications,omitempty"`
	RelatedParts      []string          `json:"related_parts,omitempty"`
}

// ModelRecord holds structured data extracted from an appliance model page
type ModelRecord struct {
	ModelNumber     string           `json:"model_number"`
	URL             string           `json:"url"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Instructions    string           `json:"instructions,omitempty"`
	ApplianceType   string           `json:"appliance_type,omitempty"`
	CompatibleParts []CompatiblePart `json:"compatible_parts,omitempty"`
}

// Service drives a headless browser against PartSelect and caches results
type Service struct {
	baseURL       string
	timeout       time.Duration
	client        *Client
	rateLimiter   *RateLimiter
	robotsChecker *RobotsChecker
	contentCache  *cache.Cache
	resourceMgr   *ResourceManager
}

// NewService creates the retrieval service for the given PartSelect base URL
func NewService(baseURL string, timeout time.Duration) *Service {
	s := &Service{
		baseURL:       strings.TrimRight(baseURL, "/"),
		timeout:       timeout,
		client:        NewClient(),
		rateLimiter:   NewRateLimiter(defaultGlobalRate, defaultPerSession),
		robotsChecker: NewRobotsChecker(defaultUserAgent),
		contentCache:  cache.New(1*time.Hour, 10*time.Minute),
		resourceMgr:   NewResourceManager(defaultMaxConcurrent, defaultMaxBodySize),
	}

	log.Printf("✅ [RETRIEVAL] Service initialized: base_url=%s, max_concurrent=%d, global_rate=%.1f req/s",
		s.baseURL, defaultMaxConcurrent, defaultGlobalRate)

	return s
}

// ScrapeProduct looks up a part by its PSxxxxxxx number via the site search box.
// A lookup that finds no matching product page returns (nil, nil).
func (s *Service) ScrapeProduct(ctx context.Context, sessionID, partNumber string) (*ProductRecord, error) {
	partNumber = strings.ToUpper(strings.TrimSpace(partNumber))
	if partNumber == "" {
		return nil, fmt.Errorf("part number is required")
	}

	cacheKey := "product:" + partNumber
	if cached, found := s.contentCache.Get(cacheKey); found {
		log.Printf("✅ [RETRIEVAL] Cache hit for part %s", partNumber)
		return cached.(*ProductRecord), nil
	}

	if err := s.gate(ctx, sessionID, s.baseURL+"/"); err != nil {
		return nil, err
	}
	defer s.resourceMgr.Release()

	bctx, cancel := newBrowserContext(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	// Drive the search box the way a visitor would. A direct part-number
	// search usually redirects straight to the product page.
	err := chromedp.Run(bctx,
		disguiseBrowser(),
		chromedp.Navigate(s.baseURL+"/"),
		chromedp.WaitVisible(`#searchboxInput`, chromedp.ByID),
		chromedp.Click(`#searchboxInput`, chromedp.ByID),
		chromedp.SendKeys(`#searchboxInput`, partNumber+kb.Enter, chromedp.ByID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to drive search: %w", err)
	}

	// Wait for the search to navigate somewhere. Timeout here is not fatal,
	// some result pages render in place.
	waitCtx, waitCancel := context.WithTimeout(bctx, 10*time.Second)
	_ = chromedp.Run(waitCtx, chromedp.Poll(
		fmt.Sprintf(`window.location.href !== %q`, s.baseURL+"/"), nil,
	))
	waitCancel()

	var currentURL string
	if err := chromedp.Run(bctx, chromedp.Location(&currentURL)); err != nil {
		return nil, fmt.Errorf("failed to read location: %w", err)
	}

	digits := strings.TrimPrefix(partNumber, "PS")
	if !isProductURL(currentURL, partNumber, digits) {
		// Search results page, find the product link in it
		productURL, err := s.findProductLink(bctx, partNumber, digits)
		if err != nil {
			return nil, err
		}
		if productURL == "" {
			log.Printf("⚠️  [RETRIEVAL] No product page found for %s", partNumber)
			return nil, nil
		}
		if err := chromedp.Run(bctx, chromedp.Navigate(productURL)); err != nil {
			return nil, fmt.Errorf("failed to open product page: %w", err)
		}
		currentURL = productURL
	}

	record, err := s.extractProduct(bctx, partNumber, currentURL)
	if err != nil {
		return nil, err
	}

	s.contentCache.Set(cacheKey, record, cache.DefaultExpiration)

	log.Printf("✅ [RETRIEVAL] Scraped part %s (latency: %dms, url: %s)",
		partNumber, time.Since(startTime).Milliseconds(), currentURL)

	return record, nil
}

// ScrapeModel loads the model page at {base}/Models/{model}/ and extracts its data.
// A model with no usable page returns (nil, nil).
func (s *Service) ScrapeModel(ctx context.Context, sessionID, modelNumber string) (*ModelRecord, error) {
	modelNumber = strings.ToUpper(strings.TrimSpace(modelNumber))
	if modelNumber == "" {
		return nil, fmt.Errorf("model number is required")
	}

	cacheKey := "model:" + modelNumber
	if cached, found := s.contentCache.Get(cacheKey); found {
		log.Printf("✅ [RETRIEVAL] Cache hit for model %s", modelNumber)
		return cached.(*ModelRecord), nil
	}

	modelURL := fmt.Sprintf("%s/Models/%s/", s.baseURL, modelNumber)

	if err := s.gate(ctx, sessionID, modelURL); err != nil {
		return nil, err
	}
	defer s.resourceMgr.Release()

	bctx, cancel := newBrowserContext(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	err := chromedp.Run(bctx,
		disguiseBrowser(),
		chromedp.Navigate(modelURL),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load model page: %w", err)
	}

	record, err := s.extractModel(bctx, modelNumber, modelURL)
	if err != nil {
		return nil, err
	}
	if record.Title == "" && len(record.CompatibleParts) == 0 {
		log.Printf("⚠️  [RETRIEVAL] No usable data on model page for %s", modelNumber)
		return nil, nil
	}

	s.contentCache.Set(cacheKey, record, cache.DefaultExpiration)

	log.Printf("✅ [RETRIEVAL] Scraped model %s (latency: %dms, parts: %d)",
		modelNumber, time.Since(startTime).Milliseconds(), len(record.CompatibleParts))

	return record, nil
}

// gate runs the robots.txt check, rate limiting and the concurrency semaphore.
// On success the resource slot is held and the caller must Release it.
func (s *Service) gate(ctx context.Context, sessionID, urlStr string) error {
	policy, err := s.robotsChecker.Policy(ctx, urlStr)
	if err != nil {
		log.Printf("⚠️  [RETRIEVAL] Failed to check robots.txt for %s: %v", urlStr, err)
		policy = robotsPolicy{Allowed: true, CrawlDelay: defaultCrawlWait}
	}
	if !policy.Allowed {
		return fmt.Errorf("access blocked by robots.txt for: %s", urlStr)
	}

	domain := domainOf(urlStr)
	if err := s.rateLimiter.WaitWithCrawlDelay(ctx, sessionID, domain, policy.CrawlDelay); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	if err := s.resourceMgr.Acquire(ctx); err != nil {
		return fmt.Errorf("resource limit reached, try again later: %w", err)
	}
	return nil
}

// findProductLink scans the current page for a link to the part's product page
func (s *Service) findProductLink(ctx context.Context, partNumber, digits string) (string, error) {
	script := fmt.Sprintf(`(function() {
		const part = %q, digits = %q;
		for (const a of document.querySelectorAll('a[href]')) {
			let href = a.getAttribute('href');
			if (!href) continue;
			if (href.startsWith('/')) href = location.origin + href;
			if ((href.includes(part) || href.includes(digits)) && (href.includes('.htm') || href.includes('/PS'))) {
				return href;
			}
		}
		return '';
	})()`, partNumber, digits)

	var href string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &href)); err != nil {
		return "", fmt.Errorf("failed to scan search results: %w", err)
	}
	return href, nil
}

// extractProduct pulls structured product data out of the loaded page
func (s *Service) extractProduct(ctx context.Context, partNumber, pageURL string) (*ProductRecord, error) {
	record := &ProductRecord{
		PartNumber:     partNumber,
		URL:            pageURL,
		Specifications: map[string]string{},
	}

	var raw struct {
		Title         string            `json:"title"`
		Description   string            `json:"description"`
		Installation  string            `json:"installation"`
		Compatibility []string          `json:"compatibility"`
		Specs         map[string]string `json:"specs"`
		RelatedParts  []string          `json:"relatedParts"`
	}

	if err := chromedp.Run(ctx, chromedp.Evaluate(productExtractScript, &raw)); err != nil {
		return nil, fmt.Errorf("failed to extract product data: %w", err)
	}

	record.Title = strings.TrimSpace(raw.Title)
	record.Description = strings.TrimSpace(raw.Description)
	record.InstallationGuide = strings.TrimSpace(raw.Installation)
	record.Compatibility = raw.Compatibility
	if raw.Specs != nil {
		record.Specifications = raw.Specs
	}
	for _, p := range raw.RelatedParts {
		if p != partNumber {
			record.RelatedParts = append(record.RelatedParts, p)
		}
	}
	// Selector extraction misses on redesigned pages; fall back to main
	// content extraction over the rendered HTML.
	if record.Description == "" {
		record.Description = s.fallbackDescription(ctx, pageURL)
	}

	record.ApplianceType = applianceTypeOf(record.Title + " " + record.Description)
	if record.Title == "" {
		record.Title = "Part " + partNumber
	}

	return record, nil
}

// fallbackDescription extracts the main page text and keeps a short excerpt.
// Returns "" on any failure, the record is still usable without it.
func (s *Service) fallbackDescription(ctx context.Context, pageURL string) string {
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return ""
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	result, err := trafilatura.Extract(strings.NewReader(html), trafilatura.Options{
		OriginalURL: parsedURL,
	})
	if err != nil || result == nil || result.ContentText == "" {
		return ""
	}

	excerpt := strings.TrimSpace(result.ContentText)
	if len(excerpt) > 600 {
		excerpt = excerpt[:600] + "..."
	}
	return excerpt
}

// extractModel pulls structured model data out of the loaded page
func (s *Service) extractModel(ctx context.Context, modelNumber, pageURL string) (*ModelRecord, error) {
	record := &ModelRecord{
		ModelNumber: modelNumber,
		URL:         pageURL,
	}

	var raw struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		Instructions string `json:"instructions"`
		Parts        []struct {
			PartNumber  string `json:"partNumber"`
			Description string `json:"description"`
		} `json:"parts"`
	}

	if err := chromedp.Run(ctx, chromedp.Evaluate(modelExtractScript, &raw)); err != nil {
		return nil, fmt.Errorf("failed to extract model data: %w", err)
	}

	record.Title = strings.TrimSpace(raw.Title)
	record.Description = strings.TrimSpace(raw.Description)
	record.Instructions = strings.TrimSpace(raw.Instructions)
	seen := map[string]bool{}
	for _, p := range raw.Parts {
		if p.PartNumber == "" || seen[p.PartNumber] {
			continue
		}
		seen[p.PartNumber] = true
		record.CompatibleParts = append(record.CompatibleParts, CompatiblePart{
			PartNumber:  p.PartNumber,
			Description: p.Description,
		})
	}
	record.ApplianceType = applianceTypeOf(record.Title + " " + record.Description)

	return record, nil
}

func isProductURL(url, partNumber, digits string) bool {
	return strings.Contains(url, ".htm") &&
		(strings.Contains(url, partNumber) || strings.Contains(url, digits))
}

func applianceTypeOf(text string) string {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "refrigerator"), strings.Contains(text, "fridge"):
		return "refrigerator"
	case strings.Contains(text, "dishwasher"):
		return "dishwasher"
	}
	return ""
}

func domainOf(urlStr string) string {
	rest := urlStr
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
