package services

import "encoding/json"

// sourceCollector accumulates retrieval origin URLs in first-seen order
// with duplicates dropped.
type sourceCollector struct {
	seen map[string]bool
	urls []string
}

func newSourceCollector() *sourceCollector {
	return &sourceCollector{seen: map[string]bool{}}
}

// Add records a URL. Empty strings and repeats are ignored.
func (c *sourceCollector) Add(url string) {
	if url == "" || c.seen[url] {
		return
	}
	c.seen[url] = true
	c.urls = append(c.urls, url)
}

// CollectFromResult extracts origin URLs from a tool result. Results are JSON
// documents; a top-level "url" field or "url" fields inside a top-level array
// count as origins. Non-JSON results contribute nothing.
func (c *sourceCollector) CollectFromResult(result string) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(result), &obj); err == nil {
		if url, ok := obj["url"].(string); ok {
			c.Add(url)
		}
		return
	}

	var list []map[string]interface{}
	if err := json.Unmarshal([]byte(result), &list); err == nil {
		for _, item := range list {
			if url, ok := item["url"].(string); ok {
				c.Add(url)
			}
		}
	}
}

// URLs returns the collected URLs in first-seen order
func (c *sourceCollector) URLs() []string {
	return c.urls
}
