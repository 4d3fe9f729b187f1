package retrieval

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestIsProductURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.partselect.com/PS11752778-Whirlpool-Door-Bin.htm", true},
		{"https://www.partselect.com/11752778-Door-Bin.htm", true},
		{"https://www.partselect.com/Models/WDT780SAEM1/", false},
		{"https://www.partselect.com/search?q=PS11752778", false},
	}
	for _, tt := range tests {
		if got := isProductURL(tt.url, "PS11752778", "11752778"); got != tt.want {
			t.Errorf("isProductURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestApplianceTypeOf(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Refrigerator Door Shelf Bin", "refrigerator"},
		{"fits most fridge models", "refrigerator"},
		{"Dishwasher Upper Rack Wheel", "dishwasher"},
		{"Universal water valve", ""},
	}
	for _, tt := range tests {
		if got := applianceTypeOf(tt.text); got != tt.want {
			t.Errorf("applianceTypeOf(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.partselect.com/PS123.htm", "www.partselect.com"},
		{"http://example.com", "example.com"},
		{"www.partselect.com/Models/X/", "www.partselect.com"},
	}
	for _, tt := range tests {
		if got := domainOf(tt.url); got != tt.want {
			t.Errorf("domainOf(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestValidatePageURL(t *testing.T) {
	valid := []string{
		"https://www.partselect.com/PS123.htm",
		"http://example.com/page",
	}
	for _, u := range valid {
		if err := validatePageURL(u); err != nil {
			t.Errorf("Expected %q to be allowed: %v", u, err)
		}
	}

	blocked := []string{
		"ftp://example.com/file",
		"http://localhost/admin",
		"http://127.0.0.1:8080/",
		"http://192.168.1.1/router",
		"http://10.0.0.5/internal",
		"http://169.254.169.254/latest/meta-data/",
		"http://172.16.0.1/",
	}
	for _, u := range blocked {
		if err := validatePageURL(u); err == nil {
			t.Errorf("Expected %q to be blocked", u)
		}
	}
}

func TestClampCrawlDelay(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, time.Second},
		{-time.Second, time.Second},
		{3 * time.Second, 3 * time.Second},
		{time.Minute, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := clampCrawlDelay(tt.in); got != tt.want {
			t.Errorf("clampCrawlDelay(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsSupportedContentType(t *testing.T) {
	if !isSupportedContentType("text/html; charset=utf-8") {
		t.Error("Expected HTML to be supported")
	}
	if isSupportedContentType("application/pdf") {
		t.Error("Expected PDF to be rejected")
	}
}

func TestResourceManager_ReadBody(t *testing.T) {
	rm := NewResourceManager(2, 64)

	data, err := rm.ReadBody(strings.NewReader("small body"))
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if string(data) != "small body" {
		t.Errorf("Unexpected body: %q", data)
	}

	if _, err := rm.ReadBody(strings.NewReader(strings.Repeat("x", 200))); err == nil {
		t.Error("Expected oversized body to be rejected")
	}
}

func TestResourceManager_Acquire(t *testing.T) {
	rm := NewResourceManager(1, 1024)

	if err := rm.Acquire(context.Background()); err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := rm.Acquire(ctx); err == nil {
		t.Error("Expected second acquire to time out while the slot is held")
	}

	rm.Release()
	if err := rm.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(100, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// First hit on each tier draws from the initial burst
	if err := rl.Wait(ctx, "session-a", "a.example.com"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	// Different domain and session get their own fresh limiters
	if err := rl.Wait(ctx, "session-b", "b.example.com"); err != nil {
		t.Fatalf("Wait for a second session failed: %v", err)
	}
}

func TestRateLimiter_DomainCapsFromCrawlDelay(t *testing.T) {
	rl := NewRateLimiter(100, 5)

	// A tiny crawl delay still caps at 5 req/s
	fast := rl.getOrCreateDomainLimiter("fast.example.com", 10*time.Millisecond)
	if fast.Limit() != 5.0 {
		t.Errorf("Expected 5 req/s cap, got %v", fast.Limit())
	}

	// A huge crawl delay floors at one request per 5 seconds
	slow := rl.getOrCreateDomainLimiter("slow.example.com", time.Minute)
	if slow.Limit() != 0.2 {
		t.Errorf("Expected 0.2 req/s floor, got %v", slow.Limit())
	}
}
