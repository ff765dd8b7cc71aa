package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const webUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"

// SearchTool searches the web using the Brave Search API.
type SearchTool struct {
	apiKey     string
	maxResults int
	httpClient *http.Client
}

// NewSearchTool creates a SearchTool. apiKey is the Brave subscription
// token; maxResults defaults to 3.
func NewSearchTool(apiKey string, maxResults int) *SearchTool {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &SearchTool{
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *SearchTool) Name() string { return "search" }
func (t *SearchTool) Description() string {
	return "Search the web for current information. Returns titles, URLs, and snippets."
}
func (t *SearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Search query"}
		},
		"required": ["query"]
	}`)
}

func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, _ := params["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "Error: query is required", nil
	}
	if t.apiKey == "" {
		return "Error: search API key not configured", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.search.brave.com/res/v1/web/search", nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", t.maxResults))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	var data struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("parse search response: %w", err)
	}
	if len(data.Web.Results) == 0 {
		return "No results for: " + query, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Results for: %s\n\n", query)
	for i, item := range data.Web.Results {
		if i >= t.maxResults {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, item.Title, item.URL)
		if item.Description != "" {
			sb.WriteString("   " + item.Description + "\n")
		}
	}
	return sb.String(), nil
}

// FetchTool fetches a URL and extracts its readable text.
type FetchTool struct {
	maxChars   int
	httpClient *http.Client
}

// NewFetchTool creates a FetchTool. maxChars defaults to 20000.
func NewFetchTool(maxChars int) *FetchTool {
	if maxChars <= 0 {
		maxChars = 20000
	}
	return &FetchTool{
		maxChars:   maxChars,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *FetchTool) Name() string { return "fetch_page" }
func (t *FetchTool) Description() string {
	return "Fetch a web page and return its readable text content."
}
func (t *FetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "http(s) URL to fetch"}
		},
		"required": ["url"]
	}`)
}

func (t *FetchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	rawURL, _ := params["url"].(string)
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "Error: a valid http(s) URL is required", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		article, err := readability.FromReader(bytes.NewReader(body), resp.Request.URL)
		if err == nil {
			text = article.TextContent
			if article.Title != "" {
				text = article.Title + "\n\n" + text
			}
		}
	}

	text = strings.TrimSpace(text)
	if len(text) > t.maxChars {
		text = text[:t.maxChars] + "\n[truncated]"
	}

	return text, nil
}
