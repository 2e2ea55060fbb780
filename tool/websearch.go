package tool

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"convo/core"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

type searchArgs struct {
	Query string `json:"query" description:"Search query"`
}

// SearchResult is one parsed web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchOptions configure the web search tool.
type WebSearchOptions struct {
	// HTTPClient used for requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Endpoint overrides the search URL, used in tests.
	Endpoint string
	// MaxResults caps the number of parsed hits.
	MaxResults int
}

// NewWebSearch returns a tool querying DuckDuckGo's HTML endpoint and
// scraping the result list. No API key required.
func NewWebSearch(optFns ...func(o *WebSearchOptions)) *FunctionTool {
	opts := WebSearchOptions{
		HTTPClient: http.DefaultClient,
		Endpoint:   duckDuckGoEndpoint,
		MaxResults: 5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return NewFunctionToolFromStruct(
		"web_search",
		"Search the web for current information.",
		searchArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return nil, NewToolError("web_search", "query must not be empty", CodeInvalidArguments)
			}

			results, err := runSearch(toolCtx, &opts, query)
			if err != nil {
				return map[string]any{"error": err.Error()}, nil
			}
			if len(results) == 0 {
				return map[string]any{"results": []SearchResult{}, "note": "no results found"}, nil
			}

			return map[string]any{"results": results}, nil
		},
	)
}

func runSearch(toolCtx *core.ToolContext, opts *WebSearchOptions, query string) ([]SearchResult, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("kl", "us-en")

	req, err := http.NewRequestWithContext(
		toolCtx.Context(), http.MethodPost, opts.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; convo/1.0)")

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var results []SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		snippet := strings.TrimSpace(s.Find(".result__snippet").First().Text())
		if title == "" && snippet == "" {
			return true
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     cleanResultURL(href),
			Snippet: snippet,
		})
		return len(results) < opts.MaxResults
	})

	return results, nil
}

// cleanResultURL unwraps DuckDuckGo's redirect links (uddg parameter) back
// to the target URL.
func cleanResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
	}
	return href
}
