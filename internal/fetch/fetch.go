// Package fetch fills in full item text via HTTP and readability extraction.
package fetch

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/civicscope/civicscope/internal/database"
)

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// ContentFetcher fetches full item text via HTTP + readability extraction.
type ContentFetcher struct {
	db     *database.DB
	owner  string
	client *http.Client
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(db *database.DB, owner string, timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		db:    db,
		owner: owner,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchMissingContent fetches content for items that have empty content.
// A domain that returns an HTTP error is skipped for the rest of the run.
func (f *ContentFetcher) FetchMissingContent(ctx context.Context) *Result {
	items, err := f.db.ItemsNeedingFetch(ctx, f.owner)
	if err != nil {
		log.Printf("Error getting items needing fetch: %v", err)
		return &Result{}
	}

	if len(items) == 0 {
		log.Println("No items need content fetching")
		return &Result{}
	}

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for _, item := range items {
		u, _ := url.Parse(item.URL)
		domain := ""
		if u != nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			f.db.MarkItemFetchAttempted(ctx, item.ID)
			result.Failed++
			continue
		}

		content, httpErr := f.fetchItemContent(ctx, item.URL)
		if httpErr != nil {
			f.db.MarkItemFetchAttempted(ctx, item.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s, skipping remaining from %s", item.URL, domain)
			continue
		}

		if content != "" {
			f.db.UpdateItemContent(ctx, item.ID, content)
			result.Fetched++
			log.Printf("Fetched content for: %s", item.Title)
		} else {
			f.db.MarkItemFetchAttempted(ctx, item.ID)
			result.Failed++
			log.Printf("No extractable content from: %s", item.URL)
		}
	}

	log.Printf("Content fetch complete: %d fetched, %d failed", result.Fetched, result.Failed)
	return result
}

func (f *ContentFetcher) fetchItemContent(ctx context.Context, itemURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", itemURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "civicscope/1.0 (records aggregator)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(itemURL)
	doc, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(doc.TextContent)
	if len(text) > 100 {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
