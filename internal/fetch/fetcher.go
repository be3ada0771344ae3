// Package fetch retrieves a source URL and extracts the title, body text and
// bullet fragments the summarize stage consumes.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"postforge/internal/domain"
)

const (
	maxBullets      = 5
	minBulletLen    = 10
	minParagraphLen = 20
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	defaultAttempts = 3
	defaultBackoff  = time.Second
)

// FetchError is the typed failure raised when a URL cannot be retrieved.
// The orchestrator treats it as job-fatal.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options configures a Fetcher. The zero value is usable.
type Options struct {
	HTTPClient *http.Client
	Attempts   int
	// Backoff is the base delay; attempt n waits n*Backoff.
	Backoff time.Duration
}

// Fetcher retrieves and extracts page content. It is a pure function of
// network input and carries no job state.
type Fetcher struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// New constructs a Fetcher with sane defaults.
func New(opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Fetcher{client: client, attempts: attempts, backoff: backoff}
}

// ValidURL reports whether raw is a syntactically valid absolute http(s) URL.
func ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CheckReachable verifies the URL responds successfully before a job is
// admitted. Each attempt prefers a lightweight HEAD and falls back to GET
// once; attempts back off linearly. All failures collapse into
// domain.ErrUnreachableURL.
func (f *Fetcher) CheckReachable(ctx context.Context, rawURL string) error {
	var lastErr error
	for attempt := 0; attempt < f.attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*f.backoff); err != nil {
				return err
			}
		}
		status, err := f.probe(ctx, rawURL, http.MethodHead)
		if err != nil || status >= http.StatusBadRequest {
			status, err = f.probe(ctx, rawURL, http.MethodGet)
		}
		if err == nil && status < http.StatusBadRequest {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status %d", status)
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrUnreachableURL, rawURL, lastErr)
}

func (f *Fetcher) probe(ctx context.Context, rawURL, method string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return resp.StatusCode, nil
}

// Fetch retrieves the URL and extracts its visible content. Retries follow
// the same linear backoff policy as CheckReachable; exhausting all attempts
// raises a FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*domain.ScrapeResult, error) {
	var lastErr error
	for attempt := 0; attempt < f.attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*f.backoff); err != nil {
				return nil, &FetchError{URL: rawURL, Err: err}
			}
		}
		result, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, &FetchError{URL: rawURL, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*domain.ScrapeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	extracted := extract(doc)
	return &domain.ScrapeResult{
		URL:       rawURL,
		Title:     extracted.title,
		MainText:  strings.Join(extracted.paragraphs, " "),
		Bullets:   extracted.bullets,
		ScrapedAt: time.Now().UTC(),
	}, nil
}

type pageContent struct {
	title      string
	paragraphs []string
	bullets    []string
}

var contentTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true,
}

// extract walks the DOM in document order collecting the title, heading and
// paragraph text, and bullet fragments from list items.
func extract(doc *html.Node) pageContent {
	var pc pageContent
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "title" && pc.title == "":
				pc.title = strings.TrimSpace(nodeText(n))
				return
			case n.Data == "script" || n.Data == "style":
				return
			case contentTags[n.Data]:
				text := strings.TrimSpace(nodeText(n))
				if len(text) > minParagraphLen {
					pc.paragraphs = append(pc.paragraphs, text)
				}
				return
			case n.Data == "li":
				text := strings.TrimSpace(nodeText(n))
				if len(text) > minBulletLen && len(pc.bullets) < maxBullets {
					pc.bullets = append(pc.bullets, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if pc.bullets == nil {
		pc.bullets = []string{}
	}
	return pc
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
