// Package scrape fetches an organization's website and reduces each page to
// readable text, a page type and its calls to action.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/logger"
	"github.com/longhornrumble/dealprep/internal/version"
	"github.com/longhornrumble/dealprep/internal/worker"
)

// CandidatePaths are the same-host pages fetched after the home page, in order.
var CandidatePaths = []string{
	"/about", "/about-us", "/mission",
	"/team", "/staff", "/leadership",
	"/donate", "/give", "/volunteer", "/get-involved",
	"/contact",
}

const maxBodyBytes = 4 << 20

// Document is the scrape artifact.
type Document struct {
	Meta   Meta        `json:"scrape_meta"`
	Pages  []Page      `json:"pages"`
	Errors []PageError `json:"errors"`
}

type Meta struct {
	Website    string `json:"website"`
	FetchedAt  string `json:"fetched_at"`
	PageCount  int    `json:"page_count"`
	DurationMS int64  `json:"duration_ms"`
}

type Page struct {
	URL      string   `json:"url"`
	PageType PageType `json:"page_type"`
	Title    string   `json:"title"`
	Excerpt  string   `json:"excerpt"`
	Text     string   `json:"text"`
	CTAs     []string `json:"ctas"`
}

type PageError struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// URLs lists every fetched page URL in document order.
func (d Document) URLs() []string {
	out := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		out = append(out, p.URL)
	}
	return out
}

// Empty is the document stored when scraping is skipped or failed.
func Empty(website string, now time.Time) Document {
	return Document{
		Meta:   Meta{Website: website, FetchedAt: now.UTC().Format(time.RFC3339)},
		Pages:  []Page{},
		Errors: []PageError{},
	}
}

type Config struct {
	MaxPages     int
	Timeout      time.Duration
	RateLimitRPS float64
	UserAgent    string
	MaxTextChars int
	Workers      int
	HTTPClient   *http.Client
	Now          func() time.Time
}

type Scraper struct {
	cfg Config
	hc  *http.Client
	log logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) *Scraper {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 6000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = version.UserAgent()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Scraper{cfg: cfg, hc: hc, log: log}
}

// errSkip marks a page that could not be used but does not fail the scrape.
type errSkip struct{ msg string }

func (e *errSkip) Error() string { return e.msg }

// Scrape fetches the home page and up to MaxPages-1 candidate pages. Only a
// failure to fetch the home page is returned as an error; everything else is
// recorded in Document.Errors.
func (s *Scraper) Scrape(ctx context.Context, website string) (Document, error) {
	start := s.cfg.Now()
	home, err := NormalizeWebsite(website)
	if err != nil {
		return Document{}, err
	}
	doc := Empty(home.String(), start)
	s.log.WithField("website", home.String()).Debug("scrape start")

	limiter := worker.NewLimiter(s.cfg.RateLimitRPS)
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return Document{}, err
		}
	}
	first, err := s.fetch(ctx, home, home.Host)
	if err != nil {
		return Document{}, fmt.Errorf("fetch home page %s: %w", home, err)
	}
	first.PageType = PageHome
	doc.Pages = append(doc.Pages, first)
	seen := map[string]bool{canonical(first.URL): true}

	var targets []*url.URL
	for _, p := range CandidatePaths {
		if len(targets) >= s.cfg.MaxPages-1 {
			break
		}
		targets = append(targets, home.ResolveReference(&url.URL{Path: p}))
	}

	results, err := worker.ProcessAll(ctx, targets, func(ctx context.Context, u *url.URL) (Page, error) {
		return s.fetch(ctx, u, home.Host)
	}, worker.Options{
		Workers:        s.cfg.Workers,
		MaxRetries:     1,
		RequestTimeout: s.cfg.Timeout,
		Limiter:        limiter,
		BackoffInitial: 250 * time.Millisecond,
	})
	if err != nil && ctx.Err() != nil {
		return Document{}, ctx.Err()
	}
	for _, r := range results {
		if r.Err != nil {
			doc.Errors = append(doc.Errors, PageError{URL: r.Input.String(), Message: r.Err.Error()})
			continue
		}
		key := canonical(r.Output.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		doc.Pages = append(doc.Pages, r.Output)
	}

	doc.Meta.PageCount = len(doc.Pages)
	doc.Meta.DurationMS = s.cfg.Now().Sub(start).Milliseconds()
	s.log.WithFields(logrus.Fields{
		"website": home.String(),
		"pages":   doc.Meta.PageCount,
		"errors":  len(doc.Errors),
	}).Info("scrape done")
	return doc, nil
}

func (s *Scraper) fetch(ctx context.Context, u *url.URL, host string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.hc.Do(req)
	if err != nil {
		return Page{}, worker.Transient(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5:
		return Page{}, worker.Transient(fmt.Errorf("GET %s: status=%d", u, resp.StatusCode))
	case resp.StatusCode/100 != 2:
		return Page{}, &errSkip{msg: fmt.Sprintf("GET %s: status=%d", u, resp.StatusCode)}
	}
	final := resp.Request.URL
	if !sameSite(final.Host, host) {
		return Page{}, &errSkip{msg: fmt.Sprintf("GET %s: redirected off site to %s", u, final.Host)}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if mt != "text/html" && mt != "application/xhtml+xml" {
			return Page{}, &errSkip{msg: fmt.Sprintf("GET %s: not an HTML page (%s)", u, mt)}
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Page{}, worker.Transient(err)
	}
	page, err := extract(body, final, s.cfg.MaxTextChars)
	if err != nil {
		return Page{}, &errSkip{msg: fmt.Sprintf("parse %s: %v", final, err)}
	}
	return page, nil
}

// IsSkipped reports whether err describes an unusable page rather than a fetch failure.
func IsSkipped(err error) bool {
	var e *errSkip
	return errors.As(err, &e)
}

// NormalizeWebsite parses a website, adding https:// when no scheme is given.
func NormalizeWebsite(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("website is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid website %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid website %q: unsupported scheme", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid website %q: missing host", raw)
	}
	u.Fragment = ""
	u.RawQuery = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

func sameSite(a, b string) bool {
	trim := func(h string) string { return strings.TrimPrefix(strings.ToLower(h), "www.") }
	return trim(a) == trim(b)
}

func canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.") + strings.TrimSuffix(u.Path, "/")
}
