// Package httpsource fetches the latest hotspot CSV over HTTP, either from a
// direct CSV URL or from an HTML directory listing of CSV files.
package httpsource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/csvbatch"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

// Source reads batches from an HTTP endpoint.
type Source struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an HTTP source.
func New(endpoint string, timeout time.Duration, logger *slog.Logger) *Source {
	return &Source{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchLatestBatch downloads the endpoint. A CSV response is decoded directly.
// An HTML listing is scanned for links to .csv files and the one with the
// greatest file name is fetched; INPE names embed a YYYYMMDD_HHMM stamp so
// that is the newest. 404s, unreachable hosts and listings without CSV links
// are ErrInputUnavailable.
func (s *Source) FetchLatestBatch(ctx context.Context) (domain.Batch, error) {
	resp, err := s.get(ctx, s.endpoint)
	if err != nil {
		return domain.Batch{}, err
	}
	defer resp.Body.Close()

	if isCSV(resp) {
		return s.decode(resp)
	}

	link, err := latestCSVLink(resp.Body, resp.Request.URL)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("parse listing %s: %w", s.endpoint, err)
	}
	if link == "" {
		return domain.Batch{}, fmt.Errorf("no csv links in %s: %w", s.endpoint, domain.ErrInputUnavailable)
	}
	s.logger.Info("latest batch in listing", "url", link)

	csvResp, err := s.get(ctx, link)
	if err != nil {
		return domain.Batch{}, err
	}
	defer csvResp.Body.Close()

	return s.decode(csvResp)
}

func (s *Source) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %w", rawURL, domain.ErrInputUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d: %w", rawURL, resp.StatusCode, domain.ErrInputUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return resp, nil
}

func (s *Source) decode(resp *http.Response) (domain.Batch, error) {
	source := resp.Request.URL.String()
	s.logger.Info("reading hotspot batch", "url", source)
	return csvbatch.Decode(resp.Body, source)
}

func isCSV(resp *http.Response) bool {
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		switch mt {
		case "text/csv", "application/csv", "text/comma-separated-values":
			return true
		case "text/html":
			return false
		}
	}
	return strings.EqualFold(path.Ext(resp.Request.URL.Path), ".csv")
}

// latestCSVLink returns the absolute URL of the .csv link with the greatest
// base name, or "" when the document links to none.
func latestCSVLink(r io.Reader, base *url.URL) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var (
		best     *url.URL
		bestName string
	)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(attr.Val))
				if err != nil || !strings.EqualFold(path.Ext(ref.Path), ".csv") {
					continue
				}
				abs := base.ResolveReference(ref)
				if name := path.Base(abs.Path); best == nil || name > bestName {
					best, bestName = abs, name
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if best == nil {
		return "", nil
	}
	return best.String(), nil
}
