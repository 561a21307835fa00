package crawler

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
)

const (
	seedFetchTimeout = 10 * time.Second
	maxSeedBody      = 10 << 20 // 10 MiB per sitemap fetch
	maxSitemapDepth  = 3
	maxSeeds         = 500
)

// Seeder discovers extra start URLs passively, from robots.txt and the
// sitemaps it references, before the browser ever touches the target. Seeds
// are fed into the crawl at depth 1.
type Seeder struct {
	client *http.Client
	scope  ScopeManager
	logger *zap.Logger
}

// NewSeeder builds a seeder over the given scope. A nil client gets a
// default with a bounded timeout.
func NewSeeder(client *http.Client, scope ScopeManager, logger *zap.Logger) *Seeder {
	if client == nil {
		client = &http.Client{Timeout: seedFetchTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{client: client, scope: scope, logger: logger.Named("Seeder")}
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// Seed fetches robots.txt, follows every sitemap it names (plus the
// conventional /sitemap.xml), and returns the in-scope URLs found. Errors
// are absorbed; a target with no robots or sitemap simply yields nothing.
func (s *Seeder) Seed(ctx context.Context, startURL string) []string {
	u, err := url.Parse(startURL)
	if err != nil || u.Host == "" {
		return nil
	}
	base := u.Scheme + "://" + u.Host

	sitemaps := []string{base + "/sitemap.xml"}
	var seeds []string

	if body, err := s.fetch(ctx, base+"/robots.txt"); err == nil {
		robotSeeds, robotMaps := parseRobots(base, string(body))
		seeds = append(seeds, robotSeeds...)
		sitemaps = append(sitemaps, robotMaps...)
	} else {
		s.logger.Debug("robots.txt unavailable", zap.Error(err))
	}

	seen := make(map[string]bool)
	for _, sm := range sitemaps {
		if !seen[sm] {
			seen[sm] = true
			seeds = append(seeds, s.walkSitemap(ctx, sm, 0)...)
		}
	}

	var kept []string
	for _, raw := range seeds {
		if len(kept) >= maxSeeds {
			break
		}
		parsed, err := url.Parse(raw)
		if err != nil || !s.scope.IsInScope(parsed) {
			continue
		}
		kept = append(kept, raw)
	}

	s.logger.Info("Passive seeding complete",
		zap.Int("sitemaps", len(seen)), zap.Int("seeds", len(kept)))
	return kept
}

// parseRobots pulls Sitemap: references and literal Allow/Disallow paths out
// of a robots.txt body. Wildcarded paths are clipped at the first wildcard.
func parseRobots(base, body string) (seeds, sitemaps []string) {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "sitemap:"):
			if sm := strings.TrimSpace(line[len("sitemap:"):]); sm != "" {
				sitemaps = append(sitemaps, sm)
			}
		case strings.HasPrefix(lower, "disallow:"), strings.HasPrefix(lower, "allow:"):
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				continue
			}
			path := strings.TrimSpace(parts[1])
			if !strings.HasPrefix(path, "/") {
				continue
			}
			path = strings.Split(path, "*")[0]
			path = strings.Split(path, "?")[0]
			if len(path) > 1 {
				seeds = append(seeds, base+path)
			}
		}
	}
	return seeds, sitemaps
}

// walkSitemap parses one sitemap document, recursing into index entries.
func (s *Seeder) walkSitemap(ctx context.Context, sitemapURL string, depth int) []string {
	if depth > maxSitemapDepth {
		return nil
	}
	body, err := s.fetch(ctx, sitemapURL)
	if err != nil {
		s.logger.Debug("Failed to fetch sitemap",
			zap.String("url", sitemapURL), zap.Error(err))
		return nil
	}

	var index sitemapIndex
	if xml.Unmarshal(body, &index) == nil && index.XMLName.Local == "sitemapindex" {
		var urls []string
		for _, ref := range index.Sitemaps {
			loc := strings.TrimSpace(ref.Loc)
			if loc == "" {
				continue
			}
			if parsed, err := url.Parse(loc); err != nil || !s.scope.IsInScope(parsed) {
				continue
			}
			urls = append(urls, s.walkSitemap(ctx, loc, depth+1)...)
		}
		return urls
	}

	var set urlSet
	if xml.Unmarshal(body, &set) == nil && set.XMLName.Local == "urlset" {
		urls := make([]string, 0, len(set.URLs))
		for _, entry := range set.URLs {
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}
		return urls
	}

	s.logger.Debug("Unrecognized sitemap format", zap.String("url", sitemapURL))
	return nil
}

// fetch GETs the URL advertising gzip and brotli support and returns the
// decoded body.
func (s *Seeder) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body of %s: %w", rawURL, err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	return io.ReadAll(io.LimitReader(reader, maxSeedBody))
}
