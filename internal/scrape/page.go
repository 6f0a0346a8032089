package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/shortlist/internal/fetch"
	"github.com/jonathan/shortlist/internal/retry"
	"github.com/jonathan/shortlist/internal/types"
)

// PagePolicy retries page fetches that failed in transport or with 429/5xx.
var PagePolicy = retry.Policy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    4 * time.Second,
}

// PageScraper reads public profile pages directly. Pages whose HTTP
// rendering is too thin are re-rendered with a headless browser.
type PageScraper struct {
	FetchOptions *fetch.Options
	Renderer     fetch.Renderer // nil disables the browser fallback
	Policy       retry.Policy   // zero value means a single attempt
	Concurrency  int
	Verbose      bool
}

// NewPageScraper creates a page scraper with headless rendering enabled.
func NewPageScraper(verbose bool) *PageScraper {
	return &PageScraper{
		FetchOptions: fetch.DefaultOptions(),
		Renderer:     fetch.Browser{Verbose: verbose},
		Policy:       PagePolicy,
		Concurrency:  3,
		Verbose:      verbose,
	}
}

// Scrape fetches each URL independently. Individual page failures are
// reported in FailedURLs; only cancellation fails the batch.
func (s *PageScraper) Scrape(ctx context.Context, urls []string) (*Result, error) {
	profiles := make([]*types.ScrapedProfile, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, u := range urls {
		g.Go(func() error {
			p, err := s.scrapeOne(gctx, u)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Printf("[scrape] %s: %v", u, err)
				return nil
			}
			profiles[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("profile scraping interrupted: %w", err)
	}

	res := &Result{}
	for i, p := range profiles {
		if p == nil {
			res.FailedURLs = append(res.FailedURLs, urls[i])
			continue
		}
		res.Profiles = append(res.Profiles, *p)
	}
	return res, nil
}

func (s *PageScraper) scrapeOne(ctx context.Context, url string) (*types.ScrapedProfile, error) {
	html := ""
	text := ""

	fr, err := s.fetchPage(ctx, url)
	if err == nil {
		html = fr.HTML
		text, _ = fetch.ExtractMainText(html, fetch.ProfileSelectors())
	} else if s.Renderer == nil {
		return nil, err
	}

	if s.Renderer != nil && fetch.ShouldUseBrowser(text) {
		rendered, rerr := s.Renderer.Render(ctx, url)
		switch {
		case rerr == nil:
			html = rendered
		case html == "":
			return nil, fmt.Errorf("page unavailable: %w", rerr)
		default:
			if s.Verbose {
				log.Printf("[scrape] browser fallback failed for %s, using HTTP body: %v", url, rerr)
			}
		}
	}

	p, err := ParseProfileHTML(html)
	if err != nil {
		return nil, err
	}
	p.LinkedInURL = url
	return p, nil
}

func (s *PageScraper) fetchPage(ctx context.Context, url string) (*fetch.Result, error) {
	return retry.Do(ctx, s.Policy, func(ctx context.Context) (*fetch.Result, error) {
		fr, err := fetch.URL(ctx, url, s.FetchOptions)
		if err != nil {
			var fe *fetch.Error
			if errors.As(err, &fe) && !fe.Retryable() {
				return nil, retry.Permanent(err)
			}
		}
		return fr, err
	})
}

// ParseProfileHTML extracts a profile from a public profile page.
// JSON-LD Person data wins; Open Graph tags fill the gaps.
func ParseProfileHTML(html string) (*types.ScrapedProfile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := &types.ScrapedProfile{}
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		person := findPerson([]byte(sel.Text()))
		if person == nil {
			return true
		}
		person.apply(p)
		return false
	})

	if p.FirstName == "" && p.LastName == "" {
		title := metaContent(doc, "og:title")
		if title == "" {
			title = strings.TrimSpace(doc.Find("title").First().Text())
		}
		name, headline := splitTitle(title)
		p.FirstName, p.LastName = splitName(name)
		if p.Headline == "" {
			p.Headline = headline
		}
	}
	if p.Summary == "" {
		p.Summary = metaContent(doc, "og:description")
	}

	if p.FirstName == "" && p.LastName == "" {
		return nil, fmt.Errorf("no profile data found on page")
	}
	return p, nil
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property=%q]`, property))
	if sel.Length() == 0 {
		sel = doc.Find(fmt.Sprintf(`meta[name=%q]`, property))
	}
	v, _ := sel.First().Attr("content")
	return strings.TrimSpace(v)
}

// splitTitle handles titles like "Ada Lovelace - Analyst - Engines Ltd | LinkedIn".
func splitTitle(title string) (name, headline string) {
	if i := strings.LastIndex(title, "|"); i >= 0 {
		title = title[:i]
	}
	parts := strings.SplitN(title, " - ", 2)
	name = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		headline = strings.TrimSpace(parts[1])
	}
	return name, headline
}

func splitName(name string) (first, last string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

type ldOrg struct {
	Name string `json:"name"`
}

// ldOrgs accepts either a single organization object or a list.
type ldOrgs []ldOrg

func (o *ldOrgs) UnmarshalJSON(data []byte) error {
	var list []ldOrg
	if err := json.Unmarshal(data, &list); err == nil {
		*o = list
		return nil
	}
	var one ldOrg
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = ldOrgs{one}
	return nil
}

type ldPerson struct {
	Type        any     `json:"@type"`
	Name        string  `json:"name"`
	GivenName   string  `json:"givenName"`
	FamilyName  string  `json:"familyName"`
	JobTitle    any     `json:"jobTitle"`
	Description string  `json:"description"`
	WorksFor    ldOrgs  `json:"worksFor"`
	AlumniOf    ldOrgs  `json:"alumniOf"`
	Address     struct {
		Locality string `json:"addressLocality"`
		Country  string `json:"addressCountry"`
	} `json:"address"`
}

func (lp *ldPerson) isPerson() bool {
	switch t := lp.Type.(type) {
	case string:
		return t == "Person"
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == "Person" {
				return true
			}
		}
	}
	return false
}

func (lp *ldPerson) apply(p *types.ScrapedProfile) {
	p.FirstName, p.LastName = lp.GivenName, lp.FamilyName
	if p.FirstName == "" && p.LastName == "" {
		p.FirstName, p.LastName = splitName(lp.Name)
	}
	switch jt := lp.JobTitle.(type) {
	case string:
		p.Headline = jt
	case []any:
		var titles []string
		for _, v := range jt {
			if s, ok := v.(string); ok {
				titles = append(titles, s)
			}
		}
		p.Headline = strings.Join(titles, ", ")
	}
	p.Summary = lp.Description
	loc := []string{}
	if lp.Address.Locality != "" {
		loc = append(loc, lp.Address.Locality)
	}
	if lp.Address.Country != "" {
		loc = append(loc, lp.Address.Country)
	}
	p.Location = strings.Join(loc, ", ")
	for _, org := range lp.WorksFor {
		if org.Name != "" {
			p.Experience = append(p.Experience, types.Experience{Company: org.Name})
		}
	}
	for _, org := range lp.AlumniOf {
		if org.Name != "" {
			p.Education = append(p.Education, types.Education{School: org.Name})
		}
	}
}

// findPerson looks for a Person node at the top level or inside @graph.
func findPerson(raw []byte) *ldPerson {
	var single ldPerson
	if err := json.Unmarshal(raw, &single); err == nil && single.isPerson() {
		return &single
	}

	var graph struct {
		Graph []json.RawMessage `json:"@graph"`
	}
	if err := json.Unmarshal(raw, &graph); err != nil {
		return nil
	}
	for _, node := range graph.Graph {
		var lp ldPerson
		if err := json.Unmarshal(node, &lp); err == nil && lp.isPerson() {
			return &lp
		}
	}
	return nil
}
