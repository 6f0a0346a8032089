package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/shortlist/internal/linkedin"
	"github.com/jonathan/shortlist/internal/retry"
	"github.com/jonathan/shortlist/internal/types"
)

// DefaultAPITimeout bounds one call to the scraping service.
const DefaultAPITimeout = 2 * time.Minute

// APIPolicy retries transient scraping service failures.
var APIPolicy = retry.Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	MaxDelay:    8 * time.Second,
}

// StatusError is a non-2xx answer from the scraping service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scraping service returned status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the call is worth retrying.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// APIScraper calls an external batch scraping service.
type APIScraper struct {
	endpoint string
	apiKey   string
	client   *http.Client
	policy   retry.Policy
}

// NewAPIScraper creates a scraper for the service at endpoint.
func NewAPIScraper(endpoint, apiKey string) *APIScraper {
	return &APIScraper{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: DefaultAPITimeout},
		policy:   APIPolicy,
	}
}

// WithPolicy replaces the retry policy.
func (s *APIScraper) WithPolicy(p retry.Policy) *APIScraper {
	s.policy = p
	return s
}

type apiRequest struct {
	URLs []string `json:"urls"`
}

type apiExperience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
}

type apiEducation struct {
	School string `json:"school"`
	Degree string `json:"degree"`
	Field  string `json:"fieldOfStudy"`
}

type apiProfile struct {
	URL        string          `json:"url"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Headline   string          `json:"headline"`
	Location   string          `json:"location"`
	Experience []apiExperience `json:"experience"`
	Education  []apiEducation  `json:"education"`
	Skills     []string        `json:"skills"`
	Summary    string          `json:"summary"`
}

func (p apiProfile) toProfile() types.ScrapedProfile {
	out := types.ScrapedProfile{
		LinkedInURL: strings.TrimSpace(p.URL),
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Headline:    p.Headline,
		Location:    p.Location,
		Skills:      p.Skills,
		Summary:     p.Summary,
	}
	for _, e := range p.Experience {
		out.Experience = append(out.Experience, types.Experience(e))
	}
	for _, e := range p.Education {
		out.Education = append(out.Education, types.Education(e))
	}
	return out
}

// Scrape sends the whole batch in one request.
func (s *APIScraper) Scrape(ctx context.Context, urls []string) (*Result, error) {
	if len(urls) == 0 {
		return &Result{}, nil
	}

	body, err := json.Marshal(apiRequest{URLs: urls})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scrape request: %w", err)
	}

	profiles, err := retry.Do(ctx, s.policy, func(ctx context.Context) ([]apiProfile, error) {
		out, err := s.call(ctx, body)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.Transient() {
				return nil, retry.Permanent(err)
			}
			log.Printf("[scrape] scraping service call failed, may retry: %v", err)
		}
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scrape %d profiles: %w", len(urls), err)
	}

	return matchProfiles(urls, profiles), nil
}

func (s *APIScraper) call(ctx context.Context, body []byte) ([]apiProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraping service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read scraping response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	var profiles []apiProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to decode scraping response: %w", err))
	}
	return profiles, nil
}

// matchProfiles pairs returned profiles with requested URLs. Profiles with no
// URL are matched positionally; requested URLs without a profile are failures.
func matchProfiles(requested []string, profiles []apiProfile) *Result {
	byURL := make(map[string]types.ScrapedProfile, len(profiles))
	for i, p := range profiles {
		sp := p.toProfile()
		if sp.LinkedInURL == "" && i < len(requested) {
			sp.LinkedInURL = requested[i]
		}
		if sp.FirstName == "" && sp.LastName == "" {
			continue
		}
		key := linkedin.NormalizeURL(sp.LinkedInURL)
		if _, dup := byURL[key]; !dup {
			byURL[key] = sp
		}
	}

	res := &Result{}
	for _, u := range requested {
		sp, ok := byURL[linkedin.NormalizeURL(u)]
		if !ok {
			res.FailedURLs = append(res.FailedURLs, u)
			continue
		}
		sp.LinkedInURL = u
		res.Profiles = append(res.Profiles, sp)
	}
	return res
}
