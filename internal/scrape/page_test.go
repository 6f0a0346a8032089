package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/shortlist/internal/fetch"
	"github.com/jonathan/shortlist/internal/retry"
)

const ldProfilePage = `<html><head>
<title>Ada Lovelace - Analyst | LinkedIn</title>
<script type="application/ld+json">
{"@context":"http://schema.org","@graph":[
  {"@type":"WebPage","name":"ignored"},
  {"@type":"Person","name":"Ada King Lovelace","jobTitle":["Analyst","Writer"],
   "address":{"addressLocality":"London","addressCountry":"GB"},
   "worksFor":{"name":"Engines Ltd"},
   "alumniOf":[{"name":"Home School"}],
   "description":"First programmer."}
]}
</script>
</head><body><main>Ada</main></body></html>`

const ogProfilePage = `<html><head>
<meta property="og:title" content="Grace Hopper - Rear Admiral - US Navy | LinkedIn">
<meta property="og:description" content="Compiler pioneer.">
</head><body></body></html>`

func TestParseProfileHTML_JSONLD(t *testing.T) {
	p, err := ParseProfileHTML(ldProfilePage)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "King Lovelace", p.LastName)
	assert.Equal(t, "Analyst, Writer", p.Headline)
	assert.Equal(t, "London, GB", p.Location)
	assert.Equal(t, "First programmer.", p.Summary)
	require.Len(t, p.Experience, 1)
	assert.Equal(t, "Engines Ltd", p.Experience[0].Company)
	require.Len(t, p.Education, 1)
	assert.Equal(t, "Home School", p.Education[0].School)
}

func TestParseProfileHTML_OpenGraph(t *testing.T) {
	p, err := ParseProfileHTML(ogProfilePage)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", p.FullName())
	assert.Equal(t, "Rear Admiral - US Navy", p.Headline)
	assert.Equal(t, "Compiler pioneer.", p.Summary)
}

func TestParseProfileHTML_NoData(t *testing.T) {
	_, err := ParseProfileHTML("<html><body><p>Sign in to view</p></body></html>")
	assert.Error(t, err)
}

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.html, f.err
}

func TestPageScraper_Scrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in/ada":
			_, _ = w.Write([]byte(ldProfilePage + strings.Repeat("<p>filler text</p>", 60)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	s := &PageScraper{FetchOptions: fetch.DefaultOptions(), Concurrency: 2}
	urls := []string{server.URL + "/in/ada", server.URL + "/in/gone"}

	res, err := s.Scrape(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, res.Profiles, 1)
	assert.Equal(t, urls[0], res.Profiles[0].LinkedInURL)
	assert.Equal(t, []string{urls[1]}, res.FailedURLs)
}

func TestPageScraper_BrowserFallbackForThinPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>Loading...</body></html>"))
	}))
	defer server.Close()

	renderer := &fakeRenderer{html: ogProfilePage}
	s := &PageScraper{FetchOptions: fetch.DefaultOptions(), Renderer: renderer}

	res, err := s.Scrape(context.Background(), []string{server.URL + "/in/grace"})
	require.NoError(t, err)
	assert.Equal(t, 1, renderer.calls)
	require.Len(t, res.Profiles, 1)
	assert.Equal(t, "Grace Hopper", res.Profiles[0].FullName())
}

func TestPageScraper_RenderFailureWithoutBodyFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	renderer := &fakeRenderer{err: errors.New("no chrome")}
	s := &PageScraper{FetchOptions: fetch.DefaultOptions(), Renderer: renderer}

	res, err := s.Scrape(context.Background(), []string{server.URL + "/in/x"})
	require.NoError(t, err)
	assert.Empty(t, res.Profiles)
	assert.Len(t, res.FailedURLs, 1)
}

func TestPageScraper_CancelledContextFailsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &PageScraper{FetchOptions: fetch.DefaultOptions()}
	_, err := s.Scrape(ctx, []string{"https://www.linkedin.com/in/ada"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPageScraper_RetriesTransientStatus(t *testing.T) {
	tests := []struct {
		name      string
		firstCode int
		wantHits  int32
		wantFound bool
	}{
		{name: "503 then ok", firstCode: http.StatusServiceUnavailable, wantHits: 2, wantFound: true},
		{name: "429 then ok", firstCode: http.StatusTooManyRequests, wantHits: 2, wantFound: true},
		{name: "404 is not retried", firstCode: http.StatusNotFound, wantHits: 1, wantFound: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if hits.Add(1) == 1 {
					w.WriteHeader(tt.firstCode)
					return
				}
				_, _ = w.Write([]byte(ldProfilePage + strings.Repeat("<p>filler text</p>", 60)))
			}))
			defer server.Close()

			s := &PageScraper{
				FetchOptions: fetch.DefaultOptions(),
				Policy:       retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
			}
			res, err := s.Scrape(context.Background(), []string{server.URL + "/in/ada"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantHits, hits.Load())
			if tt.wantFound {
				require.Len(t, res.Profiles, 1)
				assert.Equal(t, "Ada", res.Profiles[0].FirstName)
			} else {
				assert.Len(t, res.FailedURLs, 1)
			}
		})
	}
}
