package ghclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"stargazer/internal/metrics"
	"stargazer/internal/model"
	"stargazer/internal/tokens"
)

// Client fetches one page of star events for one tracked repo.
type Client interface {
	FetchPage(ctx context.Context, repo string, cred *tokens.Credential, page int) (Page, error)
}

// Page is the result of a single stargazers request. Quota is the credential
// budget snapshot parsed from the response headers; the caller propagates it
// back into the credential.
type Page struct {
	Records []model.StarEvent
	HasMore bool
	Quota   tokens.Quota
}

// HTTPClient talks to the GitHub REST API.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	perPage     int
	maxAttempts int
	baseBackoff time.Duration
	now         func() time.Time
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

func WithBaseURL(u string) Option              { return func(c *HTTPClient) { c.baseURL = u } }
func WithHTTPClient(h *http.Client) Option     { return func(c *HTTPClient) { c.httpClient = h } }
func WithPerPage(n int) Option                 { return func(c *HTTPClient) { c.perPage = n } }
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *HTTPClient) { c.maxAttempts = attempts; c.baseBackoff = base }
}

func NewHTTPClient(opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:     "https://api.github.com",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     newDefaultLimiter(),
		perPage:     100,
		maxAttempts: 5,
		baseBackoff: 500 * time.Millisecond,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type rawStargazer struct {
	StarredAt time.Time `json:"starred_at"`
	User      struct {
		Login     string `json:"login"`
		ID        int64  `json:"id"`
		AvatarURL string `json:"avatar_url"`
		HTMLURL   string `json:"html_url"`
	} `json:"user"`
}

// FetchPage requests one page of stargazers for repo. A full page means more
// may follow; a short or empty page ends pagination. A 422 is the API's 40k
// cap and also ends pagination. Rate-limit responses surface as
// *RateLimitError carrying the reset time; transient failures are retried
// with backoff before being returned.
func (c *HTTPClient) FetchPage(ctx context.Context, repo string, cred *tokens.Credential, page int) (Page, error) {
	var out Page
	if page < 1 {
		return out, fmt.Errorf("page index must be positive, got %d", page)
	}
	owner, name, err := model.SplitRepo(repo)
	if err != nil {
		return out, err
	}
	u := fmt.Sprintf("%s/repos/%s/%s/stargazers?per_page=%d&page=%d",
		c.baseURL, url.PathEscape(owner), url.PathEscape(name), c.perPage, page)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	c.auth(req, cred)
	if err := c.limiter.Wait(ctx); err != nil {
		return out, err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	out.Quota = quotaFromHeaders(resp.Header)
	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case isRateLimited(resp):
		return out, &RateLimitError{Reset: resetFromHeaders(resp.Header, c.now())}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// The API refuses to serve stargazers past its documented cap.
		return out, nil
	default:
		return out, fmt.Errorf("github api status %d for %s page %d", resp.StatusCode, repo, page)
	}

	var raw []rawStargazer
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return out, fmt.Errorf("decode stargazers page: %w", err)
	}
	extractedAt := c.now()
	out.Records = make([]model.StarEvent, 0, len(raw))
	for _, r := range raw {
		out.Records = append(out.Records, model.StarEvent{
			ActorLogin:  r.User.Login,
			ActorID:     r.User.ID,
			Repo:        repo,
			StarredAt:   r.StarredAt,
			AvatarURL:   r.User.AvatarURL,
			ProfileURL:  r.User.HTMLURL,
			ExtractedAt: extractedAt,
		})
	}
	out.HasMore = len(raw) == c.perPage
	return out, nil
}

func (c *HTTPClient) auth(req *http.Request, cred *tokens.Credential) {
	if cred != nil && cred.Token() != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token())
	}
	// star+json variant carries starred_at timestamps.
	req.Header.Set("Accept", "application/vnd.github.star+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "stargazer-elt")
}

// doWithRetry retries network errors and 5xx responses with exponential
// backoff and jitter. Rate-limit responses are not retried here; the runner
// owns that wait so it can switch credentials instead.
func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
				_ = resp.Body.Close()
				lastErr = fmt.Errorf("github api status %d", resp.StatusCode)
			} else {
				return resp, nil
			}
		} else {
			lastErr = err
		}
		if attempt == c.maxAttempts {
			break
		}
		metrics.APIRetries.Inc()
		wait := backoff
		// jitter +/-20%
		jitter := time.Duration(float64(wait) * 0.2)
		if jitter > 0 {
			wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, lastErr)
}
