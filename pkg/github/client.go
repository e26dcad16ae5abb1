package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/root4loot/goutils/log"
)

const (
	defaultUserAgent = "pageshots"
	perPage          = 100
)

var (
	// ErrMissingToken is returned by ListRepositories when the client has no
	// credential. Callers treat it as "nothing to do" rather than a failure.
	ErrMissingToken = errors.New("github token is not set")

	// ErrUnauthorized is returned when the API responds with HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")
)

// Client lists repositories through the GitHub REST API.
type Client struct {
	UserAgent string

	token   string
	baseURL string
}

// NewClient creates a GitHub client.
// baseURL is used for testing; pass empty string to use the real GitHub API.
func NewClient(token string, baseURL string) *Client {
	return &Client{
		UserAgent: defaultUserAgent,
		token:     strings.TrimSpace(token),
		baseURL:   strings.TrimSpace(baseURL),
	}
}

func (c *Client) api() (*gh.Client, error) {
	client := gh.NewClient(&http.Client{Timeout: 30 * time.Second}).WithAuthToken(c.token)
	client.UserAgent = c.UserAgent

	if c.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(c.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// ListRepositories returns the names of the repositories accessible to the
// token that are owned by owner, in API order, leaving out exclude.
//
// Pages are requested by number against the client's own base URL until
// the Link header carries no rel="next" relation. A next page that does not
// move forward, or any request error, stops pagination: the names
// collected so far are returned together with the error.
func (c *Client) ListRepositories(ctx context.Context, owner, exclude string) ([]string, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}

	client, err := c.api()
	if err != nil {
		return nil, err
	}

	var names []string
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	for page := 1; ; {
		repos, resp, err := client.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return names, fmt.Errorf("listing repositories (page %d): %w", page, apiError(err))
		}

		for _, repo := range repos {
			if repo.GetOwner().GetLogin() != owner || repo.GetName() == exclude {
				continue
			}
			names = append(names, repo.GetName())
		}

		log.Debugf("Fetched repository page %d (%d records, %d kept so far)", page, len(repos), len(names))

		if resp.NextPage == 0 {
			return names, nil
		}
		if resp.NextPage <= page {
			return names, fmt.Errorf("listing repositories: page %d links back to page %d", page, resp.NextPage)
		}
		page = resp.NextPage
		opts.Page = page
	}
}

// apiError maps a 401 response to ErrUnauthorized.
func apiError(err error) error {
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("github API error: %w", ErrUnauthorized)
	}
	return err
}
