package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://api360.yandex.net"
	defaultPerPage = 1000

	// Delay between page fetches, required by the directory API rate limit.
	defaultPageDelay = time.Second
)

// User is one directory record. Read-only input for the whole run.
type User struct {
	ID        int64  `json:"id,string"`
	Nickname  string `json:"nickname"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"isAdmin"`
	IsRobot   bool   `json:"isRobot"`
	IsEnabled bool   `json:"isEnabled"`
}

type usersPage struct {
	Users   []User `json:"users"`
	Page    int    `json:"page"`
	Pages   int    `json:"pages"`
	PerPage int    `json:"perPage"`
	Total   int    `json:"total"`
}

// Options configures the directory client.
type Options struct {
	BaseURL   string
	OrgID     string
	Token     string
	PerPage   int
	PageDelay time.Duration
}

// Client reads the organization's user directory.
type Client struct {
	opts   Options
	client *http.Client
	logger *slog.Logger
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.PerPage <= 0 {
		opts.PerPage = defaultPerPage
	}
	if opts.PageDelay < 0 {
		opts.PageDelay = 0
	} else if opts.PageDelay == 0 {
		opts.PageDelay = defaultPageDelay
	}
	return &Client{
		opts:   opts,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Users fetches the complete flattened user list. The total page count is
// taken from the first page; remaining pages are fetched sequentially with
// the configured delay in between.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	first, err := c.usersPage(ctx, 1)
	if err != nil {
		return nil, err
	}

	users := first.Users
	for page := 2; page <= first.Pages; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.PageDelay):
		}

		p, err := c.usersPage(ctx, page)
		if err != nil {
			return nil, err
		}
		users = append(users, p.Users...)
		c.logger.Debug("fetched directory page", "page", page, "pages", first.Pages, "users", len(users))
	}

	c.logger.Info("directory listing complete", "users", len(users), "pages", first.Pages)
	return users, nil
}

func (c *Client) usersPage(ctx context.Context, page int) (usersPage, error) {
	endpoint := fmt.Sprintf("%s/directory/v1/org/%s/users", c.opts.BaseURL, url.PathEscape(c.opts.OrgID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return usersPage{}, err
	}
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(c.opts.PerPage))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "OAuth "+c.opts.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		return usersPage{}, fmt.Errorf("directory page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return usersPage{}, fmt.Errorf("directory page %d: %s: %s", page, resp.Status, body)
	}

	var p usersPage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return usersPage{}, fmt.Errorf("decode directory page %d: %w", page, err)
	}
	return p, nil
}
