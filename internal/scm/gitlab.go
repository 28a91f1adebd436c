package scm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/telemetry"
)

// Значения по умолчанию.
const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 10
	defaultBurst     = 5
	treePageSize     = 100
	maxErrorBody     = 4 * 1024
)

// GitLab — Client поверх GitLab REST API v4.
type GitLab struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// GitLabOptions — общие настройки GitLab-клиентов.
type GitLabOptions struct {
	// HTTPClient — HTTP клиент (default: таймаут 30s).
	HTTPClient *http.Client

	// RateLimit — запросов в секунду (default: 10).
	RateLimit float64

	// Burst — размер всплеска (default: 5).
	Burst int

	// Logger
	Logger *slog.Logger
}

func (o *GitLabOptions) defaults() {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if o.RateLimit <= 0 {
		o.RateLimit = defaultRateLimit
	}
	if o.Burst <= 0 {
		o.Burst = defaultBurst
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// NewGitLab создаёт клиент для одного GitLab-инстанса.
func NewGitLab(cfg domain.GitLabConfig, opts GitLabOptions) *GitLab {
	opts.defaults()
	return newGitLab(cfg, opts, rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst))
}

func newGitLab(cfg domain.GitLabConfig, opts GitLabOptions, limiter *rate.Limiter) *GitLab {
	return &GitLab{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		token:   cfg.APIToken,
		client:  opts.HTTPClient,
		limiter: limiter,
		logger:  opts.Logger.With("component", "scm"),
	}
}

// NewGitLabFactory возвращает Factory, клиенты которой делят один
// rate limiter.
func NewGitLabFactory(opts GitLabOptions) Factory {
	opts.defaults()
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst)

	return func(cfg domain.GitLabConfig) Client {
		return newGitLab(cfg, opts, limiter)
	}
}

// ListTree возвращает элементы каталога, обходя все страницы.
func (g *GitLab) ListTree(ctx context.Context, projectID int, ref, path string, recursive bool) ([]TreeEntry, error) {
	var entries []TreeEntry
	page := "1"

	for page != "" {
		q := url.Values{}
		q.Set("ref", ref)
		q.Set("path", path)
		q.Set("recursive", strconv.FormatBool(recursive))
		q.Set("per_page", strconv.Itoa(treePageSize))
		q.Set("page", page)

		var batch []TreeEntry
		resp, err := g.do(ctx, "list_tree", http.MethodGet, g.projectURL(projectID, "/repository/tree")+"?"+q.Encode(), nil, &batch)
		if err != nil {
			return nil, err
		}

		entries = append(entries, batch...)
		page = resp.Header.Get("X-Next-Page")
	}

	return entries, nil
}

// fileResponse — ответ GET /repository/files/:path.
type fileResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// ReadFile читает файл на ref.
func (g *GitLab) ReadFile(ctx context.Context, projectID int, path, ref string) ([]byte, error) {
	endpoint := g.projectURL(projectID, "/repository/files/"+url.PathEscape(path)) + "?ref=" + url.QueryEscape(ref)

	var file fileResponse
	if _, err := g.do(ctx, "read_file", http.MethodGet, endpoint, nil, &file); err != nil {
		return nil, err
	}

	if file.Encoding != "" && file.Encoding != "base64" {
		return []byte(file.Content), nil
	}

	content, err := base64.StdEncoding.DecodeString(file.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return content, nil
}

// CreateBranch создаёт ветку branch от ref.
func (g *GitLab) CreateBranch(ctx context.Context, projectID int, branch, ref string) error {
	q := url.Values{}
	q.Set("branch", branch)
	q.Set("ref", ref)

	_, err := g.do(ctx, "create_branch", http.MethodPost, g.projectURL(projectID, "/repository/branches")+"?"+q.Encode(), nil, nil)
	if err != nil {
		return err
	}

	g.logger.Info("branch created", "project_id", projectID, "branch", branch, "ref", ref)
	return nil
}

// commitRequest — тело POST /repository/commits.
type commitRequest struct {
	Branch        string         `json:"branch"`
	CommitMessage string         `json:"commit_message"`
	Actions       []CommitAction `json:"actions"`
}

// CreateCommit создаёт коммит.
func (g *GitLab) CreateCommit(ctx context.Context, projectID int, branch, message string, actions []CommitAction) error {
	body := commitRequest{Branch: branch, CommitMessage: message, Actions: actions}

	_, err := g.do(ctx, "create_commit", http.MethodPost, g.projectURL(projectID, "/repository/commits"), body, nil)
	if err != nil {
		return err
	}

	g.logger.Info("commit created", "project_id", projectID, "branch", branch, "files", len(actions))
	return nil
}

func (g *GitLab) projectURL(projectID int, suffix string) string {
	return g.baseURL + "/projects/" + strconv.Itoa(projectID) + suffix
}

// errorResponse — тело ошибки GitLab.
type errorResponse struct {
	Message any `json:"message"`
	Error   any `json:"error"`
}

// do выполняет запрос и декодирует JSON-ответ в out (если out != nil).
func (g *GitLab) do(ctx context.Context, op, method, endpoint string, body, out any) (*http.Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("PRIVATE-TOKEN", g.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		telemetry.SCMRequests.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	telemetry.SCMRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, g.statusError(op, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode %s response: %w", op, err)
		}
	}

	return resp, nil
}

// statusError переводит не-2xx ответ в ошибку пакета.
func (g *GitLab) statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := strings.TrimSpace(string(data))
	var parsed errorResponse
	if json.Unmarshal(data, &parsed) == nil {
		switch {
		case parsed.Message != nil:
			message = fmt.Sprint(parsed.Message)
		case parsed.Error != nil:
			message = fmt.Sprint(parsed.Error)
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %s", ErrNotFound, op, message)
	case op == "create_branch" && strings.Contains(strings.ToLower(message), "already exists"):
		return fmt.Errorf("%w: %s", ErrBranchExists, message)
	default:
		return fmt.Errorf("%w: %s: status %d: %s", ErrRequest, op, resp.StatusCode, message)
	}
}
