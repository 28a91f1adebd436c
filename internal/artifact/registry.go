// Package artifact — доступ к artifact registry, где публикуются пакеты
// business-репозиториев.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Ошибки registry.
var (
	// ErrNoVersions — у пакета нет ни одной валидной semver-версии.
	ErrNoVersions = errors.New("no published versions")

	// ErrRegistry — registry вернул неожиданный ответ.
	ErrRegistry = errors.New("artifact registry request failed")
)

// Registry — запрос последней версии пакета.
type Registry interface {
	// LatestVersion возвращает наибольшую semver-версию пакета
	// packageName в репозитории repoID.
	LatestVersion(ctx context.Context, repoID int, packageName string) (string, error)
}

// HTTPRegistry — Registry поверх HTTP API:
//
//	GET {base}/api/v1/repositories/{repoId}/packages/{name}/versions
//	→ {"versions": ["1.0.0", "1.2.0", ...]}
type HTTPRegistry struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// Config — конфигурация HTTPRegistry.
type Config struct {
	// BaseURL — адрес registry (обязателен).
	BaseURL string

	// Token — bearer-токен, если registry требует авторизацию.
	Token string

	// HTTPClient (default: таймаут 15s).
	HTTPClient *http.Client

	// Logger
	Logger *slog.Logger
}

// NewHTTPRegistry создаёт HTTPRegistry.
func NewHTTPRegistry(cfg Config) *HTTPRegistry {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &HTTPRegistry{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger.With("component", "artifact"),
	}
}

type versionsResponse struct {
	Versions []string `json:"versions"`
}

// LatestVersion запрашивает список версий и выбирает наибольшую.
func (r *HTTPRegistry) LatestVersion(ctx context.Context, repoID int, packageName string) (string, error) {
	endpoint := r.baseURL + "/api/v1/repositories/" + strconv.Itoa(repoID) +
		"/packages/" + url.PathEscape(packageName) + "/versions"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("query versions of %s: %w", packageName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s in repository %d", ErrNoVersions, packageName, repoID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: status %d: %s", ErrRegistry, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out versionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrRegistry, err)
	}

	latest, err := Latest(out.Versions)
	if err != nil {
		return "", fmt.Errorf("%w: %s in repository %d", err, packageName, repoID)
	}

	r.logger.Debug("latest version resolved", "repo_id", repoID, "package", packageName, "version", latest)
	return latest, nil
}

// Latest возвращает наибольшую версию из списка, сохраняя исходное
// написание. Невалидные версии пропускаются.
func Latest(versions []string) (string, error) {
	var (
		best    *semver.Version
		bestRaw string
	)

	for _, raw := range versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestRaw = raw
		}
	}

	if best == nil {
		return "", ErrNoVersions
	}
	return bestRaw, nil
}
