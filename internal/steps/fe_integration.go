package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/shaiso/Integrator/internal/artifact"
	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/scm"
)

const (
	// StepIDFeIntegration — шаг обновления package info в FE-integration репозитории.
	StepIDFeIntegration = "fe-integration"

	releaseDir   = "release"
	ymlExt       = ".yml"
	indexFile    = "index.yml"
	commitFormat = "Update %s package info"
)

// RepoConfigProvider — конфигурация репозиториев продукта.
type RepoConfigProvider interface {
	GetFeIntegrationRepoConfig(ctx context.Context, product string) (domain.RepoConfig, error)
	GetBusinessRepoConfig(ctx context.Context, product string) (map[string]domain.RepoConfig, error)
}

// InvalidPackageInfoError — в yml репозитория нет package.name/package.version.
type InvalidPackageInfoError struct {
	Repo string
	Err  error
}

// Error реализует интерфейс error.
func (e *InvalidPackageInfoError) Error() string {
	return fmt.Sprintf("invalid package info for repository %s: %v", e.Repo, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *InvalidPackageInfoError) Unwrap() error {
	return e.Err
}

// RepoConfigNotFoundError — нет записи репозитория в business-repo.json.
type RepoConfigNotFoundError struct {
	Repo string
}

// Error реализует интерфейс error.
func (e *RepoConfigNotFoundError) Error() string {
	return fmt.Sprintf("repository config not found: %s", e.Repo)
}

// RepoParam — пара name/version для одного business-репозитория.
type RepoParam struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// repoEntry — репозиторий в порядке обнаружения.
type repoEntry struct {
	Repo string
	RepoParam
}

// feIntegrationParams — параметры шага.
type feIntegrationParams struct {
	Product            string `json:"product" validate:"required"`
	BaselineBranch     string `json:"baselineBranch" validate:"required"`
	TargetBranch       string `json:"targetBranch" validate:"required"`
	BusinessRepoParams any    `json:"businessRepoParams"`

	repoParams map[string]any
}

// FeIntegrationStep обновляет package.name/package.version business-репозиториев
// в FE-integration репозитории продукта.
//
// Параметры:
//
//	{
//	    "baselineBranch": "main",
//	    "targetBranch": "release/2024.03",
//	    "businessRepoParams": {
//	        "portal": {"name": "[auto]", "version": "1.4.0"},
//	        "admin":  {"name": "@web/admin", "version": "[auto]"}
//	    }
//	}
//
// Ключ "[auto]" в businessRepoParams означает auto для всех найденных
// репозиториев; остальные ключи при этом игнорируются.
//
// Выполнение: ветка targetBranch создаётся от baselineBranch, затем
// по одному коммиту на репозиторий. Отката нет: при ошибке посередине
// ветка и уже созданные коммиты остаются.
type FeIntegrationStep struct {
	configs   RepoConfigProvider
	scm       scm.Factory
	artifacts artifact.Registry
	logger    *slog.Logger
}

// FeIntegrationConfig — зависимости FeIntegrationStep.
type FeIntegrationConfig struct {
	Configs   RepoConfigProvider
	SCM       scm.Factory
	Artifacts artifact.Registry
	Logger    *slog.Logger
}

// NewFeIntegrationStep создаёт FeIntegrationStep.
func NewFeIntegrationStep(cfg FeIntegrationConfig) *FeIntegrationStep {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FeIntegrationStep{
		configs:   cfg.Configs,
		scm:       cfg.SCM,
		artifacts: cfg.Artifacts,
		logger:    cfg.Logger.With("step_id", StepIDFeIntegration),
	}
}

// ID возвращает идентификатор шага.
func (s *FeIntegrationStep) ID() string {
	return StepIDFeIntegration
}

// Validate проверяет product, baselineBranch и targetBranch.
func (s *FeIntegrationStep) Validate(req *Request) error {
	_, err := s.parseParams(req)
	return err
}

func (s *FeIntegrationStep) parseParams(req *Request) (*feIntegrationParams, error) {
	var p feIntegrationParams
	if err := decodeParams(StepIDFeIntegration, req.Params, &p); err != nil {
		return nil, err
	}
	p.Product = req.Product
	if err := validateStruct(StepIDFeIntegration, &p); err != nil {
		return nil, err
	}

	repoParams, err := toRepoParams(p.BusinessRepoParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: businessRepoParams: %v", ErrValidation, StepIDFeIntegration, err)
	}
	p.repoParams = repoParams

	return &p, nil
}

// toRepoParams приводит businessRepoParams к map[repo]значение.
// Допускается JSON-строка (параметр типа json из UI). Значения
// проверяются в reconcile, только для оставшихся репозиториев.
func toRepoParams(raw any) (map[string]any, error) {
	if s, ok := raw.(string); ok {
		if strings.TrimSpace(s) == "" {
			return map[string]any{}, nil
		}
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, err
		}
	}

	if raw == nil {
		return map[string]any{}, nil
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", raw)
	}
	return m, nil
}

// toRepoParam проверяет значение одного репозитория.
func toRepoParam(repo string, v any) (RepoParam, error) {
	fields, ok := v.(map[string]any)
	if !ok {
		return RepoParam{}, fmt.Errorf("%w: %s: businessRepoParams: %s: expected object, got %T",
			ErrValidation, StepIDFeIntegration, repo, v)
	}
	p := RepoParam{
		Name:    GetParamString(fields, "name"),
		Version: GetParamString(fields, "version"),
	}
	if p.Name == "" || p.Version == "" {
		return RepoParam{}, fmt.Errorf("%w: %s: businessRepoParams: %s: name and version are required",
			ErrValidation, StepIDFeIntegration, repo)
	}
	return p, nil
}

// Execute выполняет шаг.
func (s *FeIntegrationStep) Execute(ctx context.Context, req *Request) error {
	params, err := s.parseParams(req)
	if err != nil {
		return err
	}
	logger := s.logger.With("product", params.Product, "target_branch", params.TargetBranch)

	// 1. Конфигурация FE-integration репозитория
	repoCfg, err := s.configs.GetFeIntegrationRepoConfig(ctx, params.Product)
	if err != nil {
		return err
	}
	client := s.scm(repoCfg.GitLab)
	projectID := repoCfg.GitLab.ProjectID

	// 2. Поиск business-репозиториев
	discovered, err := s.discoverRepos(ctx, client, projectID, params)
	if err != nil {
		return err
	}
	logger.Debug("business repositories discovered", "count", len(discovered))

	// 3. Сверка с параметрами
	repos, err := reconcile(params.repoParams, discovered)
	if err != nil {
		return err
	}
	if err := req.Logf(ctx, "Repositories to update: %s", joinRepos(repos)); err != nil {
		return err
	}

	// 4-5. Чтение package info и заполнение [auto]
	if err := s.fillAuto(ctx, client, projectID, params, repos); err != nil {
		return err
	}

	// 6. Ветка и коммиты
	return s.apply(ctx, req, client, projectID, params, repos, logger)
}

// discoverRepos листит release/<product> и возвращает имена репозиториев
// в порядке листинга.
func (s *FeIntegrationStep) discoverRepos(ctx context.Context, client scm.Client, projectID int, p *feIntegrationParams) ([]string, error) {
	entries, err := client.ListTree(ctx, projectID, p.BaselineBranch, releasePath(p.Product), false)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", releasePath(p.Product), err)
	}

	repos := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type != scm.EntryBlob || !strings.HasSuffix(e.Name, ymlExt) || e.Name == indexFile {
			continue
		}
		repos = append(repos, strings.TrimSuffix(e.Name, ymlExt))
	}
	return repos, nil
}

// reconcile сводит входные параметры с найденными репозиториями.
//
// С ключом [auto] каждый найденный репозиторий получает {[auto], [auto]}.
// Иначе остаются только ключи, совпавшие с найденными. Порядок — порядок
// обнаружения. Проверяются только значения оставшихся ключей: прочие
// (включая все при [auto]) игнорируются.
func reconcile(input map[string]any, discovered []string) ([]repoEntry, error) {
	_, auto := input[domain.AutoValue]

	result := make([]repoEntry, 0, len(discovered))
	for _, repo := range discovered {
		if auto {
			result = append(result, repoEntry{
				Repo:      repo,
				RepoParam: RepoParam{Name: domain.AutoValue, Version: domain.AutoValue},
			})
			continue
		}
		v, ok := input[repo]
		if !ok {
			continue
		}
		p, err := toRepoParam(repo, v)
		if err != nil {
			return nil, err
		}
		result = append(result, repoEntry{Repo: repo, RepoParam: p})
	}
	return result, nil
}

// fillAuto читает package info на baseline и подставляет [auto]-значения.
func (s *FeIntegrationStep) fillAuto(ctx context.Context, client scm.Client, projectID int, p *feIntegrationParams, repos []repoEntry) error {
	var businessRepos map[string]domain.RepoConfig

	for i := range repos {
		entry := &repos[i]

		data, err := client.ReadFile(ctx, projectID, repoFilePath(p.Product, entry.Repo), p.BaselineBranch)
		if err != nil {
			return fmt.Errorf("read %s: %w", repoFilePath(p.Product, entry.Repo), err)
		}
		info, err := parsePackageInfo(data)
		if err != nil {
			return &InvalidPackageInfoError{Repo: entry.Repo, Err: err}
		}

		if entry.Name == domain.AutoValue {
			entry.Name = info.Name
		}
		if entry.Version != domain.AutoValue {
			continue
		}

		if businessRepos == nil {
			businessRepos, err = s.configs.GetBusinessRepoConfig(ctx, p.Product)
			if err != nil {
				return err
			}
		}
		repoCfg, ok := businessRepos[entry.Repo]
		if !ok {
			return &RepoConfigNotFoundError{Repo: entry.Repo}
		}

		version, err := s.artifacts.LatestVersion(ctx, repoCfg.Artifact.RepoID, packageName(repoCfg.Artifact, entry.Name))
		if err != nil {
			return fmt.Errorf("resolve version of %s: %w", entry.Repo, err)
		}
		entry.Version = version
	}

	return nil
}

// apply создаёт ветку и по коммиту на каждый репозиторий.
func (s *FeIntegrationStep) apply(ctx context.Context, req *Request, client scm.Client, projectID int, p *feIntegrationParams, repos []repoEntry, logger *slog.Logger) error {
	if err := client.CreateBranch(ctx, projectID, p.TargetBranch, p.BaselineBranch); err != nil {
		return fmt.Errorf("create branch %s: %w", p.TargetBranch, err)
	}
	if err := req.Logf(ctx, "Branch %s created from %s", p.TargetBranch, p.BaselineBranch); err != nil {
		return err
	}

	for _, entry := range repos {
		filePath := repoFilePath(p.Product, entry.Repo)

		original, err := client.ReadFile(ctx, projectID, filePath, p.TargetBranch)
		if err != nil {
			return fmt.Errorf("read %s: %w", filePath, err)
		}
		updated, err := rewritePackageInfo(original, packageInfo{Name: entry.Name, Version: entry.Version})
		if err != nil {
			return &InvalidPackageInfoError{Repo: entry.Repo, Err: err}
		}

		action := scm.CommitAction{Action: scm.ActionUpdate, FilePath: filePath, Content: string(updated)}
		if err := client.CreateCommit(ctx, projectID, p.TargetBranch, fmt.Sprintf(commitFormat, entry.Repo), []scm.CommitAction{action}); err != nil {
			return fmt.Errorf("commit %s: %w", entry.Repo, err)
		}

		logger.Info("package info updated", "repo", entry.Repo, "name", entry.Name, "version", entry.Version)
		if err := req.Logf(ctx, "Updated %s: %s@%s", entry.Repo, entry.Name, entry.Version); err != nil {
			return err
		}
	}

	return nil
}

func releasePath(product string) string {
	return path.Join(releaseDir, product)
}

func repoFilePath(product, repo string) string {
	return path.Join(releaseDir, product, repo+ymlExt)
}

// packageName — имя пакета в registry: pkgNamePrefix добавляется,
// если имя из yml его ещё не содержит.
func packageName(cfg domain.ArtifactConfig, name string) string {
	if cfg.PkgNamePrefix == "" || strings.HasPrefix(name, cfg.PkgNamePrefix) {
		return name
	}
	return cfg.PkgNamePrefix + name
}

func joinRepos(repos []repoEntry) string {
	if len(repos) == 0 {
		return "none"
	}
	names := make([]string, len(repos))
	for i, r := range repos {
		names[i] = r.Repo
	}
	return strings.Join(names, ", ")
}
