package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/telemetry"
)

// Имена конфиг-файлов.
const (
	FileProduct           = "product.json"
	FileProcedure         = "procedure.json"
	FileStep              = "step.json"
	FileBusinessRepo      = "business-repo.json"
	FileFeIntegrationRepo = "fe-integration-repo.json"
)

// Provider — доступ к бизнес-конфигурации с TTL-кэшем.
//
// Безопасен для конкурентного использования.
type Provider struct {
	source Source
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// Config — конфигурация Provider.
type Config struct {
	// Source — откуда читать документы (обязателен).
	Source Source

	// Cache — кэш документов. Если nil, создаётся новый с TTL.
	Cache *Cache

	// TTL — время жизни записи, если Cache не задан (default: 60s).
	TTL time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт Provider.
func New(cfg Config) *Provider {
	if cfg.Cache == nil {
		cfg.Cache = NewCache(cfg.TTL, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Provider{
		source: cfg.Source,
		cache:  cfg.Cache,
		logger: cfg.Logger.With("component", "configstore"),
	}
}

// load возвращает байты документа из кэша или из Source.
func (p *Provider) load(ctx context.Context, name string) ([]byte, error) {
	if data, ok := p.cache.Get(name); ok {
		return data, nil
	}

	v, err, _ := p.group.Do(name, func() (any, error) {
		// Пока ждали, другая горутина могла обновить кэш
		if data, ok := p.cache.Get(name); ok {
			return data, nil
		}

		// Загрузку ждут и другие вызывающие: отмена первого её не прерывает
		data, err := p.source.Read(context.WithoutCancel(ctx), name)
		if err != nil {
			telemetry.ConfigLoads.WithLabelValues(name, telemetry.Result(err)).Inc()
			return nil, fmt.Errorf("%w: %s: %w", ErrConfigRead, name, err)
		}

		if !json.Valid(data) {
			telemetry.ConfigLoads.WithLabelValues(name, "invalid").Inc()
			return nil, fmt.Errorf("%w: %s: invalid JSON", ErrConfigParse, name)
		}

		p.cache.Set(name, data)
		telemetry.ConfigLoads.WithLabelValues(name, telemetry.Result(nil)).Inc()
		p.logger.Debug("config loaded", "file", name, "bytes", len(data))

		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]byte), nil
}

// get загружает документ name и декодирует его в out.
func (p *Provider) get(ctx context.Context, name string, out any) error {
	data, err := p.load(ctx, name)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfigParse, name, err)
	}
	return nil
}

// GetProductList возвращает список продуктов, отсортированный по id.
func (p *Provider) GetProductList(ctx context.Context) ([]domain.Product, error) {
	var products domain.ProductConfigRoot
	if err := p.get(ctx, FileProduct, &products); err != nil {
		return nil, err
	}

	list := make([]domain.Product, 0, len(products))
	for id, cfg := range products {
		list = append(list, domain.Product{ID: id, Name: cfg.Name})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	return list, nil
}

// GetProduct возвращает конфигурацию продукта.
func (p *Provider) GetProduct(ctx context.Context, product string) (domain.ProductConfig, error) {
	var products domain.ProductConfigRoot
	if err := p.get(ctx, FileProduct, &products); err != nil {
		return domain.ProductConfig{}, err
	}

	cfg, ok := products[product]
	if !ok {
		return domain.ProductConfig{}, &NotFoundError{Kind: KindProduct, ID: product}
	}
	return cfg, nil
}

// GetProcedureList возвращает procedures продукта с развёрнутыми шагами.
//
// Порядок procedures и шагов — как объявлено в конфигурации.
func (p *Provider) GetProcedureList(ctx context.Context, product string) ([]domain.Procedure, error) {
	// 1. Продукт должен существовать
	productCfg, err := p.GetProduct(ctx, product)
	if err != nil {
		return nil, err
	}

	// 2. Procedures и шаги
	var procedures domain.ProcedureConfigRoot
	if err := p.get(ctx, FileProcedure, &procedures); err != nil {
		return nil, err
	}
	var steps domain.StepConfigRoot
	if err := p.get(ctx, FileStep, &steps); err != nil {
		return nil, err
	}

	// 3. Разворачиваем ссылки
	list := make([]domain.Procedure, 0, len(productCfg.Procedures))
	for _, id := range productCfg.Procedures {
		proc, err := expandProcedure(id, procedures, steps)
		if err != nil {
			return nil, err
		}
		list = append(list, proc)
	}

	return list, nil
}

// GetProcedure возвращает одну procedure продукта с развёрнутыми шагами.
// Procedure, не привязанная к продукту, считается отсутствующей.
func (p *Provider) GetProcedure(ctx context.Context, product, procedureID string) (domain.Procedure, error) {
	productCfg, err := p.GetProduct(ctx, product)
	if err != nil {
		return domain.Procedure{}, err
	}

	linked := false
	for _, id := range productCfg.Procedures {
		if id == procedureID {
			linked = true
			break
		}
	}
	if !linked {
		return domain.Procedure{}, &NotFoundError{Kind: KindProcedure, ID: procedureID}
	}

	var procedures domain.ProcedureConfigRoot
	if err := p.get(ctx, FileProcedure, &procedures); err != nil {
		return domain.Procedure{}, err
	}
	var steps domain.StepConfigRoot
	if err := p.get(ctx, FileStep, &steps); err != nil {
		return domain.Procedure{}, err
	}

	return expandProcedure(procedureID, procedures, steps)
}

func expandProcedure(id string, procedures domain.ProcedureConfigRoot, steps domain.StepConfigRoot) (domain.Procedure, error) {
	cfg, ok := procedures[id]
	if !ok {
		return domain.Procedure{}, &NotFoundError{Kind: KindProcedure, ID: id}
	}

	proc := domain.Procedure{
		ID:    id,
		Name:  cfg.Name,
		Steps: make([]domain.Step, 0, len(cfg.Steps)),
	}
	for _, stepID := range cfg.Steps {
		stepCfg, ok := steps[stepID]
		if !ok {
			return domain.Procedure{}, &NotFoundError{Kind: KindStep, ID: stepID}
		}
		proc.Steps = append(proc.Steps, domain.Step{ID: stepID, StepConfig: stepCfg})
	}

	return proc, nil
}

// GetBusinessRepoConfig возвращает конфигурации business-репозиториев
// продукта (имя репозитория → конфиг). Для продукта без записей
// возвращается пустая map.
func (p *Provider) GetBusinessRepoConfig(ctx context.Context, product string) (map[string]domain.RepoConfig, error) {
	var root domain.BusinessRepoConfigRoot
	if err := p.get(ctx, FileBusinessRepo, &root); err != nil {
		return nil, err
	}

	repos := root[product]
	if repos == nil {
		repos = map[string]domain.RepoConfig{}
	}
	return repos, nil
}

// GetFeIntegrationRepoConfig возвращает конфигурацию FE-integration
// репозитория продукта.
func (p *Provider) GetFeIntegrationRepoConfig(ctx context.Context, product string) (domain.RepoConfig, error) {
	// 1. Продукт должен объявлять FE-integration репозиторий
	productCfg, err := p.GetProduct(ctx, product)
	if err != nil {
		return domain.RepoConfig{}, err
	}
	if productCfg.FeIntegrationRepo == "" {
		return domain.RepoConfig{}, &NotFoundError{Kind: KindFeIntegrationRepo, ID: product}
	}

	// 2. У репозитория должна быть запись в конфиге
	var root domain.RepoConfigRoot
	if err := p.get(ctx, FileFeIntegrationRepo, &root); err != nil {
		return domain.RepoConfig{}, err
	}

	cfg, ok := root[productCfg.FeIntegrationRepo]
	if !ok {
		return domain.RepoConfig{}, &NotFoundError{Kind: KindFeIntegrationRepo, ID: productCfg.FeIntegrationRepo}
	}
	return cfg, nil
}

// Invalidate сбрасывает кэш (все файлы).
func (p *Provider) Invalidate() {
	p.cache.Invalidate("")
}
