package steps

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр обработчиков шагов.
//
// Обработчики регистрируются при старте процесса. Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными шагами.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()

	r.Register(NewFeIntegrationStep(FeIntegrationConfig{
		Configs:   deps.Configs,
		SCM:       deps.SCM,
		Artifacts: deps.Artifacts,
		Logger:    deps.Logger,
	}))
	r.Register(NewWebhookStep(deps.HTTPClient))
	r.Register(NewWaitStep())

	return r
}

// Register регистрирует шаг.
// Если шаг с таким ID уже существует, он будет перезаписан.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.ID()] = step
}

// Get возвращает шаг по ID.
// Возвращает ErrStepNotFound, если шаг не найден.
func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}

	return step, nil
}

// Has проверяет, зарегистрирован ли шаг.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.steps[id]
	return exists
}

// IDs возвращает отсортированный список зарегистрированных шагов.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.steps))
	for id := range r.steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}
