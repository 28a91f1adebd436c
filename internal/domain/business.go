package domain

// Sentinel для auto-значений в параметрах FE-интеграции.
const AutoValue = "[auto]"

// ParamType — тип параметра шага в UI.
type ParamType string

const (
	ParamTypeInput   ParamType = "input"
	ParamTypeBoolean ParamType = "boolean"
	ParamTypeJSON    ParamType = "json"
)

// ParamDef — описание параметра шага.
type ParamDef struct {
	Field string    `json:"field"`
	Label string    `json:"label"`
	Type  ParamType `json:"type"`
}

// StepConfig — определение шага из step.json.
type StepConfig struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ParamsDef   []ParamDef `json:"paramsDef"`
}

// Step — шаг с идентификатором (развёрнутая ссылка из procedure).
type Step struct {
	ID string `json:"id"`
	StepConfig
}

// ProcedureConfig — определение procedure из procedure.json.
type ProcedureConfig struct {
	Name     string   `json:"name"`
	Products []string `json:"products,omitempty"`
	Steps    []string `json:"steps"`
}

// Procedure — procedure с развёрнутыми шагами в объявленном порядке.
type Procedure struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// ProductConfig — определение продукта из product.json.
type ProductConfig struct {
	Name                string   `json:"name"`
	FeIntegrationRepo   string   `json:"feIntegrationRepo"`
	FullIntegrationRepo string   `json:"fullIntegrationRepo,omitempty"`
	Procedures          []string `json:"procedures"`
}

// Product — элемент списка продуктов.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GitLabConfig — доступ к проекту в GitLab.
type GitLabConfig struct {
	APIBaseURL string `json:"apiBaseUrl"`
	APIToken   string `json:"apiToken"`
	ProjectID  int    `json:"projectId"`
}

// ArtifactConfig — координаты пакета в artifact registry.
type ArtifactConfig struct {
	RepoID        int    `json:"repoId"`
	PkgNamePrefix string `json:"pkgNamePrefix"`
}

// RepoConfig — конфигурация репозитория (business или fe-integration).
type RepoConfig struct {
	GitLab   GitLabConfig   `json:"gitlab"`
	Artifact ArtifactConfig `json:"artifact"`
}

// Корневые типы конфиг-файлов.
type (
	ProductConfigRoot   map[string]ProductConfig
	ProcedureConfigRoot map[string]ProcedureConfig
	StepConfigRoot      map[string]StepConfig

	// RepoConfigRoot — fe-integration-repo.json: имя репозитория → конфиг.
	RepoConfigRoot map[string]RepoConfig

	// BusinessRepoConfigRoot — business-repo.json: продукт → репозиторий → конфиг.
	BusinessRepoConfigRoot map[string]map[string]RepoConfig
)
