package scm

import (
	"context"
	"errors"

	"github.com/shaiso/Integrator/internal/domain"
)

// Ошибки SCM.
var (
	// ErrBranchExists — ветка с таким именем уже существует.
	ErrBranchExists = errors.New("branch already exists")

	// ErrNotFound — проект, ref или файл не найден.
	ErrNotFound = errors.New("scm resource not found")

	// ErrRequest — SCM API вернул неожиданный ответ.
	ErrRequest = errors.New("scm request failed")
)

// Типы элементов дерева.
const (
	EntryBlob = "blob"
	EntryTree = "tree"
)

// Действия коммита.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// TreeEntry — элемент листинга дерева репозитория.
type TreeEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
}

// CommitAction — изменение одного файла в коммите.
type CommitAction struct {
	Action   string `json:"action"`
	FilePath string `json:"file_path"`
	Content  string `json:"content,omitempty"`
}

// Client — операции над репозиторием.
type Client interface {
	// ListTree возвращает элементы каталога path на ref.
	ListTree(ctx context.Context, projectID int, ref, path string, recursive bool) ([]TreeEntry, error)

	// ReadFile возвращает содержимое файла (уже декодированное из base64).
	ReadFile(ctx context.Context, projectID int, path, ref string) ([]byte, error)

	// CreateBranch создаёт ветку branch от ref.
	// Если ветка существует, возвращает ErrBranchExists.
	CreateBranch(ctx context.Context, projectID int, branch, ref string) error

	// CreateCommit создаёт один коммит с набором изменений в ветке branch.
	CreateCommit(ctx context.Context, projectID int, branch, message string, actions []CommitAction) error
}

// Factory создаёт Client для конкретного GitLab-инстанса.
type Factory func(cfg domain.GitLabConfig) Client
