package configstore

import (
	"context"
	"os"
	"path/filepath"
)

// Source — хранилище JSON-документов конфигурации.
type Source interface {
	// Read возвращает содержимое документа по имени файла.
	Read(ctx context.Context, name string) ([]byte, error)
}

// DirSource читает документы из каталога на диске.
type DirSource struct {
	Dir string
}

// NewDirSource создаёт DirSource.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

// Read читает файл dir/name.
func (s *DirSource) Read(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Dir, filepath.Base(name)))
}
