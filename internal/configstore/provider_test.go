package configstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Integrator/internal/telemetry"
)

// memSource — Source в памяти со счётчиком чтений.
type memSource struct {
	mu    sync.Mutex
	files map[string]string
	fail  map[string]error
	reads atomic.Int32
}

func (s *memSource) Read(_ context.Context, name string) ([]byte, error) {
	s.reads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail[name]; err != nil {
		return nil, err
	}
	data, ok := s.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(data), nil
}

func (s *memSource) set(name, data string) {
	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const (
	productJSON = `{
		"web": {"name": "Web Portal", "feIntegrationRepo": "fe-web", "procedures": ["release", "hotfix"]},
		"app": {"name": "Mobile App", "feIntegrationRepo": "fe-app", "procedures": ["release"]},
		"bare": {"name": "Bare", "procedures": []}
	}`
	procedureJSON = `{
		"release": {"name": "Release", "products": ["web", "app"], "steps": ["fe-integration", "webhook"]},
		"hotfix": {"name": "Hotfix", "products": ["web"], "steps": ["fe-integration"]},
		"broken": {"name": "Broken", "steps": ["missing-step"]}
	}`
	stepJSON = `{
		"fe-integration": {"name": "FE Integration", "description": "Update package info", "paramsDef": [
			{"field": "baselineBranch", "label": "Baseline", "type": "input"},
			{"field": "businessRepoParams", "label": "Repos", "type": "json"}
		]},
		"webhook": {"name": "Notify", "description": "Send webhook", "paramsDef": []}
	}`
	feRepoJSON = `{
		"fe-web": {"gitlab": {"apiBaseUrl": "https://gitlab.example.com/api/v4", "apiToken": "t", "projectId": 42}}
	}`
	businessRepoJSON = `{
		"web": {"portal": {"gitlab": {"projectId": 7}, "artifact": {"repoId": 3, "pkgNamePrefix": "@web/"}}}
	}`
)

func newTestProvider(t *testing.T) (*Provider, *memSource, *fakeClock) {
	t.Helper()

	src := &memSource{files: map[string]string{
		FileProduct:           productJSON,
		FileProcedure:         procedureJSON,
		FileStep:              stepJSON,
		FileFeIntegrationRepo: feRepoJSON,
		FileBusinessRepo:      businessRepoJSON,
	}}
	clock := &fakeClock{now: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)}

	p := New(Config{
		Source: src,
		Cache:  NewCache(DefaultTTL, clock.Now),
		Logger: telemetry.Discard(),
	})
	return p, src, clock
}

func TestProvider_GetProductList(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	list, err := p.GetProductList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "app", list[0].ID)
	assert.Equal(t, "Mobile App", list[0].Name)
	assert.Equal(t, "bare", list[1].ID)
	assert.Equal(t, "web", list[2].ID)
}

func TestProvider_GetProductList_Idempotent(t *testing.T) {
	p, src, clock := newTestProvider(t)
	ctx := context.Background()

	first, err := p.GetProductList(ctx)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	second, err := p.GetProductList(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.reads.Load())
}

func TestProvider_CacheTTL(t *testing.T) {
	p, src, clock := newTestProvider(t)
	ctx := context.Background()

	_, err := p.GetProductList(ctx)
	require.NoError(t, err)

	// Файл изменился, но запись ещё свежая
	src.set(FileProduct, `{"new": {"name": "New", "procedures": []}}`)
	clock.Advance(59 * time.Second)

	list, err := p.GetProductList(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	// Ровно TTL — запись устарела
	clock.Advance(1 * time.Second)

	list, err = p.GetProductList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)
}

func TestProvider_ReadErrorNotCached(t *testing.T) {
	p, src, _ := newTestProvider(t)
	ctx := context.Background()

	src.fail = map[string]error{FileProduct: errors.New("disk on fire")}

	_, err := p.GetProductList(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigRead)
	assert.Contains(t, err.Error(), "disk on fire")

	src.mu.Lock()
	src.fail = nil
	src.mu.Unlock()

	list, err := p.GetProductList(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, int32(2), src.reads.Load())
}

func TestProvider_MissingFile(t *testing.T) {
	p, src, _ := newTestProvider(t)
	delete(src.files, FileStep)

	_, err := p.GetProcedureList(context.Background(), "web")
	assert.ErrorIs(t, err, ErrConfigRead)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProvider_InvalidJSON(t *testing.T) {
	p, src, _ := newTestProvider(t)
	src.set(FileProduct, `{"web": `)

	_, err := p.GetProductList(context.Background())
	assert.ErrorIs(t, err, ErrConfigParse)

	src.set(FileProduct, `["not", "an", "object"]`)
	_, err = p.GetProductList(context.Background())
	assert.ErrorIs(t, err, ErrConfigParse)
}

func TestProvider_GetProcedureList(t *testing.T) {
	p, _, _ := newTestProvider(t)

	procs, err := p.GetProcedureList(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, procs, 2)

	assert.Equal(t, "release", procs[0].ID)
	assert.Equal(t, "Release", procs[0].Name)
	require.Len(t, procs[0].Steps, 2)
	assert.Equal(t, "fe-integration", procs[0].Steps[0].ID)
	assert.Equal(t, "FE Integration", procs[0].Steps[0].Name)
	assert.Len(t, procs[0].Steps[0].ParamsDef, 2)
	assert.Equal(t, "webhook", procs[0].Steps[1].ID)

	assert.Equal(t, "hotfix", procs[1].ID)
}

func TestProvider_GetProcedureList_DanglingReferences(t *testing.T) {
	tests := []struct {
		name    string
		product string
		patch   func(src *memSource)
		kind    string
		id      string
	}{
		{
			name:    "unknown product",
			product: "nope",
			kind:    KindProduct,
			id:      "nope",
		},
		{
			name:    "unknown procedure",
			product: "web",
			patch: func(src *memSource) {
				src.set(FileProduct, `{"web": {"name": "Web", "procedures": ["release", "ghost"]}}`)
			},
			kind: KindProcedure,
			id:   "ghost",
		},
		{
			name:    "unknown step",
			product: "web",
			patch: func(src *memSource) {
				src.set(FileProduct, `{"web": {"name": "Web", "procedures": ["broken"]}}`)
			},
			kind: KindStep,
			id:   "missing-step",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, src, _ := newTestProvider(t)
			if tt.patch != nil {
				tt.patch(src)
			}

			_, err := p.GetProcedureList(context.Background(), tt.product)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotFound)

			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, tt.kind, nf.Kind)
			assert.Equal(t, tt.id, nf.ID)
		})
	}
}

func TestProvider_GetProcedure(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	proc, err := p.GetProcedure(ctx, "app", "release")
	require.NoError(t, err)
	assert.Equal(t, []string{"fe-integration", "webhook"}, []string{proc.Steps[0].ID, proc.Steps[1].ID})

	// hotfix существует, но не привязан к app
	_, err = p.GetProcedure(ctx, "app", "hotfix")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindProcedure, nf.Kind)
}

func TestProvider_GetFeIntegrationRepoConfig(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	cfg, err := p.GetFeIntegrationRepoConfig(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.GitLab.ProjectID)
	assert.Equal(t, "https://gitlab.example.com/api/v4", cfg.GitLab.APIBaseURL)

	// app объявляет fe-app, но записи нет
	_, err = p.GetFeIntegrationRepoConfig(ctx, "app")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindFeIntegrationRepo, nf.Kind)
	assert.Equal(t, "fe-app", nf.ID)

	// bare не объявляет репозиторий
	_, err = p.GetFeIntegrationRepoConfig(ctx, "bare")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProvider_GetBusinessRepoConfig(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	repos, err := p.GetBusinessRepoConfig(ctx, "web")
	require.NoError(t, err)
	require.Contains(t, repos, "portal")
	assert.Equal(t, 3, repos["portal"].Artifact.RepoID)
	assert.Equal(t, "@web/", repos["portal"].Artifact.PkgNamePrefix)

	repos, err = p.GetBusinessRepoConfig(ctx, "app")
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestProvider_ConcurrentLoadsCollapse(t *testing.T) {
	p, src, _ := newTestProvider(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.GetProductList(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, src.reads.Load(), int32(20))
	assert.GreaterOrEqual(t, src.reads.Load(), int32(1))
}

// gateSource блокирует Read до release и возвращает ошибку контекста, если он отменён.
type gateSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	reads   atomic.Int32
}

func (s *gateSource) Read(ctx context.Context, _ string) ([]byte, error) {
	s.reads.Add(1)
	s.once.Do(func() { close(s.started) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(productJSON), nil
}

func TestProvider_LoadSurvivesFirstCallerCancel(t *testing.T) {
	src := &gateSource{started: make(chan struct{}), release: make(chan struct{})}
	p := New(Config{Source: src, Logger: telemetry.Discard()})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := p.GetProductList(ctx)
		firstErr <- err
	}()
	<-src.started

	secondErr := make(chan error, 1)
	go func() {
		_, err := p.GetProductList(context.Background())
		secondErr <- err
	}()

	cancel()
	close(src.release)

	require.NoError(t, <-firstErr)
	require.NoError(t, <-secondErr)

	list, err := p.GetProductList(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.LessOrEqual(t, src.reads.Load(), int32(2))
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(time.Minute, nil)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.Invalidate("")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileProduct), []byte(productJSON), 0o644))

	p := New(Config{Source: NewDirSource(dir), Logger: telemetry.Discard()})

	list, err := p.GetProductList(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = p.GetProcedureList(context.Background(), "web")
	assert.ErrorIs(t, err, ErrConfigRead)
}

type fakeS3 struct {
	objects map[string]string
	lastKey string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastKey = *in.Bucket + "/" + *in.Key
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"integrator/config/product.json": productJSON}}
	src := NewS3Source(client, "configs", "integrator/config")

	data, err := src.Read(context.Background(), FileProduct)
	require.NoError(t, err)
	assert.JSONEq(t, productJSON, string(data))
	assert.Equal(t, "configs/integrator/config/product.json", client.lastKey)

	_, err = src.Read(context.Background(), FileStep)
	assert.ErrorContains(t, err, "NoSuchKey")
}
