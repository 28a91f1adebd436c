package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Integrator/internal/domain"
)

// DefaultRedisPrefix — префикс ключей по умолчанию.
const DefaultRedisPrefix = "integrator"

// Схема ключей:
//
//	<prefix>:run:<id>                  — JSON run record
//	<prefix>:runs                      — ZSET id по created_at (ms)
//	<prefix>:runs:status:<STATUS>      — SET id по статусу
//	<prefix>:schedule:<id>             — JSON расписания
//	<prefix>:schedules                 — ZSET id по created_at (ms)
//	<prefix>:schedules:enabled         — SET id включённых расписаний
type redisKeys struct {
	prefix string
}

func (k redisKeys) run(id uuid.UUID) string { return k.prefix + ":run:" + id.String() }
func (k redisKeys) runs() string { return k.prefix + ":runs" }
func (k redisKeys) runStatus(s domain.RunStatus) string { return k.prefix + ":runs:status:" + string(s) }
func (k redisKeys) schedule(id uuid.UUID) string { return k.prefix + ":schedule:" + id.String() }
func (k redisKeys) schedules() string { return k.prefix + ":schedules" }
func (k redisKeys) enabled() string { return k.prefix + ":schedules:enabled" }

func newRedisKeys(prefix string) redisKeys {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return redisKeys{prefix: prefix}
}

// NewRedisClient создаёт клиент и проверяет соединение.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisRunStore — run records в Redis.
type RedisRunStore struct {
	rdb  redis.UniversalClient
	keys redisKeys
}

// NewRedisRunStore создаёт RedisRunStore.
func NewRedisRunStore(rdb redis.UniversalClient, prefix string) *RedisRunStore {
	return &RedisRunStore{rdb: rdb, keys: newRedisKeys(prefix)}
}

// Create сохраняет новый run record.
func (s *RedisRunStore) Create(ctx context.Context, run *domain.RunRecord) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, s.keys.run(run.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.keys.runs(), redis.Z{Score: float64(run.CreatedAt.UnixMilli()), Member: run.ID.String()})
		pipe.SAdd(ctx, s.keys.runStatus(run.Status), run.ID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("index run record: %w", err)
	}
	return nil
}

// GetByID возвращает run record по ID.
func (s *RedisRunStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error) {
	data, err := s.rdb.Get(ctx, s.keys.run(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run record: %w", err)
	}
	return decodeRun(data)
}

// Update сохраняет log, status и updated_at.
func (s *RedisRunStore) Update(ctx context.Context, run *domain.RunRecord) error {
	current, err := s.GetByID(ctx, run.ID)
	if err != nil {
		return err
	}

	prevStatus := current.Status
	current.Log = run.Log
	current.Status = run.Status
	current.UpdatedAt = run.UpdatedAt

	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keys.run(run.ID), data, 0)
		if prevStatus != run.Status {
			pipe.SMove(ctx, s.keys.runStatus(prevStatus), s.keys.runStatus(run.Status), run.ID.String())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update run record: %w", err)
	}
	return nil
}

// List возвращает страницу (created_at DESC) и общее количество.
func (s *RedisRunStore) List(ctx context.Context, page domain.Page) (domain.PageResult[domain.RunRecord], error) {
	result := domain.PageResult[domain.RunRecord]{Data: []domain.RunRecord{}}

	ids, total, err := pageIDs(ctx, s.rdb, s.keys.runs(), page)
	if err != nil {
		return result, fmt.Errorf("list run records: %w", err)
	}
	result.Total = total

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.prefix + ":run:" + id
	}
	values, err := mget(ctx, s.rdb, keys)
	if err != nil {
		return result, fmt.Errorf("list run records: %w", err)
	}

	for _, v := range values {
		run, err := decodeRun(v)
		if err != nil {
			return result, err
		}
		result.Data = append(result.Data, *run)
	}
	return result, nil
}

// ListByStatus возвращает run records с одним из статусов (created_at ASC).
func (s *RedisRunStore) ListByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]domain.RunRecord, error) {
	var keys []string
	for _, st := range statuses {
		ids, err := s.rdb.SMembers(ctx, s.keys.runStatus(st)).Result()
		if err != nil {
			return nil, fmt.Errorf("list run records by status: %w", err)
		}
		for _, id := range ids {
			keys = append(keys, s.keys.prefix+":run:"+id)
		}
	}

	values, err := mget(ctx, s.rdb, keys)
	if err != nil {
		return nil, fmt.Errorf("list run records by status: %w", err)
	}

	runs := make([]domain.RunRecord, 0, len(values))
	for _, v := range values {
		run, err := decodeRun(v)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	slices.SortFunc(runs, func(a, b domain.RunRecord) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return runs, nil
}

// RedisScheduleStore — расписания в Redis.
type RedisScheduleStore struct {
	rdb  redis.UniversalClient
	keys redisKeys
}

// NewRedisScheduleStore создаёт RedisScheduleStore.
func NewRedisScheduleStore(rdb redis.UniversalClient, prefix string) *RedisScheduleStore {
	return &RedisScheduleStore{rdb: rdb, keys: newRedisKeys(prefix)}
}

// Create сохраняет новое расписание.
func (s *RedisScheduleStore) Create(ctx context.Context, sc *domain.ScheduleConfig) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, s.keys.schedule(sc.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.keys.schedules(), redis.Z{Score: float64(sc.CreatedAt.UnixMilli()), Member: sc.ID.String()})
		s.indexEnabled(ctx, pipe, sc)
		return nil
	})
	if err != nil {
		return fmt.Errorf("index schedule: %w", err)
	}
	return nil
}

// GetByID возвращает расписание по ID.
func (s *RedisScheduleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleConfig, error) {
	data, err := s.rdb.Get(ctx, s.keys.schedule(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return decodeSchedule(data)
}

// Update заменяет изменяемые поля; created_* сохраняются.
func (s *RedisScheduleStore) Update(ctx context.Context, sc *domain.ScheduleConfig) error {
	current, err := s.GetByID(ctx, sc.ID)
	if err != nil {
		return err
	}

	updated := *sc
	updated.CreatedAt = current.CreatedAt
	updated.CreatedBy = current.CreatedBy

	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keys.schedule(sc.ID), data, 0)
		s.indexEnabled(ctx, pipe, &updated)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Delete удаляет расписание.
func (s *RedisScheduleStore) Delete(ctx context.Context, id uuid.UUID) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.keys.schedule(id))
		pipe.ZRem(ctx, s.keys.schedules(), id.String())
		pipe.SRem(ctx, s.keys.enabled(), id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// List возвращает страницу (created_at DESC) и общее количество.
func (s *RedisScheduleStore) List(ctx context.Context, page domain.Page) (domain.PageResult[domain.ScheduleConfig], error) {
	result := domain.PageResult[domain.ScheduleConfig]{Data: []domain.ScheduleConfig{}}

	ids, total, err := pageIDs(ctx, s.rdb, s.keys.schedules(), page)
	if err != nil {
		return result, fmt.Errorf("list schedules: %w", err)
	}
	result.Total = total

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.prefix + ":schedule:" + id
	}
	values, err := mget(ctx, s.rdb, keys)
	if err != nil {
		return result, fmt.Errorf("list schedules: %w", err)
	}

	for _, v := range values {
		sc, err := decodeSchedule(v)
		if err != nil {
			return result, err
		}
		result.Data = append(result.Data, *sc)
	}
	return result, nil
}

// ListEnabled возвращает включённые расписания (created_at ASC).
func (s *RedisScheduleStore) ListEnabled(ctx context.Context) ([]domain.ScheduleConfig, error) {
	ids, err := s.rdb.SMembers(ctx, s.keys.enabled()).Result()
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.prefix + ":schedule:" + id
	}
	values, err := mget(ctx, s.rdb, keys)
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}

	schedules := make([]domain.ScheduleConfig, 0, len(values))
	for _, v := range values {
		sc, err := decodeSchedule(v)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sc)
	}
	slices.SortFunc(schedules, func(a, b domain.ScheduleConfig) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return schedules, nil
}

func (s *RedisScheduleStore) indexEnabled(ctx context.Context, pipe redis.Pipeliner, sc *domain.ScheduleConfig) {
	if sc.IsEnabled {
		pipe.SAdd(ctx, s.keys.enabled(), sc.ID.String())
	} else {
		pipe.SRem(ctx, s.keys.enabled(), sc.ID.String())
	}
}

// --- Helpers ---

// pageIDs возвращает ID страницы из ZSET (score DESC) и размер ZSET.
func pageIDs(ctx context.Context, rdb redis.UniversalClient, key string, page domain.Page) ([]string, int, error) {
	total, err := rdb.ZCard(ctx, key).Result()
	if err != nil {
		return nil, 0, err
	}

	start := int64(page.Offset())
	if start >= total {
		return nil, int(total), nil
	}
	stop := start + int64(page.Limit()) - 1

	ids, err := rdb.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, 0, err
	}
	return ids, int(total), nil
}

// mget читает значения ключей, пропуская отсутствующие.
func mget(ctx context.Context, rdb redis.UniversalClient, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, []byte(s))
		}
	}
	return out, nil
}

func decodeRun(data []byte) (*domain.RunRecord, error) {
	var run domain.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run record: %w", err)
	}
	if run.Input == nil {
		run.Input = domain.Input{}
	}
	return &run, nil
}

func decodeSchedule(data []byte) (*domain.ScheduleConfig, error) {
	var sc domain.ScheduleConfig
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	if sc.Input == nil {
		sc.Input = domain.Input{}
	}
	return &sc, nil
}
