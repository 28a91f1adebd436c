package configstore

import (
	"sync"
	"time"
)

// DefaultTTL — время жизни записи кэша.
const DefaultTTL = 60 * time.Second

type cacheEntry struct {
	data      []byte
	timestamp time.Time
}

// Cache — кэш конфиг-файлов процесса: имя файла → {data, timestamp}.
//
// Хранит сырые байты документа; каждый читатель декодирует свою копию,
// поэтому вызывающий код не может испортить закэшированное значение.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache создаёт кэш. ttl <= 0 заменяется на DefaultTTL,
// now == nil — на time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Get возвращает данные, если запись есть и now - timestamp < TTL.
func (c *Cache) Get(name string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.timestamp) >= c.ttl {
		return nil, false
	}
	return entry.data, true
}

// Set сохраняет данные с текущим timestamp.
func (c *Cache) Set(name string, data []byte) {
	c.mu.Lock()
	c.entries[name] = cacheEntry{data: data, timestamp: c.now()}
	c.mu.Unlock()
}

// Invalidate удаляет запись; пустой name очищает весь кэш.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" {
		clear(c.entries)
		return
	}
	delete(c.entries, name)
}
