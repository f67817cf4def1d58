package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"consumo-backend/internal/storage"
)

type Store interface {
	GetConfigurations(ctx context.Context) ([]*storage.Configuration, error)
	GetConfigurationByID(ctx context.Context, id int64) (*storage.Configuration, error)
	CreateConfiguration(ctx context.Context, cfg *storage.Configuration) (int64, error)
	UpdateConfiguration(ctx context.Context, cfg *storage.Configuration) error
	DeleteConfiguration(ctx context.Context, id int64) error
}

type entry struct {
	system  string
	product string
	active  bool
	data    []byte
}

// Catalog keeps the configurations as msgpack snapshots. Every read decodes
// a private copy, so a calculation never sees a configuration that an admin
// edit is replacing underneath it.
type Catalog struct {
	store Store
	ttl   time.Duration
	log   *slog.Logger
	now   func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	entries  []entry
	loadedAt time.Time
	loaded   bool
	// gen grows on every write; a load started under an older gen is
	// returned to its callers but never cached.
	gen uint64
}

func New(store Store, ttl time.Duration, log *slog.Logger) *Catalog {
	return &Catalog{store: store, ttl: ttl, log: log, now: time.Now}
}

// Configurations returns copies of every configuration, active or not.
func (c *Catalog) Configurations(ctx context.Context) ([]*storage.Configuration, error) {
	const op = "service.catalog.Configurations"

	entries, err := c.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	configs := make([]*storage.Configuration, 0, len(entries))
	for _, e := range entries {
		cfg, err := decode(e.data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// Find returns the active configuration for a system. A configuration bound
// to the piece's product wins over the generic one of the same system.
func (c *Catalog) Find(ctx context.Context, system, product string) (*storage.Configuration, error) {
	const op = "service.catalog.Find"

	entries, err := c.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	i := selectEntry(entries, system, product)
	if i < 0 {
		return nil, fmt.Errorf("%s: system %q: %w", op, system, storage.ErrNotFound)
	}

	cfg, err := decode(entries[i].data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

// Select applies the same lookup as Find to an already loaded list.
func Select(configs []*storage.Configuration, system, product string) (*storage.Configuration, bool) {
	entries := make([]entry, len(configs))
	for i, cfg := range configs {
		entries[i] = entry{system: cfg.System, product: cfg.Product, active: cfg.Active}
	}
	i := selectEntry(entries, system, product)
	if i < 0 {
		return nil, false
	}
	return configs[i], true
}

func selectEntry(entries []entry, system, product string) int {
	system = strings.TrimSpace(system)
	product = strings.TrimSpace(product)

	generic, any := -1, -1
	for i, e := range entries {
		if !e.active || !strings.EqualFold(e.system, system) {
			continue
		}
		if product != "" && strings.EqualFold(e.product, product) {
			return i
		}
		if e.product == "" && generic < 0 {
			generic = i
		}
		if any < 0 {
			any = i
		}
	}
	if generic >= 0 {
		return generic
	}
	return any
}

func (c *Catalog) GetConfigurationByID(ctx context.Context, id int64) (*storage.Configuration, error) {
	return c.store.GetConfigurationByID(ctx, id)
}

func (c *Catalog) CreateConfiguration(ctx context.Context, cfg *storage.Configuration) (int64, error) {
	defer c.Invalidate()
	return c.store.CreateConfiguration(ctx, cfg)
}

func (c *Catalog) UpdateConfiguration(ctx context.Context, cfg *storage.Configuration) error {
	defer c.Invalidate()
	return c.store.UpdateConfiguration(ctx, cfg)
}

func (c *Catalog) DeleteConfiguration(ctx context.Context, id int64) error {
	defer c.Invalidate()
	return c.store.DeleteConfiguration(ctx, id)
}

func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.loaded = false
	c.mu.Unlock()

	// новые читатели не должны присоединяться к загрузке, начатой до записи
	c.group.Forget("load")
}

func (c *Catalog) snapshot(ctx context.Context) ([]entry, error) {
	c.mu.RLock()
	if c.loaded && c.now().Sub(c.loadedAt) < c.ttl {
		entries := c.entries
		c.mu.RUnlock()
		return entries, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("load", func() (interface{}, error) {
		return c.reload(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]entry), nil
}

func (c *Catalog) reload(ctx context.Context) ([]entry, error) {
	const op = "service.catalog.reload"

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	configs, err := c.store.GetConfigurations(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries := make([]entry, 0, len(configs))
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			var verr *storage.ValidationError
			if errors.As(err, &verr) {
				c.log.Warn("configuration failed validation, serving it anyway",
					slog.String("op", op),
					slog.Int64("id", cfg.ID),
					slog.String("name", cfg.Name),
					slog.Any("problems", verr.Problems),
				)
			}
		}

		data, err := msgpack.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: encode configuration %d: %w", op, cfg.ID, err)
		}
		entries = append(entries, entry{system: cfg.System, product: cfg.Product, active: cfg.Active, data: data})
	}

	c.mu.Lock()
	if c.gen == gen {
		c.entries = entries
		c.loadedAt = c.now()
		c.loaded = true
	}
	c.mu.Unlock()

	return entries, nil
}

func decode(data []byte) (*storage.Configuration, error) {
	var cfg storage.Configuration
	if err := msgpack.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	return &cfg, nil
}
