package safety

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lumacms/lumacms/pkg/redis"
)

// settingsTTL bounds staleness of the cached settings row. Reads must happen
// before every safety check; a short TTL cache is acceptable per contract.
const settingsTTL = 30 * time.Second

// SettingsStore reads and updates the safety engine settings row, fronted by
// a short-TTL Redis cache with singleflight read coalescing.
type SettingsStore struct {
	db       *sql.DB
	cache    *redis.Cache
	sf       singleflight.Group
	log      *zap.Logger
	defaults Settings
}

// NewSettingsStore wires a settings store. The cache may be nil (reads then
// always hit the database). Defaults are returned when the row cannot be
// read, with Enabled forced on so a storage hiccup cannot bypass the gate.
func NewSettingsStore(db *sql.DB, cache *redis.Cache, defaults Settings, log *zap.Logger) *SettingsStore {
	return &SettingsStore{
		db:       db,
		cache:    cache,
		log:      log.With(zap.String("module", "safety.settings")),
		defaults: defaults,
	}
}

// Get returns the current settings. Failures fall back to defaults and are
// logged, never propagated; the pipeline must not break on a settings read.
func (s *SettingsStore) Get(ctx context.Context) Settings {
	if s.cache != nil {
		var cached Settings
		err := s.cache.Get(ctx, "safety", "settings", &cached)
		if err == nil {
			return cached
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.Warn("settings cache read failed", zap.Error(err))
		}
	}

	v, err, _ := s.sf.Do("settings", func() (interface{}, error) {
		return s.load(ctx)
	})
	if err != nil {
		s.log.Warn("settings read failed, using defaults", zap.Error(err))
		return s.defaults
	}
	settings := v.(Settings)

	if s.cache != nil {
		if err := s.cache.Set(ctx, "safety", "settings", settings, settingsTTL); err != nil {
			s.log.Warn("settings cache write failed", zap.Error(err))
		}
	}
	return settings
}

func (s *SettingsStore) load(ctx context.Context) (Settings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT enabled, model_id, timeout_ms FROM safety_settings WHERE id = 1`)
	var settings Settings
	if err := row.Scan(&settings.Enabled, &settings.ModelID, &settings.TimeoutMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaults, nil
		}
		return Settings{}, err
	}
	if settings.ModelID == "" {
		settings.ModelID = s.defaults.ModelID
	}
	if settings.TimeoutMs <= 0 {
		settings.TimeoutMs = s.defaults.TimeoutMs
	}
	return settings, nil
}

// Update writes the settings row and invalidates the cache.
func (s *SettingsStore) Update(ctx context.Context, settings Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO safety_settings (id, enabled, model_id, timeout_ms, updated_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id)
		DO UPDATE SET enabled = $1, model_id = $2, timeout_ms = $3, updated_at = now()`,
		settings.Enabled, settings.ModelID, settings.TimeoutMs)
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, "safety", "settings"); err != nil {
			s.log.Warn("settings cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}
