package config

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pricewatch/internal/logger"
	"pricewatch/internal/market"
)

// Snapshot is an immutable view of the configuration at one version.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Config   Config
}

// ChangeListener is called after every accepted change.
type ChangeListener func(Snapshot)

// Store owns the live configuration. Reads go through Snapshot; writers
// persist to disk and notify subscribers.
type Store struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners map[int]ChangeListener
	nextID    int

	watchOnce sync.Once
	// saveMu serializes disk writes and reloads; diskSum is the digest of
	// the file content the store last wrote or loaded.
	saveMu  sync.Mutex
	diskSum [sha256.Size]byte
}

// ErrNotPersisted marks a change that was applied in memory but could not be
// written to the configuration file.
var ErrNotPersisted = errors.New("config change not persisted")

// Open loads path into a new Store.
func Open(path string) (*Store, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	cfg, err := decodeBytes(v, raw)
	if err != nil {
		return nil, err
	}
	s := NewStore(*cfg)
	s.path = path
	s.v = v
	s.diskSum = sha256.Sum256(raw)
	return s, nil
}

func decodeBytes(v *viper.Viper, raw []byte) (*Config, error) {
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	return decode(v)
}

// OpenOrCreate opens path, first writing the default configuration there
// when the file does not exist yet.
func OpenOrCreate(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		seed := &Store{path: path}
		if err := seed.save(*Default()); err != nil {
			return nil, fmt.Errorf("write default config (%s): %w", path, err)
		}
		logger.Infof("wrote default config to %s", path)
	}
	return Open(path)
}

// NewStore wraps an in-memory configuration. Save is a no-op until the store
// is bound to a file by Open.
func NewStore(cfg Config) *Store {
	assignAlarmIDs(&cfg)
	return &Store{
		snapshot:  Snapshot{Version: 1, LoadedAt: time.Now(), Config: cfg.Clone()},
		listeners: make(map[int]ChangeListener),
	}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snapshot
	snap.Config = snap.Config.Clone()
	return snap
}

// Subscribe registers fn and returns a function removing it.
func (s *Store) Subscribe(fn ChangeListener) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Watch reloads the file whenever it changes on disk. Rejected reloads keep
// the previous snapshot, and events caused by the store's own writes are
// ignored.
func (s *Store) Watch() {
	if s.v == nil {
		return
	}
	s.watchOnce.Do(func() {
		s.v.OnConfigChange(func(evt fsnotify.Event) {
			changed, err := s.reload()
			if err != nil {
				logger.Errorf("config reload failed (%s): %v", evt.Name, err)
				return
			}
			if changed {
				logger.Infof("config reloaded: %s", evt.Name)
			}
		})
		s.v.WatchConfig()
	})
}

// Reload re-reads the bound file immediately. Content identical to what the
// store last wrote or loaded is not applied again.
func (s *Store) Reload() error {
	if s.v == nil {
		return fmt.Errorf("config store is not bound to a file")
	}
	_, err := s.reload()
	return err
}

// reload reads the file under saveMu, so it never observes a state older
// than the last committed update.
func (s *Store) reload() (bool, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("reading config file failed (%s): %w", s.path, err)
	}
	sum := sha256.Sum256(raw)
	if sum == s.diskSum {
		return false, nil
	}
	v, err := newViper(s.path)
	if err != nil {
		return false, err
	}
	cfg, err := decodeBytes(v, raw)
	if err != nil {
		return false, err
	}
	s.diskSum = sum
	s.mu.Lock()
	// keep ids stable for alarms the file still lacks ids for
	reuseAlarmIDs(cfg, s.snapshot.Config.Alarms)
	snap := s.commitLocked(*cfg)
	s.mu.Unlock()
	s.notify(snap)
	return true, nil
}

func reuseAlarmIDs(cfg *Config, prev []market.Alarm) {
	for i := range cfg.Alarms {
		for _, old := range prev {
			if sameAlarm(cfg.Alarms[i], old) {
				cfg.Alarms[i].ID = old.ID
				break
			}
		}
	}
}

func sameAlarm(a, b market.Alarm) bool {
	return a.MarketID() == b.MarketID() && a.Direction == b.Direction && a.Threshold == b.Threshold
}

func (s *Store) commitLocked(cfg Config) Snapshot {
	s.snapshot = Snapshot{
		Version:  s.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Config:   cfg.Clone(),
	}
	return s.snapshot
}

func (s *Store) notify(snap Snapshot) {
	s.mu.RLock()
	listeners := make([]ChangeListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("config listener panic: %v", r)
				}
			}()
			view := snap
			view.Config = snap.Config.Clone()
			cb(view)
		}(fn)
	}
}

// Update applies fn to a copy of the current configuration, validates the
// result, persists it and notifies subscribers. A failed write still leaves
// the change committed in memory and is reported as ErrNotPersisted.
func (s *Store) Update(fn func(*Config) error) error {
	_, err := s.update(fn)
	return err
}

func (s *Store) update(fn func(*Config) error) (Snapshot, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	next := s.snapshot.Config.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	next.applyDefaults(nil)
	if err := validate(&next); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	snap := s.commitLocked(next)
	s.mu.Unlock()

	saveErr := s.save(snap.Config)
	s.notify(snap)
	if saveErr != nil {
		logger.Errorf("config save failed: %v", saveErr)
		return snap, fmt.Errorf("%w (%s): %w", ErrNotPersisted, s.path, saveErr)
	}
	return snap, nil
}

// Save writes the current snapshot back to the bound file.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.save(s.Snapshot().Config)
}

func (s *Store) save(cfg Config) error {
	if s.path == "" {
		return nil
	}
	raw, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".pricewatch-*.yaml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	s.diskSum = sha256.Sum256(raw)
	return nil
}

// AddAlarm appends a new alarm and returns it with its assigned id.
func (s *Store) AddAlarm(a market.Alarm) (market.Alarm, error) {
	if strings.TrimSpace(a.ID) == "" {
		a.ID = uuid.NewString()
	}
	id := a.MarketID()
	a.Source, a.Market = id.Source, id.Market
	err := s.Update(func(c *Config) error {
		for _, existing := range c.Alarms {
			if existing.ID == a.ID {
				return fmt.Errorf("alarm %s already exists", a.ID)
			}
		}
		c.Alarms = append(c.Alarms, a)
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotPersisted) {
		return market.Alarm{}, err
	}
	return a, err
}

// RemoveAlarm deletes the alarm with the given id. It reports false when no
// such alarm exists, so of two concurrent callers exactly one wins.
func (s *Store) RemoveAlarm(id string) (bool, error) {
	removed := false
	err := s.Update(func(c *Config) error {
		for i, a := range c.Alarms {
			if a.ID == id {
				c.Alarms = append(c.Alarms[:i:i], c.Alarms[i+1:]...)
				removed = true
				return nil
			}
		}
		return errNoChange
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	return removed, err
}

// SetMarkets replaces the tracked market list.
func (s *Store) SetMarkets(markets []market.TrackedMarket) error {
	list := append([]market.TrackedMarket(nil), markets...)
	return s.Update(func(c *Config) error {
		c.Markets = list
		return nil
	})
}

var errNoChange = errors.New("config: no change")

// AlarmsFor returns the current alarms of one market.
func (s *Store) AlarmsFor(id market.MarketID) []market.Alarm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Config.AlarmsFor(id)
}
