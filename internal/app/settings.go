package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"neetiq-service/internal/domain"
)

// Setting keys and their documented defaults.
const (
	SettingFooterText       = "footer_text"
	SettingFooterEnabled    = "footer_enabled"
	SettingAutoquizEnabled  = "autoquiz_enabled"
	SettingAutoquizInterval = "autoquiz_interval"
)

var settingDefaults = map[string]string{
	SettingFooterText:       "NEETIQBot",
	SettingFooterEnabled:    "1",
	SettingAutoquizEnabled:  "0",
	SettingAutoquizInterval: "30",
}

// SettingsRepository is the key/value store behind the settings handle.
// Get reports presence explicitly so missing keys fall back to defaults.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// SettingsService is a process-wide configuration handle with explicit
// load-at-startup and reload-on-write semantics. It is passed into the
// gateway and scheduler layers instead of living in package globals.
type SettingsService struct {
	repo SettingsRepository
	sf   singleflight.Group

	mu    sync.RWMutex
	cache map[string]string
}

func NewSettingsService(repo SettingsRepository) *SettingsService {
	return &SettingsService{
		repo:  repo,
		cache: make(map[string]string),
	}
}

// Load primes the cache with every known key. Called once at startup.
func (s *SettingsService) Load(ctx context.Context) error {
	for key := range settingDefaults {
		if _, err := s.Get(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stored value for key, or its default when unset.
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	if value, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		value, ok, err := s.repo.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if !ok {
			value = settingDefaults[key]
		}
		s.mu.Lock()
		s.cache[key] = value
		s.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Set writes through to the store and refreshes the cache.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	if err := withRetry(ctx, func() error {
		return s.repo.Set(ctx, key, value)
	}); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
	return nil
}

func (s *SettingsService) FooterEnabled(ctx context.Context) (bool, error) {
	value, err := s.Get(ctx, SettingFooterEnabled)
	return value == "1", err
}

func (s *SettingsService) AutoquizEnabled(ctx context.Context) (bool, error) {
	value, err := s.Get(ctx, SettingAutoquizEnabled)
	return value == "1", err
}

// AutoquizInterval returns the broadcast interval in minutes, falling back
// to the default when the stored value is unparseable.
func (s *SettingsService) AutoquizInterval(ctx context.Context) (int, error) {
	value, err := s.Get(ctx, SettingAutoquizInterval)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(value)
	if err != nil || minutes <= 0 {
		minutes, _ = strconv.Atoi(settingDefaults[SettingAutoquizInterval])
	}
	return minutes, nil
}

// SetAutoquizInterval validates and stores a new interval in minutes.
func (s *SettingsService) SetAutoquizInterval(ctx context.Context, raw string) error {
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return fmt.Errorf("%w: autoquiz interval %q must be a positive number of minutes", domain.ErrInvalidSetting, raw)
	}
	return s.Set(ctx, SettingAutoquizInterval, strconv.Itoa(minutes))
}

// ApplyFooter appends the configured footer divider to outgoing text when
// the footer is enabled.
func (s *SettingsService) ApplyFooter(ctx context.Context, text string) (string, error) {
	enabled, err := s.FooterEnabled(ctx)
	if err != nil {
		return text, err
	}
	if !enabled {
		return text, nil
	}
	footer, err := s.Get(ctx, SettingFooterText)
	if err != nil {
		return text, err
	}
	return text + "\n\n━━━━━━━━━━━━━━━━━━━\n" + footer, nil
}
