package persist

import (
	"context"
	"errors"
	"fmt"

	"pyx-backend/internal/model"
	"pyx-backend/internal/storage"
	"pyx-backend/pkg/logger"
)

const (
	kindPreferences   = "preferences"
	kindProfile       = "profile"
	kindConversations = "conversations"
	kindAIConfig      = "ai-config"
)

// Store maps one visitor's documents onto storage keys of the form
// <prefix>:<visitor>:<kind>. Every value is a versioned JSON envelope.
type Store struct {
	backend storage.Storage
	prefix  string
	sealer  *keySealer
}

// NewStore wraps backend. A non-empty secret encrypts stored API keys.
func NewStore(backend storage.Storage, prefix, secret string) *Store {
	if prefix == "" {
		prefix = "pyx"
	}
	return &Store{backend: backend, prefix: prefix, sealer: newKeySealer(secret)}
}

func (s *Store) key(visitor, kind string) string {
	return s.prefix + ":" + visitor + ":" + kind
}

func (s *Store) load(ctx context.Context, visitor, kind string, v interface{}) (bool, error) {
	raw, err := s.backend.Get(ctx, s.key(visitor, kind))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", kind, err)
	}
	if err := decode(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", kind, err)
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, visitor, kind string, v interface{}) error {
	raw, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := s.backend.Set(ctx, s.key(visitor, kind), raw); err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	return nil
}

// LoadPreferences returns the defaults when nothing is stored. Fields absent
// from an older document keep their default values.
func (s *Store) LoadPreferences(ctx context.Context, visitor string) (model.UserPreferences, error) {
	prefs := model.DefaultPreferences()
	if _, err := s.load(ctx, visitor, kindPreferences, &prefs); err != nil {
		return model.DefaultPreferences(), err
	}
	return prefs, nil
}

func (s *Store) SavePreferences(ctx context.Context, visitor string, prefs model.UserPreferences) error {
	return s.save(ctx, visitor, kindPreferences, prefs)
}

func (s *Store) LoadProfile(ctx context.Context, visitor string) (model.UserProfile, error) {
	var profile model.UserProfile
	if _, err := s.load(ctx, visitor, kindProfile, &profile); err != nil {
		return model.UserProfile{}, err
	}
	return profile, nil
}

func (s *Store) SaveProfile(ctx context.Context, visitor string, profile model.UserProfile) error {
	return s.save(ctx, visitor, kindProfile, profile)
}

// LoadConversations returns the archived sessions, newest first.
func (s *Store) LoadConversations(ctx context.Context, visitor string) ([]model.ConversationSession, error) {
	var sessions []model.ConversationSession
	if _, err := s.load(ctx, visitor, kindConversations, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) SaveConversations(ctx context.Context, visitor string, sessions []model.ConversationSession) error {
	if sessions == nil {
		sessions = []model.ConversationSession{}
	}
	return s.save(ctx, visitor, kindConversations, sessions)
}

// LoadAIConfig decrypts stored API keys. A key that cannot be decrypted is
// dropped so the visitor falls back to the server default.
func (s *Store) LoadAIConfig(ctx context.Context, visitor string) (model.AIServiceConfig, error) {
	var cfg model.AIServiceConfig
	if _, err := s.load(ctx, visitor, kindAIConfig, &cfg); err != nil {
		return model.AIServiceConfig{}, err
	}
	for name, value := range cfg.APIKeys {
		plain, err := s.sealer.open(value)
		if err != nil {
			logger.Warnf("Dropping stored %s api key for visitor %s: %v", name, visitor, err)
			delete(cfg.APIKeys, name)
			continue
		}
		cfg.APIKeys[name] = plain
	}
	return cfg, nil
}

func (s *Store) SaveAIConfig(ctx context.Context, visitor string, cfg model.AIServiceConfig) error {
	stored := cfg.Clone()
	for name, value := range stored.APIKeys {
		sealed, err := s.sealer.seal(value)
		if err != nil {
			return fmt.Errorf("encrypt %s api key: %w", name, err)
		}
		stored.APIKeys[name] = sealed
	}
	return s.save(ctx, visitor, kindAIConfig, stored)
}

// Visitors lists visitor ids that have at least one stored document.
func (s *Store) Visitors(ctx context.Context) ([]string, error) {
	keys, err := s.backend.Keys(ctx, s.prefix+":")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	visitors := make([]string, 0)
	for _, k := range keys {
		rest := k[len(s.prefix)+1:]
		for _, kind := range []string{kindPreferences, kindProfile, kindConversations, kindAIConfig} {
			suffix := ":" + kind
			if len(rest) > len(suffix) && rest[len(rest)-len(suffix):] == suffix {
				v := rest[:len(rest)-len(suffix)]
				if !seen[v] {
					seen[v] = true
					visitors = append(visitors, v)
				}
				break
			}
		}
	}
	return visitors, nil
}

// DeleteVisitor removes every document stored for visitor.
func (s *Store) DeleteVisitor(ctx context.Context, visitor string) error {
	for _, kind := range []string{kindPreferences, kindProfile, kindConversations, kindAIConfig} {
		if err := s.backend.Delete(ctx, s.key(visitor, kind)); err != nil {
			return err
		}
	}
	return nil
}
