// Package settings holds the per-user preferences that shape every chat.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Setting keys as stored in the key/value table.
const (
	keyLearningLanguage    = "learning_language"
	keyInterfaceLanguage   = "interface_language"
	keyOnboardingCompleted = "onboarding_completed"
	keyPronouns            = "pronouns"
)

// DefaultLearningLanguage applies until onboarding picks one.
const DefaultLearningLanguage = "en"

// Settings is the full preference set surfaced to the client.
type Settings struct {
	LearningLanguage    string `json:"learning_language"`
	InterfaceLanguage   string `json:"interface_language"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
	Pronouns            string `json:"pronouns,omitempty"`
}

// Store is the key/value persistence behind the service. GetSetting returns
// sql.ErrNoRows for a key that was never written.
type Store interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// Broadcaster signals clients to refetch after onboarding completes.
type Broadcaster interface {
	BroadcastRefetch()
}

// Service reads and writes user preferences.
type Service struct {
	store Store
	hub   Broadcaster
}

func NewService(store Store, hub Broadcaster) *Service {
	return &Service{store: store, hub: hub}
}

// Get assembles the current settings, applying defaults for unset keys.
func (s *Service) Get() (Settings, error) {
	learning, err := s.get(keyLearningLanguage)
	if err != nil {
		return Settings{}, err
	}
	if learning == "" {
		learning = DefaultLearningLanguage
	}

	iface, err := s.get(keyInterfaceLanguage)
	if err != nil {
		return Settings{}, err
	}

	onboarded, err := s.get(keyOnboardingCompleted)
	if err != nil {
		return Settings{}, err
	}

	pronouns, err := s.get(keyPronouns)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LearningLanguage:    learning,
		InterfaceLanguage:   iface,
		OnboardingCompleted: onboarded == "true",
		Pronouns:            pronouns,
	}, nil
}

// Save persists the settings. Completing onboarding for the first time
// broadcasts a refetch so every open screen reloads with the new language.
func (s *Service) Save(next Settings) error {
	if strings.TrimSpace(next.LearningLanguage) == "" {
		return errors.New("learning language is required")
	}

	wasOnboarded, err := s.get(keyOnboardingCompleted)
	if err != nil {
		return err
	}

	pairs := map[string]string{
		keyLearningLanguage:    next.LearningLanguage,
		keyInterfaceLanguage:   next.InterfaceLanguage,
		keyOnboardingCompleted: fmt.Sprintf("%t", next.OnboardingCompleted),
		keyPronouns:            next.Pronouns,
	}
	for key, value := range pairs {
		if err := s.store.SetSetting(key, value); err != nil {
			return fmt.Errorf("save setting %s: %w", key, err)
		}
	}

	if next.OnboardingCompleted && wasOnboarded != "true" && s.hub != nil {
		s.hub.BroadcastRefetch()
	}
	return nil
}

// LearningLanguage returns the configured target language, falling back to
// the default when onboarding has not set one yet.
func (s *Service) LearningLanguage() (string, error) {
	value, err := s.get(keyLearningLanguage)
	if err != nil {
		return "", err
	}
	if value == "" {
		return DefaultLearningLanguage, nil
	}
	return value, nil
}

func (s *Service) get(key string) (string, error) {
	value, err := s.store.GetSetting(key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load setting %s: %w", key, err)
	}
	return value, nil
}
