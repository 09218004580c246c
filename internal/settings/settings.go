// Package settings persists per-device display preferences and the invite
// token a visitor arrived with.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	settingsKey    = "budget-tracker-settings"
	inviteTokenKey = "budget-invite-token"
)

var ErrInvalid = errors.New("invalid settings")

// KeyValue is device-scoped string storage. *store.DeviceState satisfies it.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type Settings struct {
	Language string `json:"language"`
	Currency string `json:"currency"`
	Theme    string `json:"theme"`
}

var (
	Languages  = []string{"ua", "en"}
	Currencies = []string{"UAH", "USD", "EUR"}
	Themes     = []string{"light", "dark"}
)

func Defaults() Settings {
	return Settings{Language: "ua", Currency: "UAH", Theme: "light"}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate reports the first field holding a value outside its enumeration.
func (s Settings) Validate() error {
	switch {
	case !oneOf(s.Language, Languages):
		return fmt.Errorf("%w: language %q", ErrInvalid, s.Language)
	case !oneOf(s.Currency, Currencies):
		return fmt.Errorf("%w: currency %q", ErrInvalid, s.Currency)
	case !oneOf(s.Theme, Themes):
		return fmt.Errorf("%w: theme %q", ErrInvalid, s.Theme)
	}
	return nil
}

// withDefaults replaces missing or unknown fields with defaults.
func (s Settings) withDefaults() Settings {
	d := Defaults()
	if oneOf(s.Language, Languages) {
		d.Language = s.Language
	}
	if oneOf(s.Currency, Currencies) {
		d.Currency = s.Currency
	}
	if oneOf(s.Theme, Themes) {
		d.Theme = s.Theme
	}
	return d
}

type Repository struct {
	kv KeyValue
}

func NewRepository(kv KeyValue) *Repository {
	return &Repository{kv: kv}
}

// Load returns the stored settings. Missing or unreadable blobs yield the
// defaults; only storage errors are returned.
func (r *Repository) Load(ctx context.Context) (Settings, error) {
	raw, ok, err := r.kv.Get(ctx, settingsKey)
	if err != nil {
		return Defaults(), fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return Defaults(), nil
	}
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Defaults(), nil
	}
	return s.withDefaults(), nil
}

func (r *Repository) Save(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := r.kv.Set(ctx, settingsKey, string(raw)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// PendingInvite holds an invite token captured before the visitor signed in.
type PendingInvite struct {
	kv KeyValue
}

func NewPendingInvite(kv KeyValue) *PendingInvite {
	return &PendingInvite{kv: kv}
}

// Get returns the stored token, or "" when there is none.
func (p *PendingInvite) Get(ctx context.Context) (string, error) {
	token, _, err := p.kv.Get(ctx, inviteTokenKey)
	if err != nil {
		return "", fmt.Errorf("get pending invite: %w", err)
	}
	return token, nil
}

func (p *PendingInvite) Set(ctx context.Context, token string) error {
	if err := p.kv.Set(ctx, inviteTokenKey, token); err != nil {
		return fmt.Errorf("set pending invite: %w", err)
	}
	return nil
}

func (p *PendingInvite) Clear(ctx context.Context) error {
	if err := p.kv.Delete(ctx, inviteTokenKey); err != nil {
		return fmt.Errorf("clear pending invite: %w", err)
	}
	return nil
}
