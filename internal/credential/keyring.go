// Package credential resolves platform logins from the OS keyring and from
// configuration.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/amishk599/jobpilot/internal/model"
)

// DefaultKeyringService groups the application's secrets in the OS keychain.
const DefaultKeyringService = "jobpilot"

// KeyringProvider reads platform credentials stored as JSON in the OS keyring.
type KeyringProvider struct {
	service string
	logger  *slog.Logger
}

// NewKeyringProvider creates a provider for service; empty uses DefaultKeyringService.
func NewKeyringProvider(service string, logger *slog.Logger) *KeyringProvider {
	if strings.TrimSpace(service) == "" {
		service = DefaultKeyringService
	}
	return &KeyringProvider{service: service, logger: logger}
}

// Account is the keyring account name for platform.
func (k *KeyringProvider) Account(platform string) string {
	return fmt.Sprintf("%s:%s", k.service, strings.ToLower(platform))
}

type storedCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Get returns the credential for platform, if one is stored.
func (k *KeyringProvider) Get(platform string) (model.Credential, bool) {
	raw, err := keyring.Get(k.service, k.Account(platform))
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			k.logger.Debug("keyring lookup failed", "platform", platform, "error", err)
		}
		return model.Credential{}, false
	}

	var sc storedCredential
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		k.logger.Warn("ignoring malformed keyring entry", "platform", platform, "error", err)
		return model.Credential{}, false
	}
	if strings.TrimSpace(sc.Password) == "" {
		return model.Credential{}, false
	}
	return model.Credential{Username: sc.Username, Password: sc.Password}, true
}

// Set stores cred for platform, replacing any existing entry.
func (k *KeyringProvider) Set(platform string, cred model.Credential) error {
	if strings.TrimSpace(platform) == "" {
		return errors.New("platform name is empty")
	}
	if strings.TrimSpace(cred.Password) == "" {
		return errors.New("password is empty")
	}
	data, err := json.Marshal(storedCredential{Username: cred.Username, Password: cred.Password})
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := keyring.Set(k.service, k.Account(platform), string(data)); err != nil {
		return fmt.Errorf("store credential for %s: %w", platform, err)
	}
	return nil
}

// Delete removes the credential for platform.
func (k *KeyringProvider) Delete(platform string) error {
	if strings.TrimSpace(platform) == "" {
		return errors.New("platform name is empty")
	}
	if err := keyring.Delete(k.service, k.Account(platform)); err != nil {
		return fmt.Errorf("delete credential for %s: %w", platform, err)
	}
	return nil
}
