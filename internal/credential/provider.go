package credential

import (
	"fmt"
	"strings"

	"github.com/amishk599/jobpilot/internal/model"
)

// Entry configures one platform login. The password is resolved with Load.
type Entry struct {
	Platform     string
	Username     string
	Password     string
	PasswordFile string
}

// StaticProvider serves credentials resolved from configuration.
type StaticProvider struct {
	creds map[string]model.Credential
}

// NewStaticProvider resolves every entry's password. An entry whose password
// cannot be loaded is an error.
func NewStaticProvider(entries []Entry) (*StaticProvider, error) {
	p := &StaticProvider{creds: make(map[string]model.Credential, len(entries))}
	for _, e := range entries {
		platform := strings.ToLower(strings.TrimSpace(e.Platform))
		if platform == "" {
			return nil, fmt.Errorf("credential entry without platform")
		}
		pw, err := Load(Source{Name: platform + " password", Value: e.Password, File: e.PasswordFile})
		if err != nil {
			return nil, err
		}
		p.creds[platform] = model.Credential{Username: strings.TrimSpace(e.Username), Password: pw}
	}
	return p, nil
}

// Get returns the configured credential for platform.
func (p *StaticProvider) Get(platform string) (model.Credential, bool) {
	c, ok := p.creds[strings.ToLower(platform)]
	return c, ok
}

// Chain asks each provider in order and returns the first hit.
type Chain []model.CredentialProvider

// Get returns the first credential any provider has for platform.
func (c Chain) Get(platform string) (model.Credential, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if cred, ok := p.Get(platform); ok {
			return cred, true
		}
	}
	return model.Credential{}, false
}
