package clients

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// registryFile is the on-disk layout of a clients file:
//
//	clients:
//	  - id: mobile-app
//	    secret_hash: $2a$10$...
//	    grant_types: [urn:custom:mfa-otp]
//	    scopes: [profile, email]
type registryFile struct {
	Clients []*Client `yaml:"clients"`
}

// LoadFile reads a YAML clients file and upserts every client into repo.
// It returns the number of clients loaded.
func LoadFile(path string, repo Repo) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrap(err, "[clients.LoadFile] read")
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, errors.Wrap(err, "[clients.LoadFile] yaml.Unmarshal")
	}

	for i, c := range file.Clients {
		if c == nil || c.ID == "" {
			return 0, errors.Errorf("[clients.LoadFile] client %d has no id", i)
		}
		if err := repo.Upsert(c); err != nil {
			return 0, errors.Wrapf(err, "[clients.LoadFile] Upsert %s", c.ID)
		}
	}
	return len(file.Clients), nil
}
