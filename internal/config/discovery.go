package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// serviceDiscovery maps each service id to a single-element list holding its
// base URL.
//
// Example (YAML):
//
//	artifact_store:
//	  - https://artifacts.internal.example.org
//	crm:
//	  - https://crm.internal.example.org/api
//	motion:
//	  - https://api.usemotion.com
type serviceDiscovery map[string][]string

// Services holds discovered base URLs. Empty fields were not listed.
type Services struct {
	ArtifactStore string
	CRM           string
	Motion        string
}

// LoadServices parses a service discovery file.
func LoadServices(path string) (Services, error) {
	b, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return Services{}, fmt.Errorf("read DEALPREP_SERVICE_DISCOVERY file: %w", err)
	}

	var raw serviceDiscovery
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return Services{}, fmt.Errorf("parse DEALPREP_SERVICE_DISCOVERY YAML: %w", err)
	}

	getOne := func(key string) string {
		vals := raw[key]
		if len(vals) == 0 {
			return ""
		}
		return strings.TrimSpace(vals[0])
	}

	svc := Services{
		ArtifactStore: getOne("artifact_store"),
		CRM:           getOne("crm"),
		Motion:        getOne("motion"),
	}
	if svc == (Services{}) {
		return Services{}, fmt.Errorf("DEALPREP_SERVICE_DISCOVERY lists none of artifact_store, crm, motion")
	}
	return svc, nil
}

func (s Services) apply(c *Config) {
	if s.ArtifactStore != "" {
		c.Store.BaseURL = s.ArtifactStore
		c.Store.Driver = "remote"
	}
	if s.CRM != "" {
		c.Delivery.CRM.BaseURL = s.CRM
	}
	if s.Motion != "" {
		c.Delivery.Motion.BaseURL = s.Motion
	}
}
