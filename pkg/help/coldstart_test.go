package help

import (
	"testing"

	"github.com/dtnitsch/consent-audit/models"
	"gopkg.in/yaml.v3"
)

func TestColdstartYAML(t *testing.T) {
	var doc struct {
		Units         map[string]string `yaml:"units"`
		ConfigExample string            `yaml:"config_example"`
	}
	if err := yaml.Unmarshal([]byte(ColdstartYAML), &doc); err != nil {
		t.Fatalf("quick start is not valid YAML: %v", err)
	}

	for _, name := range []string{"consent_prompt_exists", "accept_consent", "links"} {
		if doc.Units[name] == "" {
			t.Errorf("quick start does not describe %s", name)
		}
	}

	cfg := models.DefaultConfig()
	if err := yaml.Unmarshal([]byte(doc.ConfigExample), cfg); err != nil {
		t.Fatalf("config example does not parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config example does not validate: %v", err)
	}
	if p := cfg.ProfileFor("www.example.com"); p.AcceptID != "cookie-accept" {
		t.Errorf("config example profile = %+v", p)
	}
}
