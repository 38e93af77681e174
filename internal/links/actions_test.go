package links

import (
	"testing"

	"github.com/dtnitsch/consent-audit/models"
)

func TestFilterProtocols(t *testing.T) {
	records := []models.LinkRecord{
		{Href: "https://demo.test/", Protocol: "https:"},
		{Href: "mailto:dpo@demo.test", Protocol: "mailto:"},
		{Href: "http://demo.test/", Protocol: "http:"},
		{Href: "https://demo.test/", Protocol: "https:"},
	}

	tests := []struct {
		name      string
		protocols []string
		want      int
	}{
		{"no filter", nil, 4},
		{"bare name", []string{"https"}, 2},
		{"with colon", []string{"mailto:"}, 1},
		{"several", []string{"HTTP", "mailto"}, 2},
		{"none match", []string{"tel"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filterProtocols(records, tt.protocols); len(got) != tt.want {
				t.Errorf("filterProtocols(%v) kept %d, want %d", tt.protocols, len(got), tt.want)
			}
		})
	}
}
