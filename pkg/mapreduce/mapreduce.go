// Package mapreduce aggregates link destinations across audited pages.
package mapreduce

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/dtnitsch/consent-audit/models"
)

// HostCount is one row of an aggregated host table.
type HostCount struct {
	Host  string `json:"host" yaml:"host"`
	Count int    `json:"count" yaml:"count"`
}

// Map counts the hosts of a page's http(s) links that leave the page's own site.
// Links to pageHost or any of its subdomains are skipped.
func Map(links []models.LinkRecord, pageHost string) map[string]int {
	site := strings.TrimPrefix(strings.ToLower(pageHost), "www.")
	counts := make(map[string]int)

	for _, l := range links {
		if l.Protocol != "http:" && l.Protocol != "https:" {
			continue
		}
		u, err := url.Parse(l.Href)
		if err != nil {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host == "" || host == site || strings.HasSuffix(host, "."+site) {
			continue
		}
		counts[host]++
	}
	return counts
}

// Reduce aggregates a slice of host count maps into a single map.
func Reduce(intermediate []map[string]int) map[string]int {
	final := make(map[string]int)
	for _, counts := range intermediate {
		for host, count := range counts {
			final[host] += count
		}
	}
	return final
}

// TopHosts returns the n most linked hosts, ties broken alphabetically.
// n <= 0 returns all of them.
func TopHosts(counts map[string]int, n int) []HostCount {
	out := make([]HostCount, 0, len(counts))
	for host, count := range counts {
		out = append(out, HostCount{Host: host, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Host < out[j].Host
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Format renders rows as "host:count" strings.
func Format(rows []HostCount) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = fmt.Sprintf("%s:%d", r.Host, r.Count)
	}
	return out
}
