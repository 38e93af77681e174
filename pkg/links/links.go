// Package links snapshots a page's hyperlink collection.
package links

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/dom"
)

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*$`)

// Extract returns one record per anchor in document order. Anchors that fail to
// read are left out and their errors joined; the remaining records are still returned.
func Extract(doc dom.Document) ([]models.LinkRecord, error) {
	anchors, err := doc.Links()
	if err != nil {
		return []models.LinkRecord{}, fmt.Errorf("read links: %w", err)
	}

	records := make([]models.LinkRecord, 0, len(anchors))
	var errs []error
	for i, a := range anchors {
		rec, err := a.Link()
		if err != nil {
			errs = append(errs, fmt.Errorf("link %d: %w", i, err))
			continue
		}
		records = append(records, rec)
	}
	return records, errors.Join(errs...)
}

// Protocol returns the scheme of href with its trailing colon, as URL parsers in
// browsers report it. An href without a valid scheme yields ":".
func Protocol(href string) string {
	scheme, _, found := strings.Cut(href, ":")
	if !found || !schemePattern.MatchString(scheme) {
		return ":"
	}
	return strings.ToLower(scheme) + ":"
}
