// Package detector recognises consent-management platforms from page markup and
// guesses the privacy jurisdiction of a site from its host.
package detector

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Platform is a known consent-management platform and the identifiers its banner uses.
type Platform struct {
	Name     string
	PromptID string
	AcceptID string
	RejectID string

	// markers are element ids or script-src fragments that reveal the platform.
	idMarkers     []string
	scriptMarkers []string
}

var platforms = []Platform{
	{
		Name:          "onetrust",
		PromptID:      "onetrust-banner-sdk",
		AcceptID:      "onetrust-accept-btn-handler",
		RejectID:      "onetrust-reject-all-handler",
		idMarkers:     []string{"onetrust-banner-sdk", "onetrust-consent-sdk"},
		scriptMarkers: []string{"cdn.cookielaw.org", "otsdkstub", "optanon"},
	},
	{
		Name:          "cookiebot",
		PromptID:      "CybotCookiebotDialog",
		AcceptID:      "CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
		RejectID:      "CybotCookiebotDialogBodyButtonDecline",
		idMarkers:     []string{"CybotCookiebotDialog", "Cookiebot"},
		scriptMarkers: []string{"consent.cookiebot.com"},
	},
	{
		Name:          "didomi",
		PromptID:      "didomi-notice",
		AcceptID:      "didomi-notice-agree-button",
		RejectID:      "didomi-notice-disagree-button",
		idMarkers:     []string{"didomi-host", "didomi-notice"},
		scriptMarkers: []string{"sdk.privacy-center.org"},
	},
	{
		Name:          "trustarc",
		PromptID:      "truste-consent-track",
		AcceptID:      "truste-consent-button",
		RejectID:      "truste-consent-required",
		idMarkers:     []string{"truste-consent-track", "teconsent"},
		scriptMarkers: []string{"consent.trustarc.com", "consent.truste.com"},
	},
	{
		Name:          "quantcast",
		PromptID:      "qc-cmp2-container",
		idMarkers:     []string{"qc-cmp2-container", "qc-cmp2-ui"},
		scriptMarkers: []string{"quantcast.mgr.consensu.org", "cmp.quantcast.com"},
	},
	{
		Name:          "usercentrics",
		idMarkers:     []string{"usercentrics-root", "usercentrics-cmp"},
		scriptMarkers: []string{"app.usercentrics.eu", "web.cmp.usercentrics.eu"},
	},
	{
		Name:          "cookieyes",
		PromptID:      "cookie-law-info-bar",
		AcceptID:      "cookie_action_close_header",
		RejectID:      "cookie_action_close_header_reject",
		idMarkers:     []string{"cookie-law-info-bar"},
		scriptMarkers: []string{"cdn-cookieyes.com"},
	},
	{
		Name:          "iubenda",
		PromptID:      "iubenda-cs-banner",
		idMarkers:     []string{"iubenda-cs-banner"},
		scriptMarkers: []string{"cdn.iubenda.com"},
	},
	{
		Name:          "klaro",
		idMarkers:     []string{"klaro"},
		scriptMarkers: []string{"klaro.js", "klaro.min.js", "cdn.kiprotect.com"},
	},
}

// euCountries are the ccTLDs of the EU/EEA plus the UK and Switzerland, whose
// consent rules require an explicit opt-in.
var euCountries = map[string]bool{
	"at": true, "be": true, "bg": true, "hr": true, "cy": true, "cz": true, "dk": true,
	"ee": true, "fi": true, "fr": true, "de": true, "gr": true, "hu": true, "ie": true,
	"it": true, "lv": true, "lt": true, "lu": true, "mt": true, "nl": true, "pl": true,
	"pt": true, "ro": true, "sk": true, "si": true, "es": true, "se": true, "is": true,
	"li": true, "no": true, "uk": true, "ch": true, "eu": true,
}

// Signals are the cheap detection results for one page.
type Signals struct {
	Platform *Platform
	// Country is the ccTLD of the host, "us" for .gov/.edu/.mil, or "unknown".
	Country string
	// OptIn is true when the site's TLD falls under an opt-in consent regime.
	OptIn bool
	// Confidence in the platform match, 0-10.
	Confidence float64
}

// PlatformName is the detected platform, or "" when none was recognised.
func (s *Signals) PlatformName() string {
	if s.Platform == nil {
		return ""
	}
	return s.Platform.Name
}

// Analyze inspects the page markup and URL. doc may be nil.
func Analyze(rawURL string, doc *goquery.Document) *Signals {
	s := &Signals{Country: "unknown"}
	if u, err := url.Parse(rawURL); err == nil {
		s.Country = detectCountry(u)
		s.OptIn = euCountries[s.Country]
	}
	if doc == nil {
		return s
	}

	ids := map[string]bool{}
	doc.Find("[id]").Each(func(_ int, sel *goquery.Selection) {
		ids[sel.AttrOr("id", "")] = true
	})
	var scripts []string
	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		scripts = append(scripts, strings.ToLower(sel.AttrOr("src", "")))
	})

	best := 0.0
	for i := range platforms {
		score := platforms[i].score(ids, scripts)
		if score > best {
			best = score
			s.Platform = &platforms[i]
		}
	}
	s.Confidence = best
	return s
}

// score is 6 for a banner element, 4 for a loader script, capped at 10.
func (p *Platform) score(ids map[string]bool, scripts []string) float64 {
	score := 0.0
	for _, id := range p.idMarkers {
		if ids[id] {
			score += 6
			break
		}
	}
	for _, marker := range p.scriptMarkers {
		found := false
		for _, src := range scripts {
			if strings.Contains(src, marker) {
				found = true
				break
			}
		}
		if found {
			score += 4
			break
		}
	}
	if score > 10 {
		score = 10
	}
	return score
}

// Platforms lists the recognised platforms.
func Platforms() []Platform {
	return append([]Platform(nil), platforms...)
}

// detectCountry extracts country from TLD
func detectCountry(u *url.URL) string {
	parts := strings.Split(strings.ToLower(u.Hostname()), ".")
	if len(parts) < 2 {
		return "unknown"
	}

	tld := parts[len(parts)-1]
	if tld == "gov" || tld == "edu" || tld == "mil" {
		return "us"
	}
	if len(tld) == 2 {
		if tld == "gb" {
			return "uk"
		}
		return tld
	}
	return "unknown"
}
