package help

// ColdstartYAML is printed by the coldstart command.
const ColdstartYAML = `# consent-audit Quick Start

drivers:
  static: "Fetch HTML over HTTP and audit the parsed page (default, no browser needed)"
  rod: "Drive Chrome over the DevTools protocol"
  playwright: "Drive Chromium through the playwright driver"

units:
  consent_prompt_exists: "true when the prompt element (prompt_id) is on the page"
  accept_consent_by_id: "click the element with accept_id"
  reject_consent_by_id: "click the element with reject_id"
  accept_consent: "click every short button/a/span/div label containing accept_keyword"
  reject_consent: "click every short button/a/span/div label containing reject_keyword"
  links: "every hyperlink as {text, href, protocol}"
  page_meta: "title, description, language and consent platform"
  no_return: "prefix any unit with load_ to run it without capturing its result"

results:
  "true": "element found or at least one activation succeeded"
  "false": "not found, no match, or every activation failed"
  "null": "page was still loading; the unit was retried in the background"

commands:
  audit: |
    consent-audit audit https://example.com
    consent-audit audit --driver rod --urls "https://a.example,https://b.example" --workers 2

  custom_sequence: |
    consent-audit audit --injections "consent_prompt_exists,load_reject_consent,links" https://example.com

  links_only: |
    consent-audit links --protocol https https://example.com

  history: |
    consent-audit scans --domain example.com
    consent-audit scan <scan-id> --format yaml

config_example: |
  driver: static
  retry_interval: 1s
  max_wait: 60s
  inject_after: 3s
  settle: 2s
  injections: [consent_prompt_exists, reject_consent, accept_consent]
  auto_profile: true
  sites:
    - host: example.com
      prompt_id: cookie-banner
      accept_id: cookie-accept
      reject_id: cookie-reject
      accept_keyword: agree
`
