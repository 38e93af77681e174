package models

// PageMeta is harvested from the page once loading has finished.
type PageMeta struct {
	FinalURL     string `json:"final_url,omitempty" yaml:"final_url,omitempty"`
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	MetaDesc     string `json:"meta_desc,omitempty" yaml:"meta_desc,omitempty"`
	HTMLLang     string `json:"html_lang,omitempty" yaml:"html_lang,omitempty"`
	DetectedLang string `json:"detected_lang,omitempty" yaml:"detected_lang,omitempty"` // ISO-639-1, lowercase
	Excerpt      string `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	TextLength   int    `json:"text_length" yaml:"text_length"`
	// ConsentPlatform is the recognised consent-management platform, if any.
	ConsentPlatform string `json:"consent_platform,omitempty" yaml:"consent_platform,omitempty"`
	Country         string `json:"country,omitempty" yaml:"country,omitempty"`
	OptInRegime     bool   `json:"opt_in_regime" yaml:"opt_in_regime"`
}
