package models

// LinkRecord is one entry of a page's hyperlink collection.
// Href and Protocol are read from the same anchor in a single read.
type LinkRecord struct {
	Text     string `json:"text" yaml:"text"`
	Href     string `json:"href" yaml:"href"`
	Protocol string `json:"protocol" yaml:"protocol"`
}
