// Package dom is the page surface the consent and link operations run against.
// A Document is either a parsed static page (htmldoc) or a live browser page
// (browser/rodpage, browser/pwpage).
package dom

import (
	"errors"
	"io"

	"github.com/dtnitsch/consent-audit/models"
)

var (
	// ErrNotFound is returned when an identifier resolves to no element.
	ErrNotFound = errors.New("element not found")
	// ErrNotInteractable is returned when an element exists but cannot be activated.
	ErrNotInteractable = errors.New("element not interactable")
)

// ReadyState mirrors document.readyState.
type ReadyState string

const (
	StateLoading     ReadyState = "loading"
	StateInteractive ReadyState = "interactive"
	StateComplete    ReadyState = "complete"
)

// Element is a single element reference.
type Element interface {
	// TagName is the lowercase element kind, e.g. "button".
	TagName() string
	// TextContent is the element's textContent, unnormalized.
	TextContent() (string, error)
	// Click invokes the element's primary activation.
	Click() error
}

// Anchor is an entry of the document's hyperlink collection.
type Anchor interface {
	// Link reads text, resolved href and protocol in one read.
	Link() (models.LinkRecord, error)
}

// Document is the page-level view.
type Document interface {
	ReadyState() (ReadyState, error)
	// ElementByID returns ErrNotFound when no element carries the identifier.
	ElementByID(id string) (Element, error)
	// ElementsByTag returns elements of one kind in document order.
	ElementsByTag(tag string) ([]Element, error)
	// Links returns the hyperlink collection (a[href], area[href]) in document order.
	Links() ([]Anchor, error)
	// URL is the document's current address.
	URL() (string, error)
	// OuterHTML is a snapshot of document.documentElement.outerHTML.
	OuterHTML() (string, error)
}

// Page is a Document owned by a backend that must be released.
type Page interface {
	Document
	io.Closer
}
