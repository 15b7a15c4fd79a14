package login

import "context"

// Cookie is a browser cookie.
type Cookie struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// StorageItem is one sessionStorage entry.
type StorageItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Page is the browser surface the login machine needs.
type Page interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// Evaluate runs script in the page and decodes its JSON result into out.
	Evaluate(ctx context.Context, script string, out any) error
	// URL returns the current document location.
	URL(ctx context.Context) (string, error)
	// Cookies returns every cookie visible to the browser.
	Cookies(ctx context.Context) ([]Cookie, error)
	// SessionStorage returns the current origin's sessionStorage entries.
	SessionStorage(ctx context.Context) ([]StorageItem, error)
}
