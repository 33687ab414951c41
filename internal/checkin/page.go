// Package checkin drives the sign-in and check-in form through a live
// browser page and classifies what the page reports back.
package checkin

import (
	"context"
	_ "embed"
)

// Page is the slice of a browser page the flow needs. Implementations
// must return wait and evaluation failures as they occur.
type Page interface {
	// Evaluate runs the JS function expression js in the document with
	// args and decodes its result into out. A nil out discards the result.
	Evaluate(ctx context.Context, js string, out any, args ...any) error
	// WaitForSelector blocks until an element matching selector exists.
	WaitForSelector(ctx context.Context, selector string) error
	// WaitForNavigation blocks until the page finishes loading a new document.
	WaitForNavigation(ctx context.Context) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

// In-page scripts. Exported so page fakes can recognise them.
var (
	//go:embed scripts/probe.js
	ProbeScript string

	//go:embed scripts/login.js
	LoginScript string

	//go:embed scripts/confirm.js
	ConfirmScript string

	//go:embed scripts/click.js
	ClickScript string

	//go:embed scripts/location.js
	LocationScript string
)

// ElementState is what ProbeScript reports for a selector.
type ElementState struct {
	Present bool   `json:"present"`
	Visible bool   `json:"visible"`
	Text    string `json:"text"`
}

// Shown reports whether every matching element is present and visible.
func (s ElementState) Shown() bool {
	return s.Present && s.Visible
}

func probe(ctx context.Context, page Page, selector string) (ElementState, error) {
	var state ElementState
	if err := page.Evaluate(ctx, ProbeScript, &state, selector); err != nil {
		return ElementState{}, err
	}
	return state, nil
}

// CurrentURL returns window.location.href of the page.
func CurrentURL(ctx context.Context, page Page) (string, error) {
	var href string
	if err := page.Evaluate(ctx, LocationScript, &href); err != nil {
		return "", err
	}
	return href, nil
}
