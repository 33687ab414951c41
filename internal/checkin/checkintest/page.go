// Package checkintest provides an in-memory checkin.Page for tests.
package checkintest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shehryarbajwa/checkin-runner/internal/checkin"
)

// Element is a fake DOM node keyed by the selector that matches it
type Element struct {
	Visible bool
	Text    string
}

// Page is a scripted page. Selectors resolve against a flat map of
// elements, and the in-page scripts the flow uses are interpreted by hooks.
//
// By default a navigation recorded before WaitForNavigation is called still
// satisfies the next wait, so hooks can navigate synchronously. A browser
// only reports load events that fire after the wait subscribes; set
// StrictNavigation to get that behavior, and use NavigateOnWait for a
// redirect that lands while the flow is waiting.
type Page struct {
	mu          sync.Mutex
	url         string
	elements    map[string]Element
	changed     chan struct{}
	navigations int
	seen        int
	pending     string

	// StrictNavigation drops navigations recorded before WaitForNavigation
	// was called.
	StrictNavigation bool

	// OnLogin runs when the login script is evaluated.
	OnLogin func(p *Page, username, password string)
	// OnConfirm runs when the location confirm script is evaluated.
	OnConfirm func(p *Page)
	// OnClick runs when the click script is evaluated.
	OnClick func(p *Page, selector string)

	EvalErr       error
	ScreenshotErr error

	Logins      []checkin.Credentials
	Clicks      []string
	Screenshots int
}

// NewPage returns an empty page at url
func NewPage(url string) *Page {
	return &Page{
		url:      url,
		elements: make(map[string]Element),
		changed:  make(chan struct{}),
	}
}

// Show adds or replaces a visible element
func (p *Page) Show(selector, text string) {
	p.set(selector, Element{Visible: true, Text: text})
}

// Hide adds or replaces a hidden element
func (p *Page) Hide(selector, text string) {
	p.set(selector, Element{Text: text})
}

// Remove deletes the element matching selector
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	delete(p.elements, selector)
	p.notifyLocked()
	p.mu.Unlock()
}

// Navigate moves the page to url and records a completed navigation
func (p *Page) Navigate(url string) {
	p.mu.Lock()
	p.url = url
	p.navigations++
	p.notifyLocked()
	p.mu.Unlock()
}

// NavigateOnWait defers a navigation to url until the next
// WaitForNavigation has subscribed
func (p *Page) NavigateOnWait(url string) {
	p.mu.Lock()
	p.pending = url
	p.mu.Unlock()
}

// URL returns the current location
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) set(selector string, el Element) {
	p.mu.Lock()
	p.elements[selector] = el
	p.notifyLocked()
	p.mu.Unlock()
}

func (p *Page) notifyLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}

// wait blocks until ready reports true under the lock or ctx is done
func (p *Page) wait(ctx context.Context, ready func() bool) error {
	for {
		p.mu.Lock()
		if ready() {
			p.mu.Unlock()
			return nil
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Page) WaitForSelector(ctx context.Context, selector string) error {
	return p.wait(ctx, func() bool {
		_, ok := p.elements[selector]
		return ok
	})
}

func (p *Page) WaitForNavigation(ctx context.Context) error {
	p.mu.Lock()
	if p.StrictNavigation {
		p.seen = p.navigations
	}
	pending := p.pending
	p.pending = ""
	p.mu.Unlock()

	if pending != "" {
		p.Navigate(pending)
	}

	return p.wait(ctx, func() bool {
		if p.navigations > p.seen {
			p.seen = p.navigations
			return true
		}
		return false
	})
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	p.Screenshots++
	return []byte("\x89PNG fake"), nil
}

func (p *Page) Evaluate(ctx context.Context, js string, out any, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.EvalErr != nil {
		return p.EvalErr
	}

	switch js {
	case checkin.ProbeScript:
		return decode(p.probe(stringArg(args, 0)), out)
	case checkin.LocationScript:
		return decode(p.URL(), out)
	case checkin.LoginScript:
		creds := checkin.Credentials{Username: stringArg(args, 0), Password: stringArg(args, 1)}
		p.mu.Lock()
		p.Logins = append(p.Logins, creds)
		p.mu.Unlock()
		if p.OnLogin != nil {
			p.OnLogin(p, creds.Username, creds.Password)
		}
		return nil
	case checkin.ConfirmScript:
		if p.OnConfirm != nil {
			p.OnConfirm(p)
		}
		return nil
	case checkin.ClickScript:
		selector := stringArg(args, 0)
		p.mu.Lock()
		p.Clicks = append(p.Clicks, selector)
		p.mu.Unlock()
		if p.OnClick != nil {
			p.OnClick(p, selector)
		}
		return nil
	}
	return fmt.Errorf("checkintest: unsupported script %q", js)
}

func (p *Page) probe(selector string) checkin.ElementState {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return checkin.ElementState{}
	}
	return checkin.ElementState{Present: true, Visible: el.Visible, Text: el.Text}
}

func stringArg(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

func decode(v, out any) error {
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// CheckinSite returns a page that behaves like the real site for the given
// account: the login page is shown, the right password navigates to the
// form, a wrong one shows the error banner, and saving reports success.
func CheckinSite(username, password string) *Page {
	p := NewPage("https://onewechat.bnu.edu.cn/uc/wap/login")
	p.Show(checkin.LoginButton, "登录")
	p.OnLogin = func(p *Page, u, pw string) {
		if u != username || pw != password {
			p.Show(checkin.ErrorBannerContainer, "")
			p.Show(checkin.ErrorBanner, "账号或密码错误")
			return
		}
		p.Remove(checkin.LoginButton)
		p.Navigate("https://onewechat.bnu.edu.cn/ncov/wap/default/index")
		p.Show(checkin.LandingMarker, "")
	}
	p.OnConfirm = func(p *Page) {
		p.Show(checkin.ConfirmTitle, "确认提交信息")
	}
	p.OnClick = func(p *Page, selector string) {
		if selector == checkin.SaveButton {
			p.Show(checkin.ErrorBanner, checkin.SubmitSucceeded)
		}
	}
	return p
}

// StrictCheckinSite is CheckinSite with browser navigation ordering: the
// post-login redirect lands only after the flow starts waiting for it.
func StrictCheckinSite(username, password string) *Page {
	p := CheckinSite(username, password)
	p.StrictNavigation = true
	p.OnLogin = func(p *Page, u, pw string) {
		if u != username || pw != password {
			p.Show(checkin.ErrorBannerContainer, "")
			p.Show(checkin.ErrorBanner, "账号或密码错误")
			return
		}
		p.Remove(checkin.LoginButton)
		p.Show(checkin.LandingMarker, "")
		p.NavigateOnWait("https://onewechat.bnu.edu.cn/ncov/wap/default/index")
	}
	return p
}
