package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Tab is one incognito page in a launched browser. It satisfies
// checkin.Page and owns the browser it was opened in.
type Tab struct {
	instance *Instance
	browser  *rod.Browser
	page     *rod.Page
}

// Driver opens tabs using a Launcher
type Driver struct {
	launcher Launcher
}

func NewDriver(l Launcher) *Driver {
	return &Driver{launcher: l}
}

// Open launches a browser for runID, opens an incognito page and navigates
// it to url. Everything is torn down again on failure.
func (d *Driver) Open(ctx context.Context, runID, url string) (_ *Tab, err error) {
	instance, err := d.launcher.Launch(ctx, runID)
	if err != nil {
		return nil, err
	}
	tab := &Tab{instance: instance}
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = tab.Close(closeCtx)
		}
	}()

	tab.browser = rod.New().ControlURL(instance.ConnectURL).Context(ctx)
	if err := tab.browser.Connect(); err != nil {
		tab.browser = nil
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	incognito, err := tab.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	tab.page, err = incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := tab.page.Context(ctx).Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	return tab, nil
}

func (t *Tab) ConnectURL() string  { return t.instance.ConnectURL }
func (t *Tab) ContainerID() string { return t.instance.ContainerID }

// Close disconnects from the browser and stops it
func (t *Tab) Close(ctx context.Context) error {
	if t.browser != nil {
		_ = t.browser.Close()
	}
	return t.instance.Stop(ctx)
}

func (t *Tab) Evaluate(ctx context.Context, js string, out any, args ...any) error {
	res, err := t.page.Context(ctx).Evaluate(rod.Eval(js, args...).ByPromise())
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (t *Tab) WaitForSelector(ctx context.Context, selector string) error {
	_, err := t.page.Context(ctx).Element(selector)
	return err
}

func (t *Tab) WaitForNavigation(ctx context.Context) error {
	wait := t.page.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameLoad)
	wait()
	return ctx.Err()
}

func (t *Tab) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return t.page.Context(ctx).Screenshot(fullPage, nil)
}
