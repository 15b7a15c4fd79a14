package login

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/desertthunder/rdex/internal/shared"
)

// ChromeOptions configures the browser started by [NewChromePage].
type ChromeOptions struct {
	Headless bool
	// Proxy is passed to Chrome as --proxy-server when set.
	Proxy string
	// UserDataDir keeps the browser profile between runs when set.
	UserDataDir string
}

// ChromePage is a [Page] backed by a Chrome instance driven over the DevTools protocol.
type ChromePage struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewChromePage launches Chrome and opens a blank tab. Close releases the browser.
func NewChromePage(parent context.Context, opts ChromeOptions) (*ChromePage, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(parent), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		cancelAlloc()
		return nil, fmt.Errorf("%w: start browser: %v", shared.ErrLoginFailed, err)
	}
	return &ChromePage{ctx: ctx, cancel: cancel, cancelAlloc: cancelAlloc}, nil
}

// run executes actions on the browser tab, aborting them when ctx is done.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *ChromePage) Evaluate(ctx context.Context, script string, out any) error {
	return p.run(ctx, chromedp.Evaluate(script, out))
}

func (p *ChromePage) URL(ctx context.Context) (string, error) {
	var location string
	err := p.run(ctx, chromedp.Location(&location))
	return location, err
}

func (p *ChromePage) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		got, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range got {
			cookies = append(cookies, Cookie{Domain: c.Domain, Name: c.Name, Value: c.Value})
		}
		return nil
	}))
	return cookies, err
}

func (p *ChromePage) SessionStorage(ctx context.Context) ([]StorageItem, error) {
	var items []StorageItem
	err := p.Evaluate(ctx, loadScript(scriptSessionStorage), &items)
	return items, err
}

// Close shuts the browser down.
func (p *ChromePage) Close() error {
	p.cancel()
	p.cancelAlloc()
	return nil
}
