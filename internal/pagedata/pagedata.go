// Package pagedata contains the state of the frames of a single page and the
// user scripts built from it.
package pagedata

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"golang.org/x/sync/errgroup"
)

// ScriptTypesSource returns the engine user scripts for frames.
// [*enginecache.Default] is the main implementation.
type ScriptTypesSource interface {
	// EngineScriptTypes returns the engine user scripts for the frame.
	EngineScriptTypes(ctx context.Context, frameURL string, isMainFrame bool) (sts *adblock.ScriptTypes)
}

// Config is the configuration structure for a [*PageData].
type Config struct {
	// Logger is used for logging the operation of the page.  It must not be
	// nil.
	Logger *slog.Logger

	// Scripts is the source of the engine user scripts.  It must not be nil.
	Scripts ScriptTypesSource

	// Parser is used to determine the registrable domains of URLs.  It must
	// not be nil.
	Parser domainparser.Interface

	// MainFrameURL is the URL of the main frame of the page.
	MainFrameURL string
}

// PageData is the state of the frames of a single page.  All methods are safe
// for concurrent use.
type PageData struct {
	logger  *slog.Logger
	scripts ScriptTypesSource
	parser  domainparser.Interface

	// mu protects mainFrameURL and subframeURLs.
	mu           *sync.Mutex
	mainFrameURL string
	subframeURLs *container.MapSet[string]
}

// New returns a new properly initialized *PageData.  c must not be nil.
func New(c *Config) (p *PageData) {
	return &PageData{
		logger:       c.Logger,
		scripts:      c.Scripts,
		parser:       c.Parser,
		mu:           &sync.Mutex{},
		mainFrameURL: c.MainFrameURL,
		subframeURLs: container.NewMapSet[string](),
	}
}

// MainFrameURL returns the current URL of the main frame.
func (p *PageData) MainFrameURL() (u string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.mainFrameURL
}

// AddSubframeURL records the frame URL of a request unless the request is for
// the main frame.
func (p *PageData) AddSubframeURL(requestURL string, isMainFrame bool) {
	if isMainFrame {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.subframeURLs.Add(requestURL)
}

// UpgradeFrameURL records the response URL of a frame, which may differ from
// the request URL, for example after an HTTPS upgrade.  ok is true if the
// frames of the page have changed and the user scripts must be rebuilt.
func (p *PageData) UpgradeFrameURL(responseURL string, isMainFrame bool) (ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isMainFrame {
		if p.mainFrameURL == responseURL {
			return false
		}

		p.mainFrameURL = responseURL

		return true
	}

	if p.subframeURLs.Has(responseURL) {
		return false
	}

	if u, err := url.Parse(responseURL); err == nil && u.Scheme == "https" {
		u.Scheme = "http"
		p.subframeURLs.Delete(u.String())
	}

	p.subframeURLs.Add(responseURL)

	return true
}

// UserScriptTypes returns the user scripts for the page: the enabled Global
// Privacy Control script and the engine scripts for the main frame and every
// known subframe.  The frames are queried concurrently.
func (p *PageData) UserScriptTypes(ctx context.Context) (sts *adblock.ScriptTypes) {
	p.mu.Lock()
	mainFrameURL := p.mainFrameURL
	subframeURLs := p.subframeURLs.Values()
	p.mu.Unlock()

	results := make([]*adblock.ScriptTypes, len(subframeURLs)+1)

	g := &errgroup.Group{}
	g.Go(func() (err error) {
		defer slogutil.RecoverAndLog(ctx, p.logger)

		results[0] = p.scripts.EngineScriptTypes(ctx, mainFrameURL, true)

		return nil
	})

	for i, frameURL := range subframeURLs {
		g.Go(func() (err error) {
			defer slogutil.RecoverAndLog(ctx, p.logger)

			results[i+1] = p.scripts.EngineScriptTypes(ctx, frameURL, false)

			return nil
		})
	}

	// The goroutines never return errors.
	_ = g.Wait()

	sts = adblock.NewScriptTypes(adblock.ScriptTypeGPC(true))
	for _, res := range results {
		if res == nil {
			continue
		}

		res.Range(func(st adblock.ScriptType) (cont bool) {
			sts.Add(st)

			return true
		})
	}

	return sts
}

// URLPartiness returns, for every URL in urls, whether it has the same
// registrable domain as frameURL.
func (p *PageData) URLPartiness(frameURL string, urls []string) (res map[string]bool) {
	res = make(map[string]bool, len(urls))
	for _, u := range urls {
		res[u] = domainparser.IsSameParty(p.parser, frameURL, u)
	}

	return res
}
