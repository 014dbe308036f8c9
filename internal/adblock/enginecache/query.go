package enginecache

import (
	"context"
	"slices"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock/cachedengine"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/errcoll"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// enabledEngine is a cached engine of an enabled source.
type enabledEngine struct {
	engine *cachedengine.Engine
	source adblock.Source

	// order is the index of the source among the enabled ones.
	order int
}

// enabledEngines returns the cached engines of the enabled sources.  The
// engines are acquired, so that replacing or evicting them waits for the
// query to finish.  The caller must release them, which [fanOut] does.
func (d *Default) enabledEngines(ctx context.Context) (engines []*enabledEngine) {
	srcs := d.enabledSources(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()

	for i, src := range srcs {
		e, ok := d.engines[src]
		if !ok {
			continue
		}

		e.Acquire()
		engines = append(engines, &enabledEngine{
			engine: e,
			source: src,
			order:  i,
		})
	}

	return engines
}

// fanOut calls f for every engine concurrently and returns the results in the
// order of engines.  A panic in f is logged, and the zero value is used as its
// result.  Every engine is released once f has returned for it.
func fanOut[T any](
	ctx context.Context,
	d *Default,
	engines []*enabledEngine,
	f func(e *enabledEngine) (res T),
) (results []T) {
	type indexed struct {
		res T
		idx int
	}

	resCh := make(chan indexed, len(engines))
	for i, e := range engines {
		go func() {
			r := indexed{
				idx: i,
			}
			defer func() { resCh <- r }()
			defer e.engine.Release()
			defer slogutil.RecoverAndLog(ctx, d.logger)

			r.res = f(e)
		}()
	}

	results = make([]T, len(engines))
	for range engines {
		r := <-resCh
		results[r.idx] = r.res
	}

	return results
}

// ShouldBlock returns true if any enabled engine blocks the request for
// requestURL made by the page at sourceURL.
func (d *Default) ShouldBlock(
	ctx context.Context,
	requestURL string,
	sourceURL string,
	rt adblock.ResourceType,
) (ok bool) {
	results := fanOut(ctx, d, d.enabledEngines(ctx), func(e *enabledEngine) (blocked bool) {
		return e.engine.ShouldBlock(ctx, requestURL, sourceURL, rt)
	})

	return slices.Contains(results, true)
}

// EngineScriptTypes returns the union of the user scripts of all enabled
// engines for the frame.  The errors of single engines are collected and
// ignored.
func (d *Default) EngineScriptTypes(
	ctx context.Context,
	frameURL string,
	isMainFrame bool,
) (sts *adblock.ScriptTypes) {
	results := fanOut(ctx, d, d.enabledEngines(ctx), func(e *enabledEngine) (res *adblock.ScriptTypes) {
		res, err := e.engine.EngineScriptTypes(ctx, frameURL, isMainFrame, e.order)
		if err != nil {
			errcoll.CollectDebug(ctx, d.errColl, d.logger, "getting engine scripts", err)

			return nil
		}

		return res
	})

	sts = adblock.NewScriptTypes()
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

// CosmeticSelectors returns the sorted selectors hiding the elements of the
// frame with the given ids and classes.  The selectors of the builtin and the
// component filter lists are aggressive, and those of the user-provided ones
// are standard.  The errors of single engines are collected and ignored.
func (d *Default) CosmeticSelectors(
	ctx context.Context,
	frameURL string,
	ids []string,
	classes []string,
) (aggressive, standard []string) {
	engines := d.enabledEngines(ctx)
	results := fanOut(ctx, d, engines, func(e *enabledEngine) (sels *container.MapSet[string]) {
		sels, err := e.engine.SelectorsForCosmeticRules(ctx, frameURL, ids, classes)
		if err != nil {
			errcoll.CollectDebug(ctx, d.errColl, d.logger, "getting cosmetic selectors", err)

			return nil
		}

		return sels
	})

	aggrSet, stdSet := container.NewMapSet[string](), container.NewMapSet[string]()
	for i, sels := range results {
		if sels == nil {
			continue
		}

		set := aggrSet
		if engines[i].source.Kind == adblock.SourceKindFilterListURL {
			set = stdSet
		}

		sels.Range(func(sel string) (cont bool) {
			set.Add(sel)

			return true
		})
	}

	aggressive, standard = aggrSet.Values(), stdSet.Values()
	slices.Sort(aggressive)
	slices.Sort(standard)

	return aggressive, standard
}
