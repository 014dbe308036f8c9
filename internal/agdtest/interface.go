package agdtest

import (
	"context"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdservice"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/debugsvc"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/domainparser"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/errcoll"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/filterindex"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/pagedata"
)

// Interface Mocks
//
// Keep entities within a module/package in alphabetic order.

// Package adblock

// type check
var _ adblock.Engine = (*Engine)(nil)

// Engine is an [adblock.Engine] for tests.
type Engine struct {
	OnMatch             func(req *adblock.MatchRequest) (res adblock.MatchResult)
	OnUseResources      func(resources []byte)
	OnDeserialize       func(data []byte) (ok bool)
	OnCosmeticResources func(u string) (data []byte)
	OnHiddenSelectors   func(classes, ids, exceptions []string) (data []byte)
}

// Match implements the [adblock.Engine] interface for *Engine.
func (e *Engine) Match(req *adblock.MatchRequest) (res adblock.MatchResult) {
	return e.OnMatch(req)
}

// UseResources implements the [adblock.Engine] interface for *Engine.
func (e *Engine) UseResources(resources []byte) {
	e.OnUseResources(resources)
}

// Deserialize implements the [adblock.Engine] interface for *Engine.
func (e *Engine) Deserialize(data []byte) (ok bool) {
	return e.OnDeserialize(data)
}

// CosmeticResources implements the [adblock.Engine] interface for *Engine.
func (e *Engine) CosmeticResources(u string) (data []byte) {
	return e.OnCosmeticResources(u)
}

// HiddenSelectors implements the [adblock.Engine] interface for *Engine.
func (e *Engine) HiddenSelectors(classes, ids, exceptions []string) (data []byte) {
	return e.OnHiddenSelectors(classes, ids, exceptions)
}

// type check
var _ adblock.EngineConstructor = (*EngineConstructor)(nil)

// EngineConstructor is an [adblock.EngineConstructor] for tests.
type EngineConstructor struct {
	OnNew func(text []byte) (e adblock.Engine, err error)
}

// New implements the [adblock.EngineConstructor] interface for
// *EngineConstructor.
func (c *EngineConstructor) New(text []byte) (e adblock.Engine, err error) {
	return c.OnNew(text)
}

// Package agdservice

// type check
var _ agdservice.Refresher = (*Refresher)(nil)

// Refresher is an [agdservice.Refresher] for tests.
type Refresher struct {
	OnRefresh func(ctx context.Context) (err error)
}

// Refresh implements the [agdservice.Refresher] interface for *Refresher.
func (r *Refresher) Refresh(ctx context.Context) (err error) {
	return r.OnRefresh(ctx)
}

// Package contentblocker

// type check
var _ contentblocker.Store = (*RuleStore)(nil)

// RuleStore is a [contentblocker.Store] for tests.
type RuleStore struct {
	OnCompile func(
		ctx context.Context,
		id string,
		encoded []byte,
	) (rl *contentblocker.RuleList, err error)
	OnLookup func(ctx context.Context, id string) (rl *contentblocker.RuleList, err error)
	OnRemove func(ctx context.Context, id string) (err error)
}

// Compile implements the [contentblocker.Store] interface for *RuleStore.
func (s *RuleStore) Compile(
	ctx context.Context,
	id string,
	encoded []byte,
) (rl *contentblocker.RuleList, err error) {
	return s.OnCompile(ctx, id, encoded)
}

// Lookup implements the [contentblocker.Store] interface for *RuleStore.
func (s *RuleStore) Lookup(ctx context.Context, id string) (rl *contentblocker.RuleList, err error) {
	return s.OnLookup(ctx, id)
}

// Remove implements the [contentblocker.Store] interface for *RuleStore.
func (s *RuleStore) Remove(ctx context.Context, id string) (err error) {
	return s.OnRemove(ctx, id)
}

// Package debugsvc

// type check
var _ debugsvc.Blocker = (*Blocker)(nil)

// Blocker is a [debugsvc.Blocker] for tests.
type Blocker struct {
	OnEngineScriptTypes func(
		ctx context.Context,
		frameURL string,
		isMainFrame bool,
	) (sts *adblock.ScriptTypes)
	OnShouldBlock func(
		ctx context.Context,
		requestURL string,
		sourceURL string,
		rt adblock.ResourceType,
	) (ok bool)
	OnCosmeticSelectors func(
		ctx context.Context,
		frameURL string,
		ids []string,
		classes []string,
	) (aggressive, standard []string)
	OnAvailableFilterLists func() (infos []*adblock.FilterListInfo)
}

// EngineScriptTypes implements the [debugsvc.Blocker] interface for *Blocker.
func (b *Blocker) EngineScriptTypes(
	ctx context.Context,
	frameURL string,
	isMainFrame bool,
) (sts *adblock.ScriptTypes) {
	return b.OnEngineScriptTypes(ctx, frameURL, isMainFrame)
}

// ShouldBlock implements the [debugsvc.Blocker] interface for *Blocker.
func (b *Blocker) ShouldBlock(
	ctx context.Context,
	requestURL string,
	sourceURL string,
	rt adblock.ResourceType,
) (ok bool) {
	return b.OnShouldBlock(ctx, requestURL, sourceURL, rt)
}

// CosmeticSelectors implements the [debugsvc.Blocker] interface for *Blocker.
func (b *Blocker) CosmeticSelectors(
	ctx context.Context,
	frameURL string,
	ids []string,
	classes []string,
) (aggressive, standard []string) {
	return b.OnCosmeticSelectors(ctx, frameURL, ids, classes)
}

// AvailableFilterLists implements the [debugsvc.Blocker] interface for
// *Blocker.
func (b *Blocker) AvailableFilterLists() (infos []*adblock.FilterListInfo) {
	return b.OnAvailableFilterLists()
}

// type check
var _ debugsvc.RuleListSource = (*RuleListSource)(nil)

// RuleListSource is a [debugsvc.RuleListSource] for tests.
type RuleListSource struct {
	OnRuleLists func(ctx context.Context) (rls []*contentblocker.RuleList)
}

// RuleLists implements the [debugsvc.RuleListSource] interface for
// *RuleListSource.
func (s *RuleListSource) RuleLists(ctx context.Context) (rls []*contentblocker.RuleList) {
	return s.OnRuleLists(ctx)
}

// Package domainparser

// type check
var _ domainparser.Interface = (*DomainParser)(nil)

// DomainParser is a [domainparser.Interface] for tests.
type DomainParser struct {
	OnParse func(host string) (ph *domainparser.ParsedHost)
}

// Parse implements the [domainparser.Interface] interface for *DomainParser.
func (p *DomainParser) Parse(host string) (ph *domainparser.ParsedHost) {
	return p.OnParse(host)
}

// Package errcoll

// type check
var _ errcoll.Interface = (*ErrorCollector)(nil)

// ErrorCollector is an [errcoll.Interface] for tests.
type ErrorCollector struct {
	OnCollect func(ctx context.Context, err error)
}

// Collect implements the [errcoll.Interface] interface for *ErrorCollector.
func (c *ErrorCollector) Collect(ctx context.Context, err error) {
	c.OnCollect(ctx, err)
}

// Package filterindex

// type check
var _ filterindex.Updater = (*EngineUpdater)(nil)

// EngineUpdater is a [filterindex.Updater] for tests.
type EngineUpdater struct {
	OnUpdate func(
		ctx context.Context,
		info *adblock.FilterListInfo,
		resInfo *adblock.ResourcesInfo,
	) (err error)
	OnEvict func(ctx context.Context, src adblock.Source)
}

// Update implements the [filterindex.Updater] interface for *EngineUpdater.
func (u *EngineUpdater) Update(
	ctx context.Context,
	info *adblock.FilterListInfo,
	resInfo *adblock.ResourcesInfo,
) (err error) {
	return u.OnUpdate(ctx, info, resInfo)
}

// Evict implements the [filterindex.Updater] interface for *EngineUpdater.
func (u *EngineUpdater) Evict(ctx context.Context, src adblock.Source) {
	u.OnEvict(ctx, src)
}

// Package pagedata

// type check
var _ pagedata.ScriptTypesSource = (*ScriptTypesSource)(nil)

// ScriptTypesSource is a [pagedata.ScriptTypesSource] for tests.
type ScriptTypesSource struct {
	OnEngineScriptTypes func(
		ctx context.Context,
		frameURL string,
		isMainFrame bool,
	) (sts *adblock.ScriptTypes)
}

// EngineScriptTypes implements the [pagedata.ScriptTypesSource] interface for
// *ScriptTypesSource.
func (s *ScriptTypesSource) EngineScriptTypes(
	ctx context.Context,
	frameURL string,
	isMainFrame bool,
) (sts *adblock.ScriptTypes) {
	return s.OnEngineScriptTypes(ctx, frameURL, isMainFrame)
}
