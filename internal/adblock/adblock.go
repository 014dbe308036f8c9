// Package adblock contains the common types and interfaces of the ad-blocking
// engines: filter-list sources, the native engine interface, and the models
// decoded from the engine output.
package adblock

import "github.com/AdguardTeam/golibs/errors"

// Engine compile errors.
const (
	// ErrFileNotFound is returned when a filter-list or resources file does
	// not exist.
	ErrFileNotFound errors.Error = "file not found"

	// ErrInvalidResourceJSON is returned when the resources file is valid JSON
	// but neither an array nor an object.
	ErrInvalidResourceJSON errors.Error = "invalid resource json"

	// ErrCouldNotDeserialize is returned when a serialized engine file cannot
	// be loaded.
	ErrCouldNotDeserialize errors.Error = "could not deserialize dat file"
)

// MatchRequest is a request to the native engine.
type MatchRequest struct {
	// URL is the full URL of the request.
	URL string

	// Host is the hostname of the request URL.
	Host string

	// SourceHost is the hostname of the page that made the request.
	SourceHost string

	// ResourceType is the type of the requested resource.
	ResourceType ResourceType

	// IsThirdParty is true if the request and the source have different
	// registrable domains.
	IsThirdParty bool
}

// MatchResult is the result of matching a request with the native engine.
type MatchResult struct {
	// Matched is true if a blocking rule matched and there were no exceptions
	// for it.
	Matched bool

	// Exception is true if an exception rule matched.
	Exception bool

	// Important is true if the matched rule has the $important modifier.
	Important bool
}

// Engine is the native pattern-matching engine.  Implementations are not
// required to be safe for concurrent use.
type Engine interface {
	// Match matches req against the network rules of the engine.  req must not
	// be nil.
	Match(req *MatchRequest) (res MatchResult)

	// UseResources sets the redirect and scriptlet resources of the engine.
	// resources is a JSON array or object.
	UseResources(resources []byte)

	// Deserialize replaces the rules of the engine with the ones from the
	// serialized data.  ok is false if data is malformed.
	Deserialize(data []byte) (ok bool)

	// CosmeticResources returns the JSON-encoded [CosmeticFilterModel] for the
	// URL, or nil if there is none.
	CosmeticResources(u string) (data []byte)

	// HiddenSelectors returns the JSON-encoded array of selectors that hide
	// elements with the given classes and ids, except those listed in
	// exceptions.  data may be nil if there are no selectors.
	HiddenSelectors(classes, ids, exceptions []string) (data []byte)
}

// EngineConstructor creates new empty engines and engines from filter-list
// rule text.
type EngineConstructor interface {
	// New returns a new engine with the given rules text.  text may be empty.
	New(text []byte) (e Engine, err error)
}
