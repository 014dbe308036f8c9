// Package agdservice contains helpers for long-running services, most notably
// the worker that periodically refreshes filter lists and content-blocker rule
// lists.
package agdservice

// unit is a convenient alias for struct{}.
type unit = struct{}
