package ufengine

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// resource is a single redirect or scriptlet resource as stored in the
// resources JSON array.
type resource struct {
	// Kind is the MIME type of the resource.
	Kind resourceKind `json:"kind"`

	// Name is the main name of the resource, for example "set-constant.js".
	Name string `json:"name"`

	// Content is the base64-encoded content of the resource.
	Content string `json:"content"`

	// Aliases are the additional names of the resource.
	Aliases []string `json:"aliases"`
}

// resourceKind is the kind of a resource.
type resourceKind struct {
	Mime string `json:"mime"`
}

// resources are the scriptlet and redirect resources of an engine, keyed by
// every name and alias.
type resources struct {
	byName map[string]string
}

// newResources returns a new empty *resources.
func newResources() (res *resources) {
	return &resources{
		byName: map[string]string{},
	}
}

// parseResources parses data, which must be either a JSON array of resource
// objects or a JSON object mapping resource names to their plain contents.
func parseResources(data []byte) (res *resources, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("resources: empty data")
	}

	res = newResources()
	switch data[0] {
	case '[':
		var list []*resource
		err = json.Unmarshal(data, &list)
		if err != nil {
			return nil, fmt.Errorf("decoding resources array: %w", err)
		}

		for i, r := range list {
			err = res.add(r)
			if err != nil {
				return nil, fmt.Errorf("resource at index %d: %w", i, err)
			}
		}
	case '{':
		err = json.Unmarshal(data, &res.byName)
		if err != nil {
			return nil, fmt.Errorf("decoding resources object: %w", err)
		}
	default:
		return nil, fmt.Errorf("resources: not an array or object")
	}

	return res, nil
}

// add decodes r and adds it to res under all its names.
func (res *resources) add(r *resource) (err error) {
	content, err := base64.StdEncoding.DecodeString(r.Content)
	if err != nil {
		return fmt.Errorf("resource %q: decoding content: %w", r.Name, err)
	}

	res.byName[r.Name] = string(content)
	for _, a := range r.Aliases {
		res.byName[a] = string(content)
	}

	return nil
}

// lookup returns the content of the resource with the given name.  The ".js"
// extension is optional.
func (res *resources) lookup(name string) (content string, ok bool) {
	content, ok = res.byName[name]
	if ok {
		return content, true
	}

	content, ok = res.byName[name+".js"]

	return content, ok
}

// injectedScript returns the script combining the scriptlet calls.  Calls of
// unknown scriptlets are skipped.
func (res *resources) injectedScript(calls []string) (script string) {
	b := &strings.Builder{}
	for _, call := range calls {
		name, args := parseScriptletCall(call)

		tmpl, ok := res.lookup(name)
		if !ok {
			continue
		}

		for i, arg := range args {
			tmpl = strings.ReplaceAll(tmpl, "{{"+strconv.Itoa(i+1)+"}}", arg)
		}

		_, _ = fmt.Fprintf(b, "try {\n%s\n} catch ( e ) { }\n", tmpl)
	}

	return b.String()
}

// parseScriptletCall parses the body of a scriptlet rule, for example
// "+js(set-constant, foo, 1)".
func parseScriptletCall(call string) (name string, args []string) {
	inner := strings.TrimSuffix(strings.TrimPrefix(call, scriptletPrefix), ")")
	parts := strings.Split(inner, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	return parts[0], parts[1:]
}
