// Package api exposes the HTTP surface: route matching, request
// context, handlers, and the Fiber server that hosts them.
package api

import (
	"fmt"
	"regexp"
	"strings"
)

// Handler is an API route handler.
type Handler func(c *Context) (*Response, error)

// Route is a compiled method+path template.
type Route struct {
	Method       string
	Template     string
	regex        *regexp.Regexp
	Handler      Handler
	AuthRequired bool
	Locked       bool
}

// Endpoint is the method/path pair reported by the root endpoint.
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Router matches requests against registered templates in registration
// order. Templates use {name} segments that match one path segment.
type Router struct {
	routes []*Route
}

func NewRouter() *Router { return &Router{} }

func compileTemplate(template string) (*regexp.Regexp, error) {
	parts := []string{}
	for _, part := range strings.Split(strings.Trim(template, "/"), "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return regexp.Compile(`^/$`)
	}
	regexParts := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := strings.TrimSpace(part[1 : len(part)-1])
			if name == "" {
				return nil, fmt.Errorf("invalid path parameter in route: %s", template)
			}
			regexParts = append(regexParts, fmt.Sprintf(`(?P<%s>[^/]+)`, name))
		} else {
			regexParts = append(regexParts, regexp.QuoteMeta(part))
		}
	}
	return regexp.Compile("^/" + strings.Join(regexParts, "/") + "$")
}

// RouteOption adjusts route registration.
type RouteOption func(*Route)

// NoAuth marks a route as publicly reachable.
func NoAuth() RouteOption {
	return func(r *Route) { r.AuthRequired = false }
}

// Unlocked opts a route out of the dispatcher-held store lock. Its
// handler does blocking external work (git, subprocesses, outbound
// HTTP) and takes the lock itself only around state access.
func Unlocked() RouteOption {
	return func(r *Route) { r.Locked = false }
}

// Add registers a handler for an HTTP method and path template. Routes
// require auth unless NoAuth is given.
func (r *Router) Add(method, template string, handler Handler, opts ...RouteOption) {
	re, err := compileTemplate(template)
	if err != nil {
		panic(err)
	}
	route := &Route{
		Method:       strings.ToUpper(method),
		Template:     template,
		regex:        re,
		Handler:      handler,
		AuthRequired: true,
		Locked:       true,
	}
	for _, opt := range opts {
		opt(route)
	}
	r.routes = append(r.routes, route)
}

// Match resolves a method/path pair to the first matching route and its
// path parameters.
func (r *Router) Match(method, path string) (*Route, map[string]string) {
	method = strings.ToUpper(method)
	for _, route := range r.routes {
		if route.Method != method {
			continue
		}
		m := route.regex.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		params := map[string]string{}
		for i, name := range route.regex.SubexpNames() {
			if i > 0 && name != "" {
				params[name] = m[i]
			}
		}
		return route, params
	}
	return nil, nil
}

// AllowsPath reports whether any route template matches the path under
// some method. It distinguishes 405 from 404.
func (r *Router) AllowsPath(path string) bool {
	for _, route := range r.routes {
		if route.regex.MatchString(path) {
			return true
		}
	}
	return false
}

// Endpoints lists every registered method/path pair in registration
// order.
func (r *Router) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, Endpoint{Method: route.Method, Path: route.Template})
	}
	return out
}
