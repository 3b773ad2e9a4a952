package api

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/state"
)

// Response is what a handler returns on success.
type Response struct {
	Status      int
	Body        any
	ContentType string
	Headers     map[string]string
}

// JSON builds a JSON response.
func JSON(status int, body any) *Response {
	return &Response{Status: status, Body: body}
}

// OK builds a 200 JSON response.
func OK(body any) *Response { return JSON(200, body) }

// Context carries normalized request data into handlers. The JSON body
// is parsed lazily on first access.
type Context struct {
	State     *state.State
	Method    string
	Path      string
	Params    map[string]string
	Query     url.Values
	Headers   map[string]string
	Body      []byte
	RequestID string
	User      *state.PublicUser

	jsonCache  map[string]any
	jsonParsed bool
}

// Param returns a path parameter.
func (c *Context) Param(name string) string { return c.Params[name] }

// JSON parses the request body as an object. With required set, an
// empty body is rejected.
func (c *Context) JSON(required bool) (map[string]any, error) {
	if !c.jsonParsed {
		c.jsonParsed = true
		if len(c.Body) > 0 {
			var parsed any
			if err := json.Unmarshal(c.Body, &parsed); err != nil {
				return nil, apierr.BadRequest("invalid_json", "Request body is not valid JSON: "+err.Error())
			}
			obj, ok := parsed.(map[string]any)
			if !ok {
				return nil, apierr.BadRequest("invalid_json", "Request body must be a JSON object.")
			}
			c.jsonCache = obj
		}
	}
	if required && len(c.jsonCache) == 0 {
		return nil, apierr.BadRequest("missing_body", "Request body is required.")
	}
	if c.jsonCache == nil {
		return map[string]any{}, nil
	}
	return c.jsonCache, nil
}

// QueryFirst returns the first value for a query key, or def.
func (c *Context) QueryFirst(key, def string) string {
	if vs, ok := c.Query[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return def
}

// QueryInt parses a query parameter as int, falling back to def.
func (c *Context) QueryInt(key string, def int) int {
	raw := c.QueryFirst(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}

// QueryBool parses a query parameter as a boolean flag.
func (c *Context) QueryBool(key string, def bool) bool {
	raw := c.QueryFirst(key, "")
	if raw == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// ActorID returns the authenticated user's id, or "unknown".
func (c *Context) ActorID() string {
	if c.User != nil {
		return c.User.ID
	}
	return "unknown"
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Paginate slices items by the limit and cursor query parameters. The
// next cursor is cursor+limit, or empty when the walk is done.
func Paginate[T any](c *Context, items []T) (page []T, nextCursor *string) {
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	cursor := c.QueryInt("cursor", 0)
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(items) {
		return []T{}, nil
	}
	end := cursor + limit
	if end > len(items) {
		end = len(items)
	}
	page = items[cursor:end]
	if cursor+limit >= len(items) {
		return page, nil
	}
	next := strconv.Itoa(cursor + limit)
	return page, &next
}

// ParseISO parses an ISO-8601 timestamp, accepting both Z and numeric
// offsets. The zero time and false mean the value did not parse.
func ParseISO(value string) (time.Time, bool) {
	text := strings.TrimSpace(value)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
