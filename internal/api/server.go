package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/forgestack/devplane/internal/apierr"
	"github.com/forgestack/devplane/internal/requestid"
	"github.com/forgestack/devplane/internal/state"
)

// Server hosts the API on a Fiber app. All API routes flow through a
// single dispatch that owns base-path normalization, routing, auth, and
// snapshot persistence.
type Server struct {
	app    *fiber.App
	router *Router
	state  *state.State
	log    zerolog.Logger
}

// NewServer wires the Fiber app, middleware, and the route table.
func NewServer(st *state.State, log zerolog.Logger) *Server {
	s := &Server{
		router: NewRouter(),
		state:  st,
		log:    log.With().Str("component", "api").Logger(),
	}
	s.registerRoutes()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadBufferSize:        16 * 1024,
		BodyLimit:             256 * 1024 * 1024,
	})
	app.Use(fiberrecover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: st.Config().CORSOriginList(),
		AllowHeaders: "Authorization, Content-Type",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(st.Metrics().Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	app.All("/*", s.dispatch)
	s.app = app
	return s
}

// App exposes the Fiber app for listening and tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving on addr.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

func mutating(method string) bool {
	switch method {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		return true
	}
	return false
}

// subpath strips the configured base path from a request path. The
// bare base path maps to "/".
func (s *Server) subpath(requestPath string) (string, error) {
	base := s.state.Config().BasePath
	switch {
	case base == "":
		return requestPath, nil
	case requestPath == base:
		return "/", nil
	case strings.HasPrefix(requestPath, base+"/"):
		return requestPath[len(base):], nil
	default:
		return "", apierr.NotFound("not_found", "Unknown API path.").
			WithDetails(map[string]any{"path": requestPath})
	}
}

func (s *Server) dispatch(c *fiber.Ctx) error {
	started := time.Now()
	reqID := requestid.New()
	method := c.Method()
	routeLabel := c.Path()

	resp, err := s.handle(c, reqID, &routeLabel)
	status := 0
	if err != nil {
		apiErr := apierr.From(err)
		status = apiErr.Status
		if apiErr.Status >= 500 {
			s.log.Error().Str("request_id", reqID).Str("method", method).
				Str("path", c.Path()).Int("status", apiErr.Status).
				Str("code", apiErr.Code).Msg(apiErr.Message)
		}
		writeErr := c.Status(apiErr.Status).JSON(apierr.NewEnvelope(apiErr, reqID))
		s.state.Metrics().RecordRequest(method, routeLabel, strconv.Itoa(status), time.Since(started))
		return writeErr
	}

	status = resp.Status
	for k, v := range resp.Headers {
		c.Set(k, v)
	}
	if resp.ContentType != "" {
		c.Set(fiber.HeaderContentType, resp.ContentType)
		if b, ok := resp.Body.([]byte); ok {
			err = c.Status(resp.Status).Send(b)
		} else {
			err = c.Status(resp.Status).SendString(fmt.Sprint(resp.Body))
		}
	} else {
		err = c.Status(resp.Status).JSON(resp.Body)
	}
	s.state.Metrics().RecordRequest(method, routeLabel, strconv.Itoa(status), time.Since(started))
	return err
}

// handle routes a request and runs its handler, normally under the
// store lock. Routes registered Unlocked manage the lock themselves.
// The snapshot is persisted after every mutating request, error paths
// included, so crash recovery always sees the latest state.
func (s *Server) handle(c *fiber.Ctx, reqID string, routeLabel *string) (resp *Response, err error) {
	method := c.Method()
	sub, err := s.subpath(c.Path())
	if err != nil {
		return nil, err
	}

	route, params := s.router.Match(method, sub)
	if route == nil {
		if s.router.AllowsPath(sub) {
			return nil, apierr.New(405, "method_not_allowed", "Method is not allowed for this path.")
		}
		return nil, apierr.NotFound("not_found", "Endpoint not found.")
	}
	*routeLabel = route.Template

	query, parseErr := url.ParseQuery(string(c.Request().URI().QueryString()))
	if parseErr != nil {
		query = url.Values{}
	}
	headers := map[string]string{}
	c.Request().Header.VisitAll(func(k, v []byte) {
		headers[string(k)] = string(v)
	})

	st := s.state
	if route.Locked {
		st.Mu.Lock()
		defer st.Mu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				err = apierr.Internal("internal_error", fmt.Sprint(r))
			}
			if mutating(method) {
				st.PersistLocked()
			}
		}()
	} else {
		// Unlocked handlers lock around state access themselves, so
		// blocking external work never stalls the rest of the API.
		defer func() {
			if r := recover(); r != nil {
				err = apierr.Internal("internal_error", fmt.Sprint(r))
			}
			if mutating(method) {
				st.Persist()
			}
		}()
	}

	var user *state.PublicUser
	if route.AuthRequired {
		if route.Locked {
			user, err = st.Authorize(c.Get(fiber.HeaderAuthorization))
		} else {
			st.Mu.Lock()
			user, err = st.Authorize(c.Get(fiber.HeaderAuthorization))
			st.Mu.Unlock()
		}
		if err != nil {
			return nil, err
		}
	}

	ctx := &Context{
		State:     st,
		Method:    method,
		Path:      sub,
		Params:    params,
		Query:     query,
		Headers:   headers,
		Body:      append([]byte(nil), c.Body()...),
		RequestID: reqID,
		User:      user,
	}
	return route.Handler(ctx)
}
