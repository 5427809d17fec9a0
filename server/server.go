package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/civicline/civicline-relay/model"
	"github.com/civicline/civicline-relay/relay"
	"github.com/civicline/civicline-relay/verification"
)

// Announcer fans a broadcast SMS out to a recipient list.
type Announcer interface {
	SendAnnouncement(ctx context.Context, ann model.Announcement, recipients []string) error
}

// Deps bundles the components the server routes to.
type Deps struct {
	Registry    *relay.Registry
	Hub         *relay.Hub
	Broadcaster *relay.Broadcaster
	Signaler    *relay.Signaler
	Verifier    *verification.Store
	Announcer   Announcer
	Recorder    relay.Recorder // may be nil
}

type Server struct {
	port int64
	e    *echo.Echo
	deps Deps

	routesOnce sync.Once
}

// NewServer returns a new server.
func NewServer(port int64, deps Deps) *Server {
	return &Server{
		port: port,
		e:    echo.New(),
		deps: deps,
	}
}

func (s *Server) StartServer() error {
	e := s.e
	e.Logger.SetLevel(log.DEBUG)
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	//enable cors
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("2M"))
	s.registerRoutes()
	return e.Start(fmt.Sprintf(":%d", s.port))
}

func (s *Server) StopServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return s.e.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.routesOnce.Do(func() {
		e := s.e
		e.GET("/ping", s.Ping)
		e.POST("/verify", s.IssueVerification)
		e.POST("/verify/check", s.CheckVerification)
		e.POST("/announce", s.Announce)
		e.GET("/connect", s.Connect)
	})
}

// Handler returns the route-registered echo instance, for tests and
// embedding.
func (s *Server) Handler() http.Handler {
	s.registerRoutes()
	return s.e
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Civicline Relay is running")
}

type verifyRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type checkRequest struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

type checkResponse struct {
	Approved bool `json:"approved"`
}

// IssueVerification sends a one-time code to the given phone number.
func (s *Server) IssueVerification(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	err := s.deps.Verifier.Issue(c.Request().Context(), req.PhoneNumber)
	switch {
	case err == nil:
		return c.NoContent(http.StatusAccepted)
	case errors.Is(err, verification.ErrInvalidPhoneNumber):
		return c.NoContent(http.StatusBadRequest)
	case errors.Is(err, verification.ErrDispatchFailed):
		// The code is stored despite the failed dispatch; a retry of the
		// check against an out-of-band delivered code still works.
		c.Logger().Errorf("fail to dispatch verification code to %s, err: %s", req.PhoneNumber, err)
		return c.NoContent(http.StatusBadGateway)
	default:
		c.Logger().Error(err)
		return c.NoContent(http.StatusInternalServerError)
	}
}

// CheckVerification consumes the code on the first exact match. A denied
// check leaves the code in place so the caller may retry.
func (s *Server) CheckVerification(c echo.Context) error {
	var req checkRequest
	if err := c.Bind(&req); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if req.PhoneNumber == "" || req.Code == "" {
		return c.NoContent(http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, checkResponse{
		Approved: s.deps.Verifier.Validate(req.PhoneNumber, req.Code),
	})
}

type announceRequest struct {
	model.Announcement
	Recipients []string `json:"recipients"`
}

// Announce sends a broadcast SMS to every recipient, tolerating individual
// failures.
func (s *Server) Announce(c echo.Context) error {
	var req announceRequest
	if err := c.Bind(&req); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if req.Title == "" || len(req.Recipients) == 0 {
		return c.NoContent(http.StatusBadRequest)
	}
	if err := s.deps.Announcer.SendAnnouncement(c.Request().Context(), req.Announcement, req.Recipients); err != nil {
		c.Logger().Errorf("fail to send announcement, err: %s", err)
	}
	return c.NoContent(http.StatusAccepted)
}
