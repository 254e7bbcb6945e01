// Package notiontest provides an in-memory Notion API for tests.
package notiontest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"feedsync/internal/store/notion"
)

type errorBody struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pageRequest struct {
	Parent struct {
		DatabaseID string `json:"database_id"`
	} `json:"parent"`
	Properties map[string]notion.PropertyValue `json:"properties"`
}

type queryRequest struct {
	Filter struct {
		Property string `json:"property"`
		RichText struct {
			Equals string `json:"equals"`
		} `json:"rich_text"`
	} `json:"filter"`
	PageSize int `json:"page_size"`
}

// Server emulates the database query, page create, page update and database
// retrieve endpoints for a single database.
type Server struct {
	Token      string
	DatabaseID string

	srv *httptest.Server

	mu          sync.Mutex
	pages       map[string]*notion.Page
	order       []string
	limited     int
	retryAfter  string
	calls       map[string]int
	lastPayload map[string]notion.PropertyValue
}

// NewServer starts a fake. Close it with Close.
func NewServer(token, databaseID string) *Server {
	s := &Server{
		Token:      token,
		DatabaseID: databaseID,
		pages:      make(map[string]*notion.Page),
		calls:      make(map[string]int),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	v1 := e.Group("/v1", s.authenticate, s.rateLimit)
	v1.GET("/databases/:id", s.retrieveDatabase)
	v1.POST("/databases/:id/query", s.queryDatabase)
	v1.POST("/pages", s.createPage)
	v1.PATCH("/pages/:id", s.updatePage)

	s.srv = httptest.NewServer(e)
	return s
}

// BaseURL is the value to pass as the client's base URL.
func (s *Server) BaseURL() string {
	return s.srv.URL + "/v1"
}

func (s *Server) Close() {
	s.srv.Close()
}

// RateLimitNext makes the next n requests answer 429 with the given
// Retry-After header value (omitted when empty).
func (s *Server) RateLimitNext(n int, retryAfter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limited = n
	s.retryAfter = retryAfter
}

// Calls returns how many requests reached the named route, for example
// "POST /v1/pages". Rate limited requests are counted too.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Pages returns the stored pages in creation order.
func (s *Server) Pages() []notion.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notion.Page, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.pages[id])
	}
	return out
}

// LastProperties returns the properties of the latest create or update.
func (s *Server) LastProperties() map[string]notion.PropertyValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPayload
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.Header.Get("Authorization") != "Bearer "+s.Token {
			return writeError(c, http.StatusUnauthorized, "unauthorized", "API token is invalid.")
		}
		if req.Header.Get("Notion-Version") == "" {
			return writeError(c, http.StatusBadRequest, "missing_version", "Notion-Version header failed validation.")
		}
		return next(c)
	}
}

func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		s.calls[c.Request().Method+" "+c.Path()]++
		limited := s.limited > 0
		if limited {
			s.limited--
		}
		retryAfter := s.retryAfter
		s.mu.Unlock()

		if limited {
			if retryAfter != "" {
				c.Response().Header().Set("Retry-After", retryAfter)
			}
			return writeError(c, http.StatusTooManyRequests, "rate_limited", "You have been rate limited.")
		}
		return next(c)
	}
}

func (s *Server) retrieveDatabase(c echo.Context) error {
	if !sameID(c.Param("id"), s.DatabaseID) {
		return writeError(c, http.StatusNotFound, "object_not_found", "Could not find database with ID: "+c.Param("id")+".")
	}
	return c.JSON(http.StatusOK, map[string]string{"object": "database", "id": s.DatabaseID})
}

func (s *Server) queryDatabase(c echo.Context) error {
	if !sameID(c.Param("id"), s.DatabaseID) {
		return writeError(c, http.StatusNotFound, "object_not_found", "Could not find database with ID: "+c.Param("id")+".")
	}
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_json", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	results := []notion.Page{}
	for _, id := range s.order {
		page := s.pages[id]
		if page.Properties[req.Filter.Property].PlainText() == req.Filter.RichText.Equals {
			results = append(results, *page)
		}
		if req.PageSize > 0 && len(results) >= req.PageSize {
			break
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"object": "list", "results": results, "has_more": false})
}

func (s *Server) createPage(c echo.Context) error {
	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_json", err.Error())
	}
	if !sameID(req.Parent.DatabaseID, s.DatabaseID) {
		return writeError(c, http.StatusNotFound, "object_not_found", "Could not find database with ID: "+req.Parent.DatabaseID+".")
	}
	if len(req.Properties["Title"].Title) == 0 {
		return writeError(c, http.StatusBadRequest, "validation_error", "Title is expected to be title.")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	id := uuid.NewString()
	page := &notion.Page{
		Object:         "page",
		ID:             id,
		URL:            "https://www.notion.so/" + id,
		CreatedTime:    now,
		LastEditedTime: now,
		Properties:     req.Properties,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[id] = page
	s.order = append(s.order, id)
	s.lastPayload = req.Properties
	return c.JSON(http.StatusOK, page)
}

func (s *Server) updatePage(c echo.Context) error {
	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_json", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[c.Param("id")]
	if !ok {
		return writeError(c, http.StatusNotFound, "object_not_found", "Could not find page with ID: "+c.Param("id")+".")
	}
	for name, value := range req.Properties {
		page.Properties[name] = value
	}
	page.LastEditedTime = time.Now().UTC().Truncate(time.Millisecond)
	s.lastPayload = req.Properties
	return c.JSON(http.StatusOK, page)
}

// PropertyNames lists the property names of a payload, sorted.
func PropertyNames(props map[string]notion.PropertyValue) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sameID(a, b string) bool {
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ua == ub
}

func writeError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, errorBody{Object: "error", Status: status, Code: code, Message: message})
}

// RetryAfterSeconds formats d as a Retry-After header value.
func RetryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int(d / time.Second))
}
