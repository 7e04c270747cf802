package demoshop

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"
)

// Route paths.
const (
	RouteLogin   = "/api/login"
	RouteCart    = "/api/cart"
	RouteOrders  = "/api/orders"
	RouteOpenAPI = "/api/openapi.json"
	RouteSwagger = "/swagger/"
	RouteAppData = "/app-data.js"
)

//go:embed static/*
var staticFiles embed.FS

func staticFS() (fs.FS, error) {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded site: %w", err)
	}
	return sub, nil
}

func (s *Server) initRoutes() error {
	site, err := staticFS()
	if err != nil {
		return err
	}
	swagger, err := s.swaggerHandler()
	if err != nil {
		return err
	}
	appData, err := s.appDataHandler()
	if err != nil {
		return err
	}

	api := []func(http.HandlerFunc) http.HandlerFunc{s.recoverMiddleware, s.loggingMiddleware, jsonMiddleware}
	pages := []func(http.HandlerFunc) http.HandlerFunc{s.recoverMiddleware, s.loggingMiddleware}

	s.registerRouteFunc("POST "+RouteLogin, chainMiddleware(s.loginHandler(), api...))
	s.registerRouteFunc("GET "+RouteCart, chainMiddleware(s.requireSession(s.getCartHandler()), api...))
	s.registerRouteFunc("POST "+RouteCart, chainMiddleware(s.requireSession(s.addToCartHandler()), api...))
	s.registerRouteFunc("DELETE "+RouteCart, chainMiddleware(s.requireSession(s.clearCartHandler()), api...))
	s.registerRouteFunc("GET "+RouteOrders, chainMiddleware(s.requireSession(s.ordersHandler()), api...))
	s.registerRouteFunc("GET "+RouteOpenAPI, chainMiddleware(openAPIHandler(), api...))

	s.registerRouteFunc("GET "+RouteSwagger, chainMiddleware(swagger, pages...))
	s.registerRouteFunc("GET "+RouteAppData, chainMiddleware(appData, pages...))
	s.registerRouteFunc("GET /", chainMiddleware(http.FileServer(http.FS(site)).ServeHTTP, pages...))
	return nil
}

func chainMiddleware(route http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chained := route
	// Apply in reverse so the first middleware runs first
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.logger.Debugf("%-6s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	}
}

func (s *Server) recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, v)
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next(w, r)
	}
}

func jsonMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		next(w, r)
	}
}
