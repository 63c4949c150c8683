// Package server exposes the gallery over HTTP.
//
// This package enables fanfeed to:
// - Serve the YouTube and TikTok endpoints the gallery page calls
// - Proxy TikTok thumbnails same-origin from an allow-listed CDN
// - Serve the cached combined feed and the ad catalog
// - Report health and cache counters
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gauthierbraillon/fanfeed/internal/ads"
	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
	"github.com/gauthierbraillon/fanfeed/internal/tiktok"
	"github.com/gauthierbraillon/fanfeed/internal/youtube"
)

const shutdownTimeout = 10 * time.Second

// Options wires the server to its collaborators. Service is required; the
// source clients may be nil, in which case their routes report the missing
// configuration.
type Options struct {
	YouTube         *youtube.Client
	YouTubeDefaults youtube.Request
	TikTok          *tiktok.Client
	Service         *aggregator.Service
	Ads             []ads.AdItem
	BannerAdID      int
	PublicDir       string
	Now             func() time.Time
}

// Server is the HTTP front of fanfeed.
type Server struct {
	e        *echo.Echo
	opts     Options
	started  time.Time
	requests atomic.Int64
	failures atomic.Int64
	proxied  atomic.Int64
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Ads == nil {
		opts.Ads = ads.DefaultCatalog()
	}

	s := &Server{e: echo.New(), opts: opts, started: opts.Now()}
	s.e.HideBanner = true
	s.e.HidePort = true

	s.e.Use(middleware.Recover())
	s.e.Use(s.countRequests)
	s.e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
			}
			slog.Debug("http request", attrs...)
			return nil
		},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.GET("/api/youtube/videos", s.handleYouTube)
	s.e.GET("/api/tiktok", s.handleTikTok)
	s.e.GET(tiktok.ThumbnailProxyPath, s.handleThumbnail)
	s.e.GET("/api/videos", s.handleVideos)
	s.e.GET("/api/ads", s.handleAds)
	s.e.GET("/healthz", s.handleHealth)
	s.e.GET("/metrics", s.handleMetrics)
	if s.opts.PublicDir != "" {
		s.e.Static("/", s.opts.PublicDir)
	}
}

// Handler returns the router for use with httptest or a custom server.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.e.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.e.Start(ln.Addr().String())
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.e.Shutdown(shutdownCtx)
	}
}

func (s *Server) countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.requests.Add(1)
		err := next(c)
		status := c.Response().Status
		if err != nil {
			status = http.StatusInternalServerError
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
		}
		if status >= http.StatusInternalServerError {
			s.failures.Add(1)
		}
		return err
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type videosBody struct {
	Videos []aggregator.VideoItem `json:"videos"`
}
