// Package inspect serves a read-only JSON view of the navigation services
// held by a Directory, plus their prometheus metrics.
//
//	GET /healthz
//	GET /services
//	GET /services/:id
//	GET /services/:id/history
//	GET /metrics
//
// Error messages honour the request's Accept-Language header.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/i18n"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/navigation"
)

// ServiceSummary is one row of GET /services.
type ServiceSummary struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Current    string `json:"current,omitempty"`
	Entries    int    `json:"entries"`
	ModalDepth int    `json:"modal_depth"`
}

// ServiceDetail is the body of GET /services/:id.
type ServiceDetail struct {
	ServiceSummary
	CanGoBack       bool     `json:"can_go_back"`
	CanGoForward    bool     `json:"can_go_forward"`
	DisposeOnRemove bool     `json:"dispose_on_remove"`
	Modules         []string `json:"modules"`
	Subscribers     int      `json:"subscribers"`
}

type options struct {
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	bundle   *goi18n.Bundle
}

// Option configures the inspector.
type Option func(*options)

// WithLogger sets the access and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGatherer exposes gatherer on /metrics. Without it the route is absent.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) { o.gatherer = g }
}

// WithBundle sets the message bundle used for error texts.
func WithBundle(b *goi18n.Bundle) Option {
	return func(o *options) { o.bundle = b }
}

// New builds the inspector engine over dir.
func New(dir *navigation.Directory, opts ...Option) (*gin.Engine, error) {
	o := options{logger: wayfinder.GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bundle == nil {
		bundle, err := i18n.NewBundle()
		if err != nil {
			return nil, err
		}
		o.bundle = bundle
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestID())
	r.Use(recovery(o.logger))
	r.Use(accessLog(o.logger))

	h := &handlers{dir: dir, bundle: o.bundle}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "services": len(dir.IDs())})
	})
	r.GET("/services", h.list)
	r.GET("/services/:id", h.detail)
	r.GET("/services/:id/history", h.history)
	if o.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})))
	}
	return r, nil
}

type handlers struct {
	dir    *navigation.Directory
	bundle *goi18n.Bundle
}

func summarize(svc *navigation.Service) ServiceSummary {
	return ServiceSummary{
		ID:         svc.ID(),
		State:      svc.State().String(),
		Current:    svc.CurrentID(),
		Entries:    len(svc.History()),
		ModalDepth: svc.ModalDepth(),
	}
}

func (h *handlers) list(c *gin.Context) {
	out := make([]ServiceSummary, 0)
	for _, id := range h.dir.IDs() {
		if svc, ok := h.dir.Lookup(id); ok {
			out = append(out, summarize(svc))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) detail(c *gin.Context) {
	svc, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ServiceDetail{
		ServiceSummary:  summarize(svc),
		CanGoBack:       svc.CanGoBack(),
		CanGoForward:    svc.CanGoForward(),
		DisposeOnRemove: svc.DisposeOnRemove(),
		Modules:         svc.Registry().IDs(),
		Subscribers:     svc.SubscriberCount(),
	})
}

func (h *handlers) history(c *gin.Context) {
	svc, ok := h.lookup(c)
	if !ok {
		return
	}
	items := svc.History()
	if items == nil {
		items = []navigation.HistoryItem{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *handlers) lookup(c *gin.Context) (*navigation.Service, bool) {
	svc, err := h.dir.Resolve(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":   h.localizer(c).Error(err),
			"details": err.Error(),
		})
		return nil, false
	}
	return svc, true
}

func (h *handlers) localizer(c *gin.Context) *i18n.Localizer {
	tag := language.English
	if tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language")); err == nil && len(tags) > 0 {
		supported := h.bundle.LanguageTags()
		if _, idx, conf := language.NewMatcher(supported).Match(tags...); conf != language.No {
			tag = supported[idx]
		}
	}
	return i18n.NewWithBundle(h.bundle, tag)
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("inspector listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("inspector: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("inspector shutdown: %w", err)
	}
	return nil
}
