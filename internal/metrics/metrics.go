package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Lookup results, used as the result label.
const (
	ResultPriced   = "priced"
	ResultUnpriced = "unpriced"
	ResultNotFound = "not_found"
	ResultFailed   = "failed"
)

// Metrics holds the collectors for pricing runs on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	lookups     *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	runDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pkmprice_lookups_total",
			Help: "Card lookups by result.",
		}, []string{"result"}),
		lastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pkmprice_last_price",
			Help: "Most recent price recorded per card.",
		}, []string{"card_id"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pkmprice_run_duration_seconds",
			Help:    "Wall time of a pricing run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	m.registry.MustRegister(
		m.lookups,
		m.lastPrice,
		m.runDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveLookup counts one finished lookup.
func (m *Metrics) ObserveLookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) SetPrice(cardID string, price float64) {
	if m == nil {
		return
	}
	m.lastPrice.WithLabelValues(cardID).Set(price)
}

func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}

// Registry returns the private registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Router returns a gin engine with /metrics and /healthz.
func (m *Metrics) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// Serve exposes the router on addr until ctx is done.
func Serve(ctx context.Context, addr string, m *Metrics, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("metrics server stopped")
	return nil
}
