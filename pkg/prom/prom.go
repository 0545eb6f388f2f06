package prom

import (
	"sync"

	xhttp "github.com/nearwave/geocampaign/pkg/http"
	"github.com/nearwave/geocampaign/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	registerOnce sync.Once
	enabled      bool

	deliveriesTotal *prometheus.CounterVec
	dispatchRuns    *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
)

// Create registers the process metrics. Call once per binary before serving.
func Create(host string, env string, namespace string) error {
	var err error
	registerOnce.Do(func() {
		constLabels := prometheus.Labels{"env": env, "instance": host}

		deliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "campaign",
			Name:        "deliveries_total",
			Help:        "Delivery attempts by terminal status.",
			ConstLabels: constLabels,
		}, []string{"status"})

		dispatchRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "campaign",
			Name:        "dispatch_runs_total",
			Help:        "Campaign dispatch jobs by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"})

		deliveryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "campaign",
			Name:        "delivery_duration_seconds",
			Help:        "Time from delivery creation to provider acknowledgement.",
			ConstLabels: constLabels,
		}, []string{"status"})

		for _, c := range []prometheus.Collector{deliveriesTotal, dispatchRuns, deliveryLatency} {
			if e := prometheus.Register(c); e != nil && err == nil {
				err = e
			}
		}
		enabled = err == nil
	})
	return err
}

func AddDelivery(status string) {
	if !enabled {
		return
	}
	deliveriesTotal.WithLabelValues(status).Inc()
}

func AddDispatchRun(outcome string) {
	if !enabled {
		return
	}
	dispatchRuns.WithLabelValues(outcome).Inc()
}

func AddDeliveryDuration(seconds float64, status string) {
	if !enabled {
		return
	}
	deliveryLatency.WithLabelValues(status).Observe(seconds)
}

// ListenAndServer exposes the prometheus handler on its own listener.
func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}
