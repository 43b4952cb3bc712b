package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"movieetl/internal/config"
	"movieetl/internal/metrics"
	"movieetl/internal/metrics/datadog"
	"movieetl/internal/metrics/prompush"
)

const (
	defaultPushgateway = "http://localhost:9091"
	defaultDogStatsD   = "127.0.0.1:8125"
)

// setupMetrics installs the configured backend and returns the function that
// flushes it at shutdown. A backend that fails to initialize is logged and
// replaced by the no-op backend; metrics never fail a run.
func setupMetrics(p config.Metrics, job string) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch p.Backend {
	case "", "none", "nop":
		log.Debugf("metrics: disabled (backend=%q)", p.Backend)
		return func() {}

	case "prometheus", "prom", "pushgateway":
		url := firstNonEmpty(p.Target, os.Getenv("PUSHGATEWAY_URL"), defaultPushgateway)
		b, err = prompush.NewBackend(job, url)
		log.Printf("metrics: backend=pushgateway url=%s job=%s", url, job)

	case "datadog", "dogstatsd":
		addr := firstNonEmpty(p.Target, os.Getenv("DD_DOGSTATSD_URL"), defaultDogStatsD)
		b, err = datadog.NewBackend(datadog.Config{
			Addr:      addr,
			Namespace: "movieetl.",
			Tags:      []string{"job:" + job},
		})
		log.Printf("metrics: backend=datadog addr=%s job=%s", addr, job)

	default:
		log.Warnf("metrics: unknown backend %q; metrics disabled", p.Backend)
		return func() {}
	}
	if err != nil {
		log.Warnf("metrics: init %s backend: %v; using nop", p.Backend, err)
		return func() {}
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warnf("metrics: flush: %v", err)
		}
		metrics.SetBackend(nil)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
