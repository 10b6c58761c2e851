package links

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imageshare_links_created_total",
		Help: "Share links created.",
	})

	uploadsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imageshare_uploads_rejected_total",
		Help: "Uploads rejected by validation.",
	})

	// outcome: served, expired, not_found, error
	linkViewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imageshare_link_views_total",
		Help: "View requests by outcome.",
	}, []string{"outcome"})

	// reason: view, status, sweep
	linksPurgedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imageshare_links_purged_total",
		Help: "Expired links removed together with their payload.",
	}, []string{"reason"})
)
