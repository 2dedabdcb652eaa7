// Package metrics registers the controller's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versioninghandler_reconciles_total",
		Help: "Total number of reconcile ticks by outcome.",
	}, []string{"outcome"})

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "versioninghandler_reconcile_duration_seconds",
		Help:    "Duration of a single VersioningHandler reconcile tick.",
		Buckets: prometheus.DefBuckets,
	})

	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versioninghandler_decisions_total",
		Help: "Total number of update decisions made, by decision kind.",
	}, []string{"kind"})

	RegistryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versioninghandler_registry_errors_total",
		Help: "Total number of registry adapter errors by registry and error kind.",
	}, []string{"registry", "kind"})

	ClusterActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versioninghandler_cluster_actions_total",
		Help: "Total number of cluster mutations applied, by action.",
	}, []string{"action"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versioninghandler_notifications_total",
		Help: "Total number of notifications sent (or suppressed), by sink and outcome.",
	}, []string{"sink", "outcome"})

	ReachabilityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versioninghandler_reachability_checks_total",
		Help: "Total number of reachability probes, by result.",
	}, []string{"result"})
)
