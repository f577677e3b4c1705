// Package metrics defines and registers all custom Prometheus metrics for
// the trader portal API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry via promauto
// at package initialisation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "traderportal"

// ── License metrics ───────────────────────────────────────────────────────────

// LicenseValidationsTotal counts license validation checks.
// Label:
//   - result: "valid", "not_found", "inactive", "expired", "unauthorized_account"
var LicenseValidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "license_validations_total",
		Help:      "Total number of license validation checks, by result.",
	},
	[]string{"result"},
)

// ── Key validator metrics ─────────────────────────────────────────────────────

// KeyLookupsTotal counts staff-key and referral-code resolutions.
// Labels:
//   - format: "ceo", "admin", "enroller", "referral", "unrecognized"
//   - result: "valid", "invalid", "error"
var KeyLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "key_lookups_total",
		Help:      "Total number of key validations, by format and result.",
	},
	[]string{"format", "result"},
)

// ── Reconciliation metrics ────────────────────────────────────────────────────

// ReconcileRunsTotal counts reconciliation passes.
// Labels:
//   - trigger: "manual", "new_user", "queue", "migration"
//   - outcome: "ok" or "error"
var ReconcileRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_runs_total",
		Help:      "Total number of enrollment reconciliation passes, by trigger and outcome.",
	},
	[]string{"trigger", "outcome"},
)

// RepairQueueDepth tracks jobs waiting in each repair worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var RepairQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "repair_queue_depth",
		Help:      "Current number of repair jobs pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Provider metrics ──────────────────────────────────────────────────────────

// FxAPICallsTotal counts calls to the third-party trading-data API.
// Labels:
//   - endpoint: provider endpoint name (e.g. "get-my-accounts.json")
//   - result: "ok", "network_error", "bad_payload", or "http_<code>"
var FxAPICallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fx_api_calls_total",
		Help:      "Total number of third-party trading-data API calls, by endpoint and result.",
	},
	[]string{"endpoint", "result"},
)
