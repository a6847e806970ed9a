// Package metrics defines and registers all custom Prometheus metrics for the
// HealthTracker portal and identity service. It is the single source of truth
// for metric names, labels, and help strings.
//
// Metrics are registered with the default registry on package init through
// promauto; import the package from anything that records them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "healthtracker"

// ── Session gate ──────────────────────────────────────────────────────────────

// AuthCommandsTotal counts session commands issued by visitor gates.
// Labels:
//   - command: "probe", "login", "register" or "logout"
//   - outcome: "ok" or an AuthError kind (e.g. "invalid_credentials", "busy")
var AuthCommandsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_commands_total",
		Help:      "Total number of session commands, by command and outcome.",
	},
	[]string{"command", "outcome"},
)

// AuthCommandDuration measures the round trip of a session command to the identity service.
var AuthCommandDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "auth_command_duration_seconds",
		Help:      "Duration of session commands including the identity service call.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"command"},
)

// ActiveGates tracks the number of visitor gates held in memory.
var ActiveGates = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_gates",
		Help:      "Number of visitor session gates currently held by the portal.",
	},
)

// ── Routing ───────────────────────────────────────────────────────────────────

// GuardDecisionsTotal counts route guard outcomes.
// Labels:
//   - visibility: "public", "protected", "token_scoped" or "fallback"
//   - decision: "render", "loading" or "redirect_to_auth"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions, by visibility and decision.",
	},
	[]string{"visibility", "decision"},
)

// ── Forms ─────────────────────────────────────────────────────────────────────

// FormSubmissionsTotal counts submit attempts on the auth forms.
// Labels:
//   - form: "login" or "register"
//   - result: "valid" or "invalid"
var FormSubmissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "form_submissions_total",
		Help:      "Total number of auth form submissions, by form and validation result.",
	},
	[]string{"form", "result"},
)

// ── Identity service ──────────────────────────────────────────────────────────

// IdentityLoginsTotal counts login and registration outcomes on the identity service.
// Labels:
//   - action: "login" or "register"
//   - result: "success" or a short failure reason
var IdentityLoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identity_logins_total",
		Help:      "Total number of login/registration attempts handled by the identity service.",
	},
	[]string{"action", "result"},
)

// LoginAttemptsQueueDepth tracks pending audit records in each recorder worker channel.
// Label:
//   - worker_id: numeric worker index
var LoginAttemptsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "login_attempts_queue_depth",
		Help:      "Current number of login attempts pending in each audit worker channel.",
	},
	[]string{"worker_id"},
)
