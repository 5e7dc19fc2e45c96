// Package metrics defines the custom Prometheus metrics of the accounts
// service. It is the single source of truth for metric names, labels and
// help strings. Metrics register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accounts"

// ── Account metrics ───────────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "created", "exists", "invalid" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ── Recovery metrics ──────────────────────────────────────────────────────────

// RecoveryStepsTotal counts recovery wizard submissions.
// Labels:
//   - step: "email", "code", "resend", "answer" or "password"
//   - result: "ok" or the rejection reason (e.g. "wrong_answer", "expired")
var RecoveryStepsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recovery_steps_total",
		Help:      "Total number of recovery step submissions, by step and result.",
	},
	[]string{"step", "result"},
)

// RecoveryLockoutsTotal counts recoveries abandoned after too many wrong codes.
var RecoveryLockoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recovery_lockouts_total",
		Help:      "Total number of recovery lockouts after repeated wrong codes.",
	},
)

// ── Notice metrics ────────────────────────────────────────────────────────────

// NoticesTotal counts asynchronous account notices.
// Labels:
//   - kind: notice kind (e.g. "password_changed")
//   - result: "sent", "failed" or "dropped"
var NoticesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notices_total",
		Help:      "Total number of account notices, by kind and delivery result.",
	},
	[]string{"kind", "result"},
)

// NoticeQueueDepth tracks notices waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index
var NoticeQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notice_queue_depth",
		Help:      "Current number of notices pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
