package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_session_lookups_total",
			Help: "Address lookups fired by session pipelines by outcome",
		},
		[]string{"outcome"},
	)

	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_session_verifications_total",
			Help: "Address verifications by resulting status",
		},
		[]string{"status"},
	)

	contactValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_session_contact_validations_total",
			Help: "Email and phone validations by field and outcome",
		},
		[]string{"field", "outcome"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "validation_sessions_active",
			Help: "Number of validation sessions held in memory",
		},
	)
)

const (
	outcomeSuperseded = "superseded"
	outcomeError      = "error"
	outcomeCleared    = "cleared"
	outcomeApplied    = "applied"
	outcomeSkipped    = "skipped"
	outcomeValid      = "valid"
	outcomeInvalid    = "invalid"
	outcomeDisabled   = "disabled"
)
