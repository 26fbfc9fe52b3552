package service

import (
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opRegister       = "register"
	opLogin          = "login"
	opRefresh        = "refresh"
	opPasswordReset  = "password_reset"
	outcomeSuccess   = "success"
	outcomeInvalid   = "invalid"
	outcomeDuplicate = "duplicate"
	outcomeThrottled = "throttled"
	outcomeReuse     = "reuse"
)

var authOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "portal_auth_operations_total",
	Help: "Auth operations by operation and outcome.",
}, []string{"operation", "outcome"})

func (s *SessionService) observe(operation, outcome string) {
	authOutcomes.WithLabelValues(operation, outcome).Inc()
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
