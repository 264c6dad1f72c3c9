package service

import (
	"github.com/trackfit/backend/internal/observability/metrics"
)

func observeRegistration(outcome string) {
	metrics.AuthRegistrationsTotal.WithLabelValues(outcome).Inc()
}

func observeLogin(outcome string) {
	metrics.AuthLoginsTotal.WithLabelValues(outcome).Inc()
}

func observeTokenIssued() {
	metrics.AccessTokensIssued.Inc()
}
