package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/touristalert/backend/pkg/clock"
	"github.com/touristalert/backend/pkg/events"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/pkg/mailer"
	"github.com/touristalert/backend/services/auth/internal/credentials"
	"github.com/touristalert/backend/services/auth/internal/repository"
)

const (
	DefaultOTPTTL        = 10 * time.Minute
	DefaultResetTokenTTL = 15 * time.Minute
)

// Deps are the collaborators shared by the account workflows.
type Deps struct {
	Store         repository.Store
	Credentials   credentials.Service
	Sink          mailer.Sink
	Events        events.Publisher
	Clock         clock.Clock
	OTPTTL        time.Duration
	ResetTokenTTL time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Events == nil {
		d.Events = events.NopBus{}
	}
	if d.OTPTTL <= 0 {
		d.OTPTTL = DefaultOTPTTL
	}
	if d.ResetTokenTTL <= 0 {
		d.ResetTokenTTL = DefaultResetTokenTTL
	}
	return d
}

var (
	otpChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_otp_checks_total",
		Help: "One-time code checks by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	guideDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_guide_decisions_total",
		Help: "Admin decisions on guide applications.",
	}, []string{"action"})
)

// publish emits a lifecycle event after commit. Failures are logged only.
func publish(ctx context.Context, bus events.Publisher, subject string, payload interface{}) {
	if err := bus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
