package ledger

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	transitions metric.Int64Counter
	rejections  metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) *metrics {
	meter := mp.Meter(instrumentationName)

	transitions, err := meter.Int64Counter("ledger.transitions",
		metric.WithDescription("Committed auction state transitions."),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		otel.Handle(err)
	}
	rejections, err := meter.Int64Counter("ledger.rejections",
		metric.WithDescription("Ledger operations refused by a budget, roster or authorization check."),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return &metrics{transitions: transitions, rejections: rejections}
}

func (m *metrics) committed(ctx context.Context, op string) {
	if m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *metrics) rejected(ctx context.Context, op string, err error) {
	if m.rejections == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("reason", Reason(err)),
	))
}

// Reason returns a short, stable label for a ledger error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrTeamNotFound):
		return "team_not_found"
	case errors.Is(err, ErrPlayerNotFound):
		return "player_not_found"
	case errors.Is(err, ErrTeamFull):
		return "team_full"
	case errors.Is(err, ErrDestinationFull):
		return "destination_full"
	case errors.Is(err, ErrInsufficientBudget):
		return "insufficient_budget"
	case errors.Is(err, ErrInvalidCoins):
		return "invalid_coins"
	case errors.Is(err, ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, ErrNoAvailablePlayers):
		return "no_available_players"
	case errors.Is(err, ErrAmbiguous):
		return "ambiguous"
	case errors.Is(err, ErrStateChanged):
		return "state_changed"
	default:
		return "internal"
	}
}
