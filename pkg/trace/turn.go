package trace

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// InstrumentTurnStart creates a span for one detected user turn
func InstrumentTurnStart(ctx context.Context, sessionID, language string, durationSeconds float64) (context.Context, trace.Span) {
	return StartSpan(ctx, "turn.start",
		trace.WithAttributes(
			TurnAttrs(sessionID, language, durationSeconds)...,
		),
	)
}

// InstrumentBargeIn creates a span for a confirmed interruption
func InstrumentBargeIn(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "turn.barge_in",
		trace.WithAttributes(
			SessionAttrs(sessionID)...,
		),
	)
}
