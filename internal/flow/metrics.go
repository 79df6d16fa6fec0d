package flow

import (
	"context"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "openkcm/auth-gate/flow"

type meters struct {
	signIns     metric.Int64Counter
	initResults metric.Int64Counter
}

func newMeters(ctx context.Context) (meters, error) {
	meter := otel.Meter(
		instrumentationName,
		metric.WithInstrumentationVersion(otel.Version()),
	)

	signIns, err := meter.Int64Counter(
		"auth.sign_in_count",
		metric.WithDescription("Sign-in redirects requested"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return meters{}, oops.In("Auth Flow").
			WithContext(ctx).
			Wrapf(err, "creating sign_in_count meter")
	}

	initResults, err := meter.Int64Counter(
		"auth.initialize_count",
		metric.WithDescription("Initialization outcomes by terminal state"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return meters{}, oops.In("Auth Flow").
			WithContext(ctx).
			Wrapf(err, "creating initialize_count meter")
	}

	return meters{signIns: signIns, initResults: initResults}, nil
}

func (m meters) recordInit(ctx context.Context, state State) {
	m.initResults.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
}

func newTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
