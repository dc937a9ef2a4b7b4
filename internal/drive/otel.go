package drive

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/teledrive/bridge/internal/drive"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
