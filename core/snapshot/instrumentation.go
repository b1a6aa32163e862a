package snapshot

import "go.opentelemetry.io/otel"

const scopeName = "github.com/koscakluka/ema-vision/core/snapshot"

var tracer = otel.Tracer(scopeName)
