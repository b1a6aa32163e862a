package gemini

import "go.opentelemetry.io/otel"

const scopeName = "github.com/koscakluka/ema-vision/core/llms/gemini"

var tracer = otel.Tracer(scopeName)
