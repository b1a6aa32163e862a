package elevenlabs

import "go.opentelemetry.io/otel"

const scopeName = "github.com/koscakluka/ema-vision/core/texttospeech/elevenlabs"

var tracer = otel.Tracer(scopeName)
