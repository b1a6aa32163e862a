package tui

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-vision/internal/tui"

var logger = otelslog.NewLogger(scopeName)
