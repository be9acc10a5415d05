package socsim

import (
	"context"
	"log/slog"
)

// LevelTrace is the level the simulated blocks log register and transfer
// events at. It sits below Debug so a default handler stays quiet; the
// CLI's verbose mode lowers its handler to this level.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Trace logs a simulation event through the default slog logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
