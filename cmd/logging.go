package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// setupLogging installs a tint handler writing to w as the default logger.
// Colors are only used when w is a terminal.
func setupLogging(w io.Writer, level string) *slog.Logger {
	ll := &slog.LevelVar{}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err == nil {
		ll.Set(l)
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
	slog.SetDefault(logger)
	return logger
}
