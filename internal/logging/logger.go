package logging

import (
	"log/slog"
	"os"
	"runtime/debug"
)

// Setup initializes the global slog logger with JSON output to stdout.
// Additional handlers (Postgres, Slack) are attached later with Attach once
// their dependencies exist.
func Setup() {
	slog.SetDefault(slog.New(StdoutHandler()))
}

func StdoutHandler() slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
}

// Attach makes the default logger write to stdout plus every extra handler.
func Attach(extra ...slog.Handler) {
	handlers := append([]slog.Handler{StdoutHandler()}, extra...)
	slog.SetDefault(slog.New(NewMultiHandler(handlers...)))
}

// BuildInfo identifies the running binary in log context.
type BuildInfo struct {
	Version string
	GitSHA  string
}

// ReadBuildInfo reads the module version and VCS revision stamped by the Go
// toolchain. Missing values read as "unknown".
func ReadBuildInfo() BuildInfo {
	bi := BuildInfo{Version: "unknown", GitSHA: "unknown"}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		bi.Version = v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			bi.GitSHA = s.Value
			if len(bi.GitSHA) > 7 {
				bi.GitSHA = bi.GitSHA[:7]
			}
		}
	}
	return bi
}
