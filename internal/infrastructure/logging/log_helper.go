package logging

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

func logParamsToZapParams(keys map[ExtraKey]any) []any {
	params := make([]any, 0, len(keys)*2)

	for k, v := range keys {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		params = append(params, string(k))
		params = append(params, v)
	}

	return params
}

func logParamsToZeroParams(keys map[ExtraKey]any) map[string]any {
	params := map[string]any{}

	for k, v := range keys {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		params[string(k)] = v
	}

	return params
}

// output writes to stdout, and also to a rotated file when a path is configured.
func output(cfg *LoggerConfig, fileName string) io.Writer {
	if cfg.FilePath == "" {
		return os.Stdout
	}

	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.FilePath, fileName),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}

	return io.MultiWriter(os.Stdout, rotated)
}
