package persistence

import (
	"fmt"

	"colabai/sources/tracing"
)

type gormtracer struct {
	logger *tracing.Logger
}

func (w *gormtracer) Printf(format string, args ...interface{}) {
	w.logger.W(fmt.Sprintf(format, args...), "source", "gorm")
}
