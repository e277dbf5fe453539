//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/scenegraph/internal/core/engine"
	"github.com/zeusync/scenegraph/internal/core/observability/log"
)

func ProvideLogger() *log.Logger {
	wire.Build(log.Provide)
	return log.New(log.LevelDebug)
}

func ProvideContext(cfg engine.Config) (*engine.Context, error) {
	wire.Build(engine.NewContext)
	return nil, nil
}
