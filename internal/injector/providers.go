// Package injector assembles an engine and its diagnostics server from a
// configuration.
package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/zengine/internal/config"
	"github.com/zeusync/zengine/internal/core/concurrency"
	"github.com/zeusync/zengine/internal/core/content"
	"github.com/zeusync/zengine/internal/core/events/bus"
	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/internal/core/profiler"
	"github.com/zeusync/zengine/internal/engine"
	"github.com/zeusync/zengine/internal/server"
)

// App is everything a process needs to run the engine. Inspector is nil
// when disabled in the configuration.
type App struct {
	Config    *config.Config
	Logger    log.Log
	Engine    *engine.Engine
	Inspector *server.Inspector
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideWorkers,
	ProvideEvents,
	ProvideProfiler,
	ProvideLoader,
	ProvideEngine,
	ProvideInspector,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg *config.Config) log.Log {
	return log.NewFromConfig(cfg.Logging)
}

func ProvideWorkers(cfg *config.Config, logger log.Log) *concurrency.Scheduler {
	return concurrency.New(
		concurrency.WithWorkers(cfg.Engine.Workers),
		concurrency.WithLogger(logger.Named("workers")),
	)
}

func ProvideEvents(logger log.Log) *bus.Bus {
	return bus.New(bus.WithLogger(logger.Named("events")))
}

func ProvideProfiler(logger log.Log) *profiler.Profiler {
	return profiler.New(profiler.WithLogger(logger.Named("profiler")))
}

func ProvideLoader(cfg *config.Config, logger log.Log) content.Loader {
	return content.NewDirLoader(cfg.Content.Root, content.WithLogger(logger.Named("content")))
}

func ProvideEngine(
	cfg *config.Config,
	logger log.Log,
	workers *concurrency.Scheduler,
	events *bus.Bus,
	prof *profiler.Profiler,
	loader content.Loader,
) *engine.Engine {
	return engine.New(
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithWorkers(workers),
		engine.WithEvents(events),
		engine.WithProfiler(prof),
		engine.WithLoader(loader),
	)
}

// ProvideInspector builds the inspector and subscribes it to profiler
// reports and to every engine event.
func ProvideInspector(cfg *config.Config, logger log.Log, prof *profiler.Profiler, events *bus.Bus) (*server.Inspector, error) {
	if !cfg.Inspector.Enabled {
		return nil, nil
	}
	insp := server.New(cfg.Inspector, server.WithLogger(logger))
	prof.OnReport(insp.PublishStats)
	if _, err := events.Subscribe(bus.Wildcard, insp.PublishEvent); err != nil {
		return nil, err
	}
	return insp, nil
}
