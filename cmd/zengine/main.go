package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeusync/zengine/internal/config"
	"github.com/zeusync/zengine/internal/core/camera"
	"github.com/zeusync/zengine/internal/core/component"
	"github.com/zeusync/zengine/internal/core/graphics"
	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/internal/core/screen"
	"github.com/zeusync/zengine/internal/core/scripting"
	"github.com/zeusync/zengine/internal/core/transition"
	"github.com/zeusync/zengine/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or TOML config file")
	script := flag.String("script", "", "optional Lua script asset driving the demo")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := run(cfg, *script); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, script string) error {
	app, err := injector.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("assemble engine: %w", err)
	}
	logger := app.Logger
	eng := app.Engine

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Initialize(ctx); err != nil {
		return err
	}
	if app.Inspector != nil {
		if err := app.Inspector.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := app.Inspector.Stop(stopCtx); err != nil {
				logger.Warn("inspector stop", log.Error(err))
			}
		}()
	}

	demo, err := demoScreen(ctx, script)
	if err != nil {
		return err
	}
	if err := eng.AddScreen(ctx, demo); err != nil {
		return err
	}
	if err := eng.LoadContent(ctx); err != nil {
		return err
	}

	logger.Info("running", log.String("screen", demo.Name()), log.Duration("tick_rate", eng.TickRate()))
	runErr := eng.Run(ctx)
	if err := eng.Shutdown(); err != nil {
		logger.Error("shutdown", log.Error(err))
	}
	_ = logger.Sync()
	return runErr
}

// triangle draws a single flat-shaded triangle.
type triangle struct {
	*component.Renderable
}

func (t *triangle) Render(gfx graphics.Context) error {
	p, ok := t.Pipeline(0)
	if !ok {
		return nil
	}
	return gfx.Submit(graphics.DrawCall{Pipeline: p, Vertices: 3, Source: t.Name()})
}

func demoScreen(ctx context.Context, script string) (*screen.Screen, error) {
	s := screen.New("demo", screen.WithUpdateMode(screen.Always), screen.WithRenderMode(screen.OnlyWhenActive))

	cam := camera.New("main", camera.WithPosition(camera.Vec3{0, 0, 3}))
	tri := &triangle{Renderable: component.NewRenderable("triangle", graphics.PipelineDesc{
		Name:     "flat",
		Vertex:   "flat.vert",
		Fragment: "flat.frag",
	})}
	fade := transition.New("fade", s)

	comps := []component.Component{cam, tri, fade}
	if script != "" {
		comps = append(comps, scripting.New("script", script, map[string]float64{"angle": 0}))
	}
	for _, c := range comps {
		if err := s.Add(ctx, c); err != nil {
			return nil, err
		}
	}
	fade.In()
	return s, nil
}
