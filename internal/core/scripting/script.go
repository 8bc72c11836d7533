// Package scripting provides a component whose behavior is a Lua script
// loaded through the content loader.
//
// Scripts see these globals:
//
//	get(name)          committed value of a declared property
//	set(name, value)   stage a value, applied at the next commit
//	set_now(name, v)   write a value immediately
//	log(msg)           write through the host logger
//
// and may define init() and update(dt) with dt in seconds.
package scripting

import (
	"context"
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/zeusync/zengine/internal/core/component"
	"github.com/zeusync/zengine/internal/core/content"
	"github.com/zeusync/zengine/internal/core/observability/log"
	"github.com/zeusync/zengine/internal/core/state"
)

var (
	_ component.Component      = (*Script)(nil)
	_ component.Updatable      = (*Script)(nil)
	_ component.StateCommitter = (*Script)(nil)
)

// Script owns one Lua VM. The VM is created when content loads and closed
// when it unloads; it must only be driven from one goroutine at a time.
type Script struct {
	*component.Base

	asset string
	props map[string]*state.Property[float64]
	vm    *lua.LState
}

// New declares one float property per entry in props. The script itself is
// read from asset during LoadContent.
func New(name, asset string, props map[string]float64) *Script {
	s := &Script{
		Base:  component.NewBase(name),
		asset: asset,
		props: make(map[string]*state.Property[float64], len(props)),
	}

	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		s.props[k] = state.Declare(s.State(), k, props[k])
	}
	return s
}

func (s *Script) logger() log.Log {
	if h := s.Host(); h != nil {
		return h.Logger().With(log.String("script", s.Name()))
	}
	return log.Provide().With(log.String("script", s.Name()))
}

// Value returns the committed value of a declared property.
func (s *Script) Value(name string) (float64, bool) {
	p, ok := s.props[name]
	if !ok {
		return 0, false
	}
	return p.Get(), true
}

// LoadContent loads the script source, runs it and then calls init() if the
// script defines it.
func (s *Script) LoadContent(ctx context.Context, loader content.Loader) error {
	if !s.IsInitialized() {
		return fmt.Errorf("%w: %s", component.ErrNotInitialized, s.Name())
	}
	if loader == nil {
		return fmt.Errorf("script %s: no content loader", s.Name())
	}
	h, err := loader.Load(ctx, s.asset)
	if err != nil {
		return fmt.Errorf("script %s: %w", s.Name(), err)
	}
	src, ok := h.Text()
	if !ok || h.Kind != content.KindScript {
		return fmt.Errorf("%w: %s is %s", ErrNotScript, s.asset, h.Kind)
	}

	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	s.bind(vm)
	if err = vm.DoString(src); err != nil {
		vm.Close()
		return fmt.Errorf("script %s: run %s: %w", s.Name(), s.asset, err)
	}
	s.vm = vm

	if err = s.call("init"); err != nil {
		s.closeVM()
		return err
	}
	s.logger().Debug("script loaded", log.String("asset", s.asset))
	return s.Base.LoadContent(ctx, loader)
}

func (s *Script) bind(vm *lua.LState) {
	vm.SetGlobal("get", vm.NewFunction(func(L *lua.LState) int {
		p, ok := s.props[L.CheckString(1)]
		if !ok {
			L.ArgError(1, ErrUnknownProperty.Error())
			return 0
		}
		L.Push(lua.LNumber(p.Get()))
		return 1
	}))
	vm.SetGlobal("set", vm.NewFunction(func(L *lua.LState) int {
		name, v := L.CheckString(1), L.CheckNumber(2)
		if err := s.State().SetDirty(name, float64(v)); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}))
	vm.SetGlobal("set_now", vm.NewFunction(func(L *lua.LState) int {
		name, v := L.CheckString(1), L.CheckNumber(2)
		if err := s.State().SetImmediate(name, float64(v)); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}))
	vm.SetGlobal("log", vm.NewFunction(func(L *lua.LState) int {
		s.logger().Info(L.CheckString(1))
		return 0
	}))
}

// call invokes a global function if the script defines one.
func (s *Script) call(fn string, args ...lua.LValue) error {
	f := s.vm.GetGlobal(fn)
	if f == lua.LNil {
		return nil
	}
	if err := s.vm.CallByParam(lua.P{Fn: f, NRet: 0, Protect: true}, args...); err != nil {
		return fmt.Errorf("script %s: %s: %w", s.Name(), fn, err)
	}
	return nil
}

// Update calls update(dt).
func (s *Script) Update(frame component.Frame) error {
	if s.vm == nil {
		return fmt.Errorf("%w: %s", ErrNotLoaded, s.Name())
	}
	return s.call("update", lua.LNumber(frame.Delta.Seconds()))
}

func (s *Script) closeVM() {
	if s.vm != nil {
		s.vm.Close()
		s.vm = nil
	}
}

func (s *Script) UnloadContent() error {
	s.closeVM()
	return s.Base.UnloadContent()
}

func (s *Script) Dispose() error {
	s.closeVM()
	return s.Base.Dispose()
}
