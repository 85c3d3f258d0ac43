// Package container wires constructors together by reflecting over their
// parameter and return types. It exists so main can declare the dependency
// graph (config, logger, store, provider, engine) without ordering the
// construction by hand.
package container

import (
	"fmt"
	"reflect"
	"sync"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Container resolves types from registered constructors. Singleton bindings
// build once and reuse the value on every later resolve.
type Container struct {
	mu       sync.RWMutex
	bindings map[reflect.Type]binding
	built    map[reflect.Type]reflect.Value
}

// binding is a registered constructor for the type it returns.
type binding struct {
	ctor      reflect.Value
	singleton bool
}

func New() *Container {
	return &Container{
		bindings: make(map[reflect.Type]binding),
		built:    make(map[reflect.Type]reflect.Value),
	}
}

// Provide registers a constructor for the type named by its first return
// value. Constructor parameters are resolved from the container when the
// type is first needed. The shape must be func(deps...) T or
// func(deps...) (T, error).
func (c *Container) Provide(constructor interface{}, singleton bool) error {
	ctor := reflect.ValueOf(constructor)
	if ctor.Kind() != reflect.Func {
		return fmt.Errorf("container: constructor must be a function")
	}
	ft := ctor.Type()
	if ft.NumOut() == 0 || ft.NumOut() > 2 {
		return fmt.Errorf("container: constructor must return (T) or (T, error)")
	}
	if ft.NumOut() == 2 && ft.Out(1) != errType {
		return fmt.Errorf("container: second return value must be error")
	}
	provided := ft.Out(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.bindings[provided]; dup {
		return fmt.Errorf("container: provider already exists for %v", provided)
	}
	c.bindings[provided] = binding{ctor: ctor, singleton: singleton}
	return nil
}

// Resolve builds the requested type into the given pointer:
//
//	var eng *runner.AnalysisEngine
//	err := c.Resolve(&eng)
func (c *Container) Resolve(target interface{}) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return fmt.Errorf("container: target must be a non-nil pointer")
	}
	val, err := c.build(ptr.Elem().Type(), make(map[reflect.Type]bool))
	if err != nil {
		return err
	}
	ptr.Elem().Set(val)
	return nil
}

// Invoke calls fn with its parameters resolved from the container. When the
// function's last return value is an error it is passed through.
func (c *Container) Invoke(fn interface{}) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("container: Invoke requires a function")
	}
	ft := v.Type()
	args := make([]reflect.Value, ft.NumIn())
	building := make(map[reflect.Type]bool)
	for i := range args {
		val, err := c.build(ft.In(i), building)
		if err != nil {
			return err
		}
		args[i] = val
	}
	outs := v.Call(args)
	if n := len(outs); n > 0 && outs[n-1].Type() == errType && !outs[n-1].IsNil() {
		return outs[n-1].Interface().(error)
	}
	return nil
}

// lookup finds the binding for t, falling back to any binding whose concrete
// type satisfies t when t is an interface.
func (c *Container) lookup(t reflect.Type) (binding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if b, ok := c.bindings[t]; ok {
		return b, true
	}
	if t.Kind() == reflect.Interface {
		for bt, b := range c.bindings {
			if bt.Implements(t) {
				return b, true
			}
		}
	}
	return binding{}, false
}

// build constructs a value of type t, recursively building its constructor's
// dependencies. building tracks the types on the current path so a cycle
// fails instead of recursing forever.
func (c *Container) build(t reflect.Type, building map[reflect.Type]bool) (reflect.Value, error) {
	c.mu.RLock()
	cached, ok := c.built[t]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	b, ok := c.lookup(t)
	if !ok {
		return reflect.Value{}, fmt.Errorf("container: no provider for %v", t)
	}

	if building[t] {
		return reflect.Value{}, fmt.Errorf("container: cyclic dependency for %v", t)
	}
	building[t] = true

	ft := b.ctor.Type()
	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		dep, err := c.build(ft.In(i), building)
		if err != nil {
			return reflect.Value{}, err
		}
		args[i] = dep
	}

	outs := b.ctor.Call(args)
	if len(outs) == 2 {
		if err, _ := outs[1].Interface().(error); err != nil {
			return reflect.Value{}, err
		}
	}
	val := outs[0]

	if b.singleton {
		c.mu.Lock()
		c.built[t] = val
		c.mu.Unlock()
	}
	return val, nil
}
