/*
 * Project: rpc-lite
 * ---------------------
 * Authors:
 *   Minjian Chen 813534
 *   Shijie Liu   813277
 *   Weizhi Xu    752454
 *   Wenqing Xue  813044
 *   Zijun Chen   813190
 */

package rpc

import (
	"fmt"
	"reflect"

	"github.com/sasha-s/go-deadlock"
)

// CallKind tags the five invocation shapes a CallRef can describe.
type CallKind int

const (
	KindFunction CallKind = iota
	KindMethod
	KindClassMethod
	KindStaticMethod
	KindConstructor
)

// CallRef is the serializable descriptor of what to invoke remotely. It
// names a symbol in the registry instead of carrying code, so both ends
// must import the package that registers the symbol.
type CallRef struct {
	Kind   CallKind
	Name   string // registered function or class name
	Method string // method name, for the three method kinds

	// CtorArgs rebuild the instance for bound-method calls. The remote
	// side re-runs the constructor; the instance is reconstructed, never
	// shared across ranks.
	CtorArgs []interface{}
}

func Function(name string) CallRef {
	return CallRef{Kind: KindFunction, Name: name}
}

func BoundMethod(class, method string, ctorArgs ...interface{}) CallRef {
	return CallRef{Kind: KindMethod, Name: class, Method: method, CtorArgs: ctorArgs}
}

func ClassMethod(class, method string) CallRef {
	return CallRef{Kind: KindClassMethod, Name: class, Method: method}
}

func StaticMethod(class, method string) CallRef {
	return CallRef{Kind: KindStaticMethod, Name: class, Method: method}
}

func Constructor(class string) CallRef {
	return CallRef{Kind: KindConstructor, Name: class}
}

func (r CallRef) String() string {
	switch r.Kind {
	case KindFunction:
		return r.Name
	case KindConstructor:
		return r.Name + "()"
	default:
		return r.Name + "." + r.Method
	}
}

type callable struct {
	fn         reflect.Value
	paramNames []string
	wantsAgent bool
}

type classEntry struct {
	ctor          callable
	classMethods  map[string]callable
	staticMethods map[string]callable
	methodParams  map[string][]string
}

// Class attaches class-level callables to a registered constructor.
type Class struct {
	name  string
	entry *classEntry
}

var registry = struct {
	lock    deadlock.RWMutex
	funcs   map[string]callable
	classes map[string]*classEntry
}{
	funcs:   make(map[string]callable),
	classes: make(map[string]*classEntry),
}

var agentType = reflect.TypeOf((*Agent)(nil))
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// RegisterFunc registers a plain function under name. paramNames enable
// keyword-argument binding and must cover the function's own parameters in
// order. A leading *Agent parameter is not named; the serving agent is
// injected there, which is how a callable issues nested RPCs.
func RegisterFunc(name string, fn interface{}, paramNames ...string) {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	if _, ok := registry.funcs[name]; ok {
		panic(fmt.Sprintf("Function already registered: %v.", name))
	}
	registry.funcs[name] = newCallable(fn, paramNames)
}

// RegisterClass registers a constructor under name and returns a handle for
// attaching class methods, static methods and instance-method parameter
// names.
func RegisterClass(name string, ctor interface{}, paramNames ...string) *Class {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	if _, ok := registry.classes[name]; ok {
		panic(fmt.Sprintf("Class already registered: %v.", name))
	}
	entry := &classEntry{
		ctor:          newCallable(ctor, paramNames),
		classMethods:  make(map[string]callable),
		staticMethods: make(map[string]callable),
		methodParams:  make(map[string][]string),
	}
	registry.classes[name] = entry
	return &Class{name: name, entry: entry}
}

func (c *Class) ClassMethod(name string, fn interface{}, paramNames ...string) *Class {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	c.entry.classMethods[name] = newCallable(fn, paramNames)
	return c
}

func (c *Class) StaticMethod(name string, fn interface{}, paramNames ...string) *Class {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	c.entry.staticMethods[name] = newCallable(fn, paramNames)
	return c
}

// Method declares the parameter names of an instance method (the Go method
// name on the constructor's result type), enabling keyword binding for
// bound-method calls.
func (c *Class) Method(name string, paramNames ...string) *Class {
	registry.lock.Lock()
	defer registry.lock.Unlock()
	c.entry.methodParams[name] = paramNames
	return c
}

func newCallable(fn interface{}, paramNames []string) callable {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("Not a function: %T.", fn))
	}
	wantsAgent := v.Type().NumIn() > 0 && v.Type().In(0) == agentType
	return callable{fn: v, paramNames: paramNames, wantsAgent: wantsAgent}
}

func lookupFunc(name string) (callable, bool) {
	registry.lock.RLock()
	defer registry.lock.RUnlock()
	c, ok := registry.funcs[name]
	return c, ok
}

func lookupClass(name string) (*classEntry, bool) {
	registry.lock.RLock()
	defer registry.lock.RUnlock()
	entry, ok := registry.classes[name]
	return entry, ok
}
