package rpc

import (
	"fmt"
	"reflect"
)

// invoke resolves and executes a CallRef against the registry. Every
// failure mode, including panics inside the callable, is converted to a
// RemoteError so the serving process never dies from a request.
func invoke(agent *Agent, ref CallRef, args []interface{}, kwargs map[string]interface{}) (result interface{}, rerr *RemoteError) {
	defer func() {
		if r := recover(); r != nil {
			rerr = &RemoteError{Kind: "RuntimeError", Message: fmt.Sprintf("%v", r)}
			result = nil
		}
	}()

	switch ref.Kind {
	case KindFunction:
		c, ok := lookupFunc(ref.Name)
		if !ok {
			return nil, &RemoteError{Kind: "LookupError",
				Message: fmt.Sprintf("unknown function %q", ref.Name)}
		}
		return call(agent, c, args, kwargs)
	case KindConstructor:
		entry, ok := lookupClass(ref.Name)
		if !ok {
			return nil, &RemoteError{Kind: "LookupError",
				Message: fmt.Sprintf("unknown class %q", ref.Name)}
		}
		return call(agent, entry.ctor, args, kwargs)
	case KindClassMethod, KindStaticMethod:
		entry, ok := lookupClass(ref.Name)
		if !ok {
			return nil, &RemoteError{Kind: "LookupError",
				Message: fmt.Sprintf("unknown class %q", ref.Name)}
		}
		table := entry.classMethods
		if ref.Kind == KindStaticMethod {
			table = entry.staticMethods
		}
		c, ok := table[ref.Method]
		if !ok {
			return nil, &RemoteError{Kind: "AttributeError",
				Message: fmt.Sprintf("class %q has no method %q", ref.Name, ref.Method)}
		}
		return call(agent, c, args, kwargs)
	case KindMethod:
		entry, ok := lookupClass(ref.Name)
		if !ok {
			return nil, &RemoteError{Kind: "LookupError",
				Message: fmt.Sprintf("unknown class %q", ref.Name)}
		}
		// Re-run the constructor, then invoke the method on the fresh
		// instance.
		instance, rerr := call(agent, entry.ctor, ref.CtorArgs, nil)
		if rerr != nil {
			return nil, rerr
		}
		m := reflect.ValueOf(instance).MethodByName(ref.Method)
		if !m.IsValid() {
			return nil, &RemoteError{Kind: "AttributeError",
				Message: fmt.Sprintf("class %q has no method %q", ref.Name, ref.Method)}
		}
		c := callable{fn: m, paramNames: entry.methodParams[ref.Method]}
		return call(agent, c, args, kwargs)
	default:
		return nil, &RemoteError{Kind: "TypeError",
			Message: fmt.Sprintf("unknown call kind %v", ref.Kind)}
	}
}

// call binds positional and keyword arguments to the callable's parameters
// and runs it. Binding failures propagate as "TypeError", matching what a
// wrong call shape raises on the serving side.
func call(agent *Agent, c callable, args []interface{}, kwargs map[string]interface{}) (interface{}, *RemoteError) {
	fnType := c.fn.Type()
	offset := 0
	if c.wantsAgent {
		offset = 1
	}
	numParams := fnType.NumIn() - offset

	var slots []interface{}
	var filled []bool
	if fnType.IsVariadic() {
		fixed := numParams - 1
		if len(args) >= fixed {
			// variadic tail filled positionally; kwargs can't land here
			slots = args
		} else {
			slots = make([]interface{}, fixed)
			copy(slots, args)
			filled = make([]bool, fixed)
			for i := range args {
				filled[i] = true
			}
		}
	} else {
		if len(args) > numParams {
			return nil, &RemoteError{Kind: "TypeError", Message: fmt.Sprintf(
				"takes %d arguments but %d were given", numParams, len(args)+len(kwargs))}
		}
		slots = make([]interface{}, numParams)
		filled = make([]bool, numParams)
		for i, a := range args {
			slots[i] = a
			filled[i] = true
		}
	}

	for name, value := range kwargs {
		pos := -1
		for i, p := range c.paramNames {
			if p == name {
				pos = i
				break
			}
		}
		if pos < 0 || pos >= len(filled) {
			return nil, &RemoteError{Kind: "TypeError", Message: fmt.Sprintf(
				"got an unexpected keyword argument %q", name)}
		}
		if filled[pos] {
			return nil, &RemoteError{Kind: "TypeError", Message: fmt.Sprintf(
				"got multiple values for argument %q", name)}
		}
		slots[pos] = value
		filled[pos] = true
	}
	for i, ok := range filled {
		if !ok {
			name := fmt.Sprintf("#%d", i)
			if i < len(c.paramNames) {
				name = c.paramNames[i]
			}
			return nil, &RemoteError{Kind: "TypeError", Message: fmt.Sprintf(
				"missing required argument %q", name)}
		}
	}

	in := make([]reflect.Value, 0, len(slots)+offset)
	if c.wantsAgent {
		in = append(in, reflect.ValueOf(agent))
	}
	for i, value := range slots {
		var paramType reflect.Type
		idx := i + offset
		if fnType.IsVariadic() && idx >= fnType.NumIn()-1 {
			paramType = fnType.In(fnType.NumIn() - 1).Elem()
		} else {
			paramType = fnType.In(idx)
		}
		v, err := convertArg(value, paramType)
		if err != nil {
			return nil, &RemoteError{Kind: "TypeError", Message: fmt.Sprintf(
				"argument %d: %v", i, err)}
		}
		in = append(in, v)
	}

	out := c.fn.Call(in)
	return splitResults(out, fnType)
}

func convertArg(value interface{}, paramType reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch paramType.Kind() {
		case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
			return reflect.Zero(paramType), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %v", paramType)
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(paramType) {
		return v, nil
	}
	if v.Type().ConvertibleTo(paramType) && isNumeric(v.Type()) && isNumeric(paramType) {
		return v.Convert(paramType), nil
	}
	return reflect.Value{}, fmt.Errorf("%v is not a valid %v", v.Type(), paramType)
}

func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// splitResults maps the Go return shapes (), (T), (error) and (T, error)
// onto the wire's result-or-error outcome.
func splitResults(out []reflect.Value, fnType reflect.Type) (interface{}, *RemoteError) {
	n := fnType.NumOut()
	if n == 0 {
		return nil, nil
	}
	last := fnType.Out(n - 1)
	if last.Implements(errorType) {
		if errValue := out[n-1]; !errValue.IsNil() {
			return nil, remoteErrorFrom(errValue.Interface().(error))
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// remoteErrorFrom tags an error returned by a callable. The kind is the
// error's ErrorKind() when it has one, otherwise the error's type name, so
// a type named ValueError propagates as "ValueError".
func remoteErrorFrom(err error) *RemoteError {
	kind := "Error"
	if k, ok := err.(errorKinder); ok {
		kind = k.ErrorKind()
	} else {
		t := reflect.TypeOf(err)
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		// unexported names (errorString, fundamental, ...) say nothing
		// useful about the failure class
		if name := t.Name(); name != "" && name[0] >= 'A' && name[0] <= 'Z' {
			kind = name
		}
	}
	return &RemoteError{Kind: kind, Message: err.Error()}
}
