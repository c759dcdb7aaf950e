package rpc

import (
	"strings"
	"testing"
)

func init() {
	RegisterFunc("test.sum3", func(a, b, c int) int {
		return a + b + c
	}, "a", "b", "c")
	RegisterFunc("test.panics", func() {
		panic("boom")
	})
	RegisterFunc("test.kinded", func() error {
		return kindedError{}
	})
	RegisterFunc("test.float", func(x float64) float64 {
		return x * 2
	}, "x")
	RegisterClass("TestBox", func(v string) *testBox {
		return &testBox{V: v}
	}, "v").Method("Upper")
}

type kindedError struct{}

func (kindedError) Error() string     { return "kinded failure" }
func (kindedError) ErrorKind() string { return "OSError" }

type testBox struct {
	V string
}

func (b *testBox) Upper() string {
	return strings.ToUpper(b.V)
}

func checkKind(t *testing.T, rerr *RemoteError, kind string) {
	t.Helper()
	if rerr == nil {
		t.Fatal("Expected a remote error.")
	}
	if rerr.Kind != kind {
		t.Errorf("Error kind is %v; want %v. message: %v", rerr.Kind, kind, rerr.Message)
	}
	if !strings.Contains(rerr.Error(), kind) {
		t.Errorf("Error text %q should contain the kind.", rerr.Error())
	}
}

func TestInvokePositionalAndKeyword(t *testing.T) {
	result, rerr := invoke(nil, Function("test.sum3"),
		[]interface{}{1}, map[string]interface{}{"b": 2, "c": 3})
	if rerr != nil {
		t.Fatalf("Shouldn't be an error: %v", rerr)
	}
	if result.(int) != 6 {
		t.Errorf("sum3(1, b=2, c=3) = %v; want 6", result)
	}
}

func TestInvokeMissingArgument(t *testing.T) {
	_, rerr := invoke(nil, Function("test.sum3"), []interface{}{1}, nil)
	checkKind(t, rerr, "TypeError")
	if !strings.Contains(rerr.Message, "b") {
		t.Errorf("Message should name the missing parameter: %v", rerr.Message)
	}
}

func TestInvokeTooManyArguments(t *testing.T) {
	_, rerr := invoke(nil, Function("test.sum3"), []interface{}{1, 2, 3, 4}, nil)
	checkKind(t, rerr, "TypeError")
}

func TestInvokeDuplicateArgument(t *testing.T) {
	_, rerr := invoke(nil, Function("test.sum3"),
		[]interface{}{1, 2}, map[string]interface{}{"b": 5, "c": 3})
	checkKind(t, rerr, "TypeError")
}

func TestInvokeWrongType(t *testing.T) {
	_, rerr := invoke(nil, Function("test.sum3"),
		[]interface{}{"one", 2, 3}, nil)
	checkKind(t, rerr, "TypeError")
}

func TestInvokeNumericConversion(t *testing.T) {
	// an int argument binds to a float64 parameter
	result, rerr := invoke(nil, Function("test.float"), []interface{}{3}, nil)
	if rerr != nil {
		t.Fatalf("Shouldn't be an error: %v", rerr)
	}
	if result.(float64) != 6.0 {
		t.Errorf("float(3) = %v; want 6", result)
	}
}

func TestInvokePanicBecomesRuntimeError(t *testing.T) {
	_, rerr := invoke(nil, Function("test.panics"), nil, nil)
	checkKind(t, rerr, "RuntimeError")
	if !strings.Contains(rerr.Message, "boom") {
		t.Errorf("Panic value lost: %v", rerr.Message)
	}
}

func TestInvokeErrorKinder(t *testing.T) {
	_, rerr := invoke(nil, Function("test.kinded"), nil, nil)
	checkKind(t, rerr, "OSError")
}

func TestInvokeUnknownSymbols(t *testing.T) {
	_, rerr := invoke(nil, Function("test.missing"), nil, nil)
	checkKind(t, rerr, "LookupError")

	_, rerr = invoke(nil, Constructor("NoSuchClass"), nil, nil)
	checkKind(t, rerr, "LookupError")

	_, rerr = invoke(nil, BoundMethod("TestBox", "NoSuchMethod", "x"), nil, nil)
	checkKind(t, rerr, "AttributeError")

	_, rerr = invoke(nil, ClassMethod("TestBox", "NoSuchMethod"), nil, nil)
	checkKind(t, rerr, "AttributeError")
}

func TestInvokeBoundMethodRebuildsInstance(t *testing.T) {
	result, rerr := invoke(nil, BoundMethod("TestBox", "Upper", "abc"), nil, nil)
	if rerr != nil {
		t.Fatalf("Shouldn't be an error: %v", rerr)
	}
	if result.(string) != "ABC" {
		t.Errorf("Upper() = %v; want ABC", result)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Duplicate registration should panic.")
		}
	}()
	RegisterFunc("test.sum3", func() {})
}
