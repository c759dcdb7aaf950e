package client

import (
	"testing"
)

func TestParseJSONArgs(t *testing.T) {
	args, err := parseJSONArgs("")
	if err != nil || args != nil {
		t.Errorf("Empty input should mean no arguments, got %v, %v", args, err)
	}

	args, err = parseJSONArgs(`[1, "two", [3, 4]]`)
	if err != nil {
		t.Fatalf("Shouldn't be an error: %v", err)
	}
	if len(args) != 3 || args[1] != "two" {
		t.Errorf("Unexpected arguments: %v", args)
	}

	if _, err = parseJSONArgs(`{"a": 1}`); err == nil {
		t.Error("A JSON object is not a valid argument list.")
	}
	if _, err = parseJSONArgs("nonsense"); err == nil {
		t.Error("Invalid JSON should be rejected.")
	}
}
