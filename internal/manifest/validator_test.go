package manifest

import (
	"testing"
)

func TestValidate_SchemaCompiles(t *testing.T) {
	schema, err := getSchema()
	if err != nil {
		t.Fatalf("getSchema() error: %v", err)
	}
	if schema == nil {
		t.Fatal("getSchema() returned nil schema")
	}
}

func TestValidate_Valid(t *testing.T) {
	result, err := Validate([]byte(validManifest))
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if !result.Valid {
		for _, issue := range result.Issues {
			t.Errorf("  path=%s keyword=%s message=%s", issue.Path, issue.Keyword, issue.Message)
		}
		t.Fatal("expected valid manifest")
	}
}

func TestValidate_IssueFields(t *testing.T) {
	result, err := Validate([]byte("identifier: Bad Name\nversion: 1.0.0\n"))
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result")
	}

	hasMessage := false
	for _, issue := range result.Issues {
		if issue.Message != "" && issue.Keyword != "" {
			hasMessage = true
		}
	}
	if !hasMessage {
		t.Error("expected at least one issue with a message and keyword")
	}
}

func TestValidate_UnknownTopLevelKey(t *testing.T) {
	result, err := Validate([]byte("identifier: p\nversion: 1.0.0\nsurprise: true\n"))
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.Valid {
		t.Error("expected unknown key to be rejected")
	}
}

func TestNormalizeYAML_NonStringKeys(t *testing.T) {
	in := map[interface{}]interface{}{1: "a", "b": []interface{}{map[interface{}]interface{}{true: "x"}}}
	out, ok := normalizeYAML(in).(map[string]interface{})
	if !ok {
		t.Fatalf("normalizeYAML returned %T", normalizeYAML(in))
	}
	if out["1"] != "a" {
		t.Errorf(`out["1"] = %v, want a`, out["1"])
	}
	inner := out["b"].([]interface{})[0].(map[string]interface{})
	if inner["true"] != "x" {
		t.Errorf(`inner["true"] = %v, want x`, inner["true"])
	}
}
