package models

import "testing"

func TestJSONB_ValueAndScan(t *testing.T) {
	original := JSONB{"calendar_id": "primary", "time_zone": "UTC"}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var scanned JSONB
	if err := scanned.Scan(value); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if scanned["calendar_id"] != "primary" {
		t.Errorf("Expected calendar_id 'primary', got %v", scanned["calendar_id"])
	}
}

func TestJSONB_NilValue(t *testing.T) {
	var j JSONB
	value, err := j.Value()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if value != nil {
		t.Errorf("Expected nil value, got %v", value)
	}

	if err := j.Scan(nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if j != nil {
		t.Errorf("Expected nil JSONB after scanning nil, got %v", j)
	}
}

func TestJSONB_ScanRejectsUnknownType(t *testing.T) {
	var j JSONB
	if err := j.Scan(42); err == nil {
		t.Fatal("Expected error scanning an int, got nil")
	}
}
