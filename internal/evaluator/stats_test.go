package evaluator

import "testing"

func TestDropRateAndDegradedMode(t *testing.T) {
	var e Evaluator

	if rate := e.DropRate(); rate != 0 {
		t.Fatalf("expected 0 drop rate with no events recorded, got %v", rate)
	}
	if e.DegradedMode() {
		t.Fatal("expected DegradedMode false with no events recorded")
	}

	for i := 0; i < 19; i++ {
		e.RecordProcessed()
	}
	e.RecordDrop()

	if rate := e.DropRate(); rate != 0.05 {
		t.Fatalf("expected drop rate 0.05, got %v", rate)
	}
	if e.DegradedMode() {
		t.Fatal("expected DegradedMode false exactly at the threshold")
	}

	e.RecordDrop()
	if !e.DegradedMode() {
		t.Fatalf("expected DegradedMode true once drop rate exceeds threshold, got rate %v", e.DropRate())
	}
}
