package main

import (
	"encoding/json"
	"testing"
)

func TestPolicyCommand(t *testing.T) {
	resetFlags()
	policyCalls = 30
	policyRound = 15

	output, err := captureOutput(t, runPolicy)
	if err != nil {
		t.Fatalf("runPolicy() error = %v", err)
	}
	assertContains(t, output, []string{"CALL", "LIFETIME", "16 short-lived, 14 long-lived"})
}

func TestPolicyCommandJSON(t *testing.T) {
	resetFlags()
	jsonOut = true
	policyCalls = 17
	policyRound = 15

	output, err := captureOutput(t, runPolicy)
	if err != nil {
		t.Fatalf("runPolicy() error = %v", err)
	}

	var entries []policyEntry
	if err := json.Unmarshal([]byte(output), &entries); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, output)
	}
	want := map[int]string{1: "short", 2: "long", 14: "long", 15: "short", 16: "short", 17: "long"}
	for call, lifetime := range want {
		if got := entries[call-1].Lifetime; got != lifetime {
			t.Errorf("call %d: got %s, want %s", call, got, lifetime)
		}
	}
	if entries[15].Round != 2 || entries[15].Position != 1 {
		t.Errorf("call 16 = round %d position %d, want round 2 position 1", entries[15].Round, entries[15].Position)
	}
}

func TestPolicyCommandInvalid(t *testing.T) {
	resetFlags()
	policyCalls = 5
	policyRound = 0
	if _, err := captureOutput(t, runPolicy); err == nil {
		t.Fatal("expected error for zero round")
	}
}
