package main

import (
	"strings"
	"testing"
)

func TestValidateEnvironment(t *testing.T) {
	t.Run("all present", func(t *testing.T) {
		t.Setenv("VAPI_API_KEY", "key")
		t.Setenv("PHONE_NUMBER", "+15551234567")
		if err := validateEnvironment(); err != nil {
			t.Errorf("validateEnvironment failed: %v", err)
		}
	})

	t.Run("missing variables named", func(t *testing.T) {
		t.Setenv("VAPI_API_KEY", "")
		t.Setenv("PHONE_NUMBER", "")
		err := validateEnvironment()
		if err == nil {
			t.Fatal("expected error for missing variables")
		}
		for _, key := range []string{"VAPI_API_KEY", "PHONE_NUMBER"} {
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error does not name %s: %v", key, err)
			}
		}
	})

	t.Run("one missing", func(t *testing.T) {
		t.Setenv("VAPI_API_KEY", "key")
		t.Setenv("PHONE_NUMBER", "")
		err := validateEnvironment()
		if err == nil {
			t.Fatal("expected error for missing PHONE_NUMBER")
		}
		if strings.Contains(err.Error(), "VAPI_API_KEY") {
			t.Errorf("error names a variable that is set: %v", err)
		}
	})
}
