package validator

import "testing"

type joinPayload struct {
	Code        string `json:"code" validate:"required,sessioncode"`
	DisplayName string `json:"display_name" validate:"required,max=64"`
	OptionIndex int    `json:"option_index" validate:"gte=0"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := joinPayload{
		Code:        "XK7Q2N",
		DisplayName: "alice",
		OptionIndex: 1,
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := joinPayload{
		Code:        "bad code",
		DisplayName: "",
		OptionIndex: -2,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	byField := map[string]ValidationError{}
	for _, v := range vErrs {
		byField[v.Field] = v
	}

	if byField["code"].Tag != "sessioncode" {
		t.Fatalf("expected code to fail on sessioncode, got %s", byField["code"].Tag)
	}
	if !byField["display_name"].Missing() {
		t.Fatal("expected display_name failure to count as missing")
	}
	if byField["option_index"].Missing() {
		t.Fatal("expected option_index failure to count as out-of-constraint")
	}
}

func TestSessionCodeRejectsAmbiguousAlphabet(t *testing.T) {
	type payload struct {
		Code string `json:"code" validate:"sessioncode"`
	}

	for _, code := range []string{"ABC1DE", "AB0CDE", "ABICDE", "ABLCDE", "ABOCDE", "AB CDE"} {
		if err := ValidateStruct(payload{Code: code}); err == nil {
			t.Fatalf("expected code %q to be rejected", code)
		}
	}

	// Lowercase input is fine; the registry normalizes case.
	for _, code := range []string{"WXYZ234", "xk7q2n"} {
		if err := ValidateStruct(payload{Code: code}); err != nil {
			t.Fatalf("expected code %q to be accepted, got %v", code, err)
		}
	}
}
