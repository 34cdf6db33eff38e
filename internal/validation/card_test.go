package validation

import "testing"

func TestIsValidCardNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "valid visa",
			number: "4111111111111111",
			valid:  true,
		},
		{
			name:   "valid amex",
			number: "378282246310005",
			valid:  true,
		},
		{
			name:   "invalid checksum",
			number: "4111111111111112",
			valid:  false,
		},
		{
			name:   "too short",
			number: "411111111111",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "41111111111111ab",
			valid:  false,
		},
		{
			name:   "empty string",
			number: "",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidCardNumber(tt.number)
			if got != tt.valid {
				t.Fatalf("IsValidCardNumber(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}

func TestIsValidCVV(t *testing.T) {
	if !IsValidCVV("123") || !IsValidCVV("1234") {
		t.Fatalf("three and four digit CVV must be valid")
	}
	if IsValidCVV("12") || IsValidCVV("12345") || IsValidCVV("12a") {
		t.Fatalf("malformed CVV must be invalid")
	}
}

func TestIsValidZipCode(t *testing.T) {
	tests := []struct {
		zip   string
		valid bool
	}{
		{"94105", true},
		{"94105-1234", true},
		{"9410", false},
		{"94105-12", false},
		{"941o5", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidZipCode(tt.zip); got != tt.valid {
			t.Fatalf("IsValidZipCode(%q) = %v, want %v", tt.zip, got, tt.valid)
		}
	}
}
