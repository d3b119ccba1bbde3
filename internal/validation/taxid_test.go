package validation

import "testing"

func TestIsValidTaxID(t *testing.T) {
	tests := []struct {
		name  string
		taxID string
		valid bool
	}{
		{
			name:  "valid cpf",
			taxID: "52998224725",
			valid: true,
		},
		{
			name:  "valid formatted cpf",
			taxID: "529.982.247-25",
			valid: true,
		},
		{
			name:  "valid cnpj",
			taxID: "11222333000181",
			valid: true,
		},
		{
			name:  "valid formatted cnpj",
			taxID: "11.222.333/0001-81",
			valid: true,
		},
		{
			name:  "invalid cpf check digit",
			taxID: "52998224724",
			valid: false,
		},
		{
			name:  "invalid cnpj check digit",
			taxID: "11222333000182",
			valid: false,
		},
		{
			name:  "repeated digits",
			taxID: "11111111111",
			valid: false,
		},
		{
			name:  "contains letters",
			taxID: "5299822472a",
			valid: false,
		},
		{
			name:  "wrong length",
			taxID: "123456",
			valid: false,
		},
		{
			name:  "empty string",
			taxID: "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidTaxID(tt.taxID)
			if got != tt.valid {
				t.Fatalf("IsValidTaxID(%q) = %v, want %v", tt.taxID, got, tt.valid)
			}
		})
	}
}
