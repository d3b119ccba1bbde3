package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rental-billing/internal/model"
)

func validSale() *model.Sale {
	return &model.Sale{
		HouseID:       "casa-azul",
		ClientTaxID:   "529.982.247-25",
		Guests:        4,
		ContractValue: decimal.NewFromInt(3000),
		Discount:      decimal.NewFromInt(200),
		Stay: model.StayPeriod{
			CheckIn:  time.Date(2025, time.June, 10, 15, 0, 0, 0, time.UTC),
			CheckOut: time.Date(2025, time.June, 13, 11, 0, 0, 0, time.UTC),
		},
	}
}

func TestValidateSale(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *model.Sale)
		wantErr error
	}{
		{name: "valid", mutate: func(s *model.Sale) {}},
		{name: "missing house", mutate: func(s *model.Sale) { s.HouseID = "" }, wantErr: ErrMissingHouse},
		{name: "check-out equals check-in", mutate: func(s *model.Sale) { s.Stay.CheckOut = s.Stay.CheckIn }, wantErr: ErrInvalidStay},
		{name: "check-out before check-in", mutate: func(s *model.Sale) { s.Stay.CheckOut = s.Stay.CheckIn.Add(-time.Hour) }, wantErr: ErrInvalidStay},
		{name: "zero guests", mutate: func(s *model.Sale) { s.Guests = 0 }, wantErr: ErrInvalidGuests},
		{name: "negative housekeeper", mutate: func(s *model.Sale) { s.HousekeeperValue = decimal.NewFromInt(-1) }, wantErr: ErrNegativeAmount},
		{name: "negative additional", mutate: func(s *model.Sale) { s.Additional.Tours = decimal.NewFromInt(-5) }, wantErr: ErrNegativeAmount},
		{name: "discount above contract", mutate: func(s *model.Sale) { s.Discount = decimal.NewFromInt(5000) }, wantErr: ErrDiscountExceedsContract},
		{name: "bad tax id", mutate: func(s *model.Sale) { s.ClientTaxID = "12345678900" }, wantErr: ErrInvalidTaxID},
		{name: "unknown status", mutate: func(s *model.Sale) { s.Status = "booked" }, wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSale()
			tt.mutate(s)

			err := ValidateSale(s)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if !IsValidationError(err) {
				t.Fatalf("error %v is not a ValidationError", err)
			}
		})
	}
}

func TestValidateIssuerConfig(t *testing.T) {
	base := model.DefaultIssuerConfig("acme", decimal.RequireFromString("0.05"), "35")

	if err := ValidateIssuerConfig(&base); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}

	bad := base
	bad.DefaultSeries = "1000"
	if err := ValidateIssuerConfig(&bad); !errors.Is(err, ErrInvalidSeries) {
		t.Fatalf("error = %v, want ErrInvalidSeries", err)
	}

	bad = base
	bad.TaxRate = decimal.NewFromInt(1)
	if err := ValidateIssuerConfig(&bad); !errors.Is(err, ErrInvalidTaxRate) {
		t.Fatalf("error = %v, want ErrInvalidTaxRate", err)
	}

	bad = base
	bad.Environment = "staging"
	if err := ValidateIssuerConfig(&bad); !errors.Is(err, ErrInvalidEnvironment) {
		t.Fatalf("error = %v, want ErrInvalidEnvironment", err)
	}

	bad = base
	bad.RegionCode = "3"
	if err := ValidateIssuerConfig(&bad); !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("error = %v, want ErrInvalidRegion", err)
	}
}
