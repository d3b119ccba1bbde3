package validation

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rental-billing/internal/model"
)

var (
	// ErrMissingHouse возвращается, если договор не ссылается на дом.
	ErrMissingHouse = errors.New("house reference is required")
	// ErrInvalidStay возвращается, если выезд не позже заезда.
	ErrInvalidStay = errors.New("check-out must be after check-in")
	// ErrInvalidGuests возвращается при неположительном числе гостей.
	ErrInvalidGuests = errors.New("guest count must be positive")
	// ErrNegativeAmount возвращается, если денежное поле отрицательно.
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrDiscountExceedsContract возвращается, если скидка больше стоимости договора.
	ErrDiscountExceedsContract = errors.New("discount exceeds contract value")
	// ErrInvalidTaxID возвращается, если CPF/CNPJ не проходит проверку контрольных цифр.
	ErrInvalidTaxID = errors.New("invalid tax id")
	// ErrInvalidStatus возвращается для неизвестного статуса.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidSeries возвращается, если серия не число от 1 до 999.
	ErrInvalidSeries = errors.New("series must be a number between 1 and 999")
	// ErrInvalidTaxRate возвращается, если ставка налога вне диапазона [0, 1).
	ErrInvalidTaxRate = errors.New("tax rate must be in [0, 1)")
	// ErrInvalidEnvironment возвращается для неизвестной среды фискального органа.
	ErrInvalidEnvironment = errors.New("environment must be sandbox or production")
	// ErrInvalidRegion возвращается, если код региона не из двух цифр.
	ErrInvalidRegion = errors.New("region code must be two digits")
	// ErrMissingReason возвращается при отмене без причины.
	ErrMissingReason = errors.New("reason is required")
	// ErrMissingIssuer возвращается, если не указан эмитент.
	ErrMissingIssuer = errors.New("issuer reference is required")
)

// ValidationError оборачивает сентинел-ошибку подробностями для вызывающей стороны.
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, details string) error {
	return &ValidationError{Err: err, Details: details}
}

// IsValidationError сообщает, является ли err ошибкой валидации.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateSale проверяет базовые поля договора до любых изменений состояния.
func ValidateSale(s *model.Sale) error {
	if s.HouseID == "" {
		return invalid(ErrMissingHouse, "")
	}
	if s.Stay.CheckIn.IsZero() || s.Stay.CheckOut.IsZero() || !s.Stay.CheckOut.After(s.Stay.CheckIn) {
		return invalid(ErrInvalidStay, "")
	}
	if s.Guests <= 0 {
		return invalid(ErrInvalidGuests, strconv.Itoa(s.Guests))
	}

	amounts := map[string]decimal.Decimal{
		"contract_value":    s.ContractValue,
		"discount":          s.Discount,
		"housekeeper_value": s.HousekeeperValue,
		"concierge_value":   s.ConciergeValue,
	}
	for name, v := range amounts {
		if v.IsNegative() {
			return invalid(ErrNegativeAmount, name)
		}
	}
	for _, v := range s.Additional.Amounts() {
		if v.IsNegative() {
			return invalid(ErrNegativeAmount, "additional_sales")
		}
	}
	if s.Discount.GreaterThan(s.ContractValue) {
		return invalid(ErrDiscountExceedsContract, s.Discount.String())
	}

	if s.ClientTaxID != "" && !IsValidTaxID(s.ClientTaxID) {
		return invalid(ErrInvalidTaxID, s.ClientTaxID)
	}
	if s.Status != "" && !s.Status.Valid() {
		return invalid(ErrInvalidStatus, string(s.Status))
	}

	return nil
}

// ValidateSeries проверяет, что серия является числом от 1 до 999.
func ValidateSeries(series string) error {
	n, err := strconv.Atoi(series)
	if err != nil || n < 1 || n > 999 {
		return invalid(ErrInvalidSeries, series)
	}
	return nil
}

// ValidateIssuerConfig проверяет настройки эмитента перед сохранением.
func ValidateIssuerConfig(c *model.IssuerConfig) error {
	if err := ValidateSeries(c.DefaultSeries); err != nil {
		return err
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return invalid(ErrInvalidTaxRate, c.TaxRate.String())
	}
	if c.Environment != model.EnvironmentSandbox && c.Environment != model.EnvironmentProduction {
		return invalid(ErrInvalidEnvironment, string(c.Environment))
	}
	if len(c.RegionCode) != 2 || c.RegionCode[0] < '0' || c.RegionCode[0] > '9' || c.RegionCode[1] < '0' || c.RegionCode[1] > '9' {
		return invalid(ErrInvalidRegion, c.RegionCode)
	}
	if c.TaxID != "" && !IsValidTaxID(c.TaxID) {
		return invalid(ErrInvalidTaxID, c.TaxID)
	}
	return nil
}
