// Package model содержит доменные сущности биллинга договоров аренды и фискальных документов.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StayPeriod описывает период проживания. Конец строго позже начала.
type StayPeriod struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

// SaleStatus описывает статус договора аренды.
type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusConfirmed SaleStatus = "confirmed"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusCancelled SaleStatus = "cancelled"
)

// Valid сообщает, является ли значение известным статусом договора.
func (s SaleStatus) Valid() bool {
	switch s {
	case SaleStatusPending, SaleStatusConfirmed, SaleStatusCompleted, SaleStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition сообщает, допустим ли переход договора в статус next.
func (s SaleStatus) CanTransition(next SaleStatus) bool {
	switch s {
	case SaleStatusPending:
		return next == SaleStatusConfirmed || next == SaleStatusCancelled
	case SaleStatusConfirmed:
		return next == SaleStatusCompleted || next == SaleStatusCancelled
	case SaleStatusCompleted:
		return next == SaleStatusCancelled
	case SaleStatusCancelled:
		return false
	default:
		return false
	}
}

// Billable сообщает, можно ли выставлять фискальный документ по договору в этом статусе.
func (s SaleStatus) Billable() bool {
	switch s {
	case SaleStatusConfirmed, SaleStatusCompleted:
		return true
	case SaleStatusPending, SaleStatusCancelled:
		return false
	default:
		return false
	}
}

// AdditionalSales содержит шесть именованных сумм дополнительных продаж.
type AdditionalSales struct {
	Transfer      decimal.Decimal `json:"transfer"`
	Groceries     decimal.Decimal `json:"groceries"`
	Tours         decimal.Decimal `json:"tours"`
	Chef          decimal.Decimal `json:"chef"`
	CarRental     decimal.Decimal `json:"car_rental"`
	ExtraCleaning decimal.Decimal `json:"extra_cleaning"`
}

// Amounts возвращает все суммы в фиксированном порядке.
func (a AdditionalSales) Amounts() []decimal.Decimal {
	return []decimal.Decimal{a.Transfer, a.Groceries, a.Tours, a.Chef, a.CarRental, a.ExtraCleaning}
}

// SaleTotals содержит производные финансовые показатели договора.
type SaleTotals struct {
	Nights               int             `json:"nights"`
	NetValue             decimal.Decimal `json:"net_value"`
	SalesCommission      decimal.Decimal `json:"sales_commission"`
	TotalAdditionalSales decimal.Decimal `json:"total_additional_sales"`
	TotalRevenue         decimal.Decimal `json:"total_revenue"`
	ContributionMargin   decimal.Decimal `json:"contribution_margin"`
}

// Sale описывает подтверждённый договор аренды дома.
// Поле Totals всегда вычисляется из базовых полей и не редактируется напрямую.
type Sale struct {
	ID               uuid.UUID
	HouseID          string
	ClientName       string
	ClientTaxID      string
	Stay             StayPeriod
	Guests           int
	ContractValue    decimal.Decimal
	Discount         decimal.Decimal
	HousekeeperValue decimal.Decimal
	ConciergeValue   decimal.Decimal
	Additional       AdditionalSales
	Status           SaleStatus
	Totals           SaleTotals
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DocumentStatus описывает статус фискального документа.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusAuthorized DocumentStatus = "authorized"
	DocumentStatusError      DocumentStatus = "error"
	DocumentStatusRejected   DocumentStatus = "rejected"
	DocumentStatusCancelled  DocumentStatus = "cancelled"
)

// Valid сообщает, является ли значение известным статусом документа.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusAuthorized,
		DocumentStatusError, DocumentStatusRejected, DocumentStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition сообщает, допустим ли переход документа в статус next.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	if next == DocumentStatusCancelled {
		return s.Valid() && s != DocumentStatusCancelled
	}

	switch s {
	case DocumentStatusPending, DocumentStatusError:
		return next == DocumentStatusProcessing
	case DocumentStatusProcessing:
		return next == DocumentStatusAuthorized || next == DocumentStatusError || next == DocumentStatusRejected
	case DocumentStatusAuthorized, DocumentStatusRejected, DocumentStatusCancelled:
		return false
	default:
		return false
	}
}

// Party описывает участника документа: эмитента или получателя.
type Party struct {
	Name  string `json:"name"`
	TaxID string `json:"tax_id"`
}

// DocumentAmounts содержит денежные поля, зафиксированные на момент выставления.
// Subtotal = DailyRate + Concierge + AdditionalServices - Discount, Total = Subtotal + Tax.
type DocumentAmounts struct {
	DailyRate          decimal.Decimal `json:"daily_rate_value"`
	Concierge          decimal.Decimal `json:"concierge_value"`
	AdditionalServices decimal.Decimal `json:"additional_services_value"`
	Discount           decimal.Decimal `json:"discount_value"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	Tax                decimal.Decimal `json:"tax_value"`
	Total              decimal.Decimal `json:"total_value"`
}

// Authorization содержит артефакты, присвоенные фискальным органом.
type Authorization struct {
	Number       string    `json:"number"`
	AccessKey    string    `json:"access_key"`
	DocumentXML  string    `json:"document_xml,omitempty"`
	DocumentPDF  string    `json:"document_pdf_url,omitempty"`
	AuthorizedAt time.Time `json:"authorized_at"`
}

// FiscalDocument описывает попытку и результат выставления NFe по договору.
type FiscalDocument struct {
	ID            uuid.UUID
	SaleID        uuid.UUID
	IssuerID      string
	Number        int64
	Series        string
	Code          string
	AccessKey     string
	Issuer        Party
	Recipient     Party
	Amounts       DocumentAmounts
	Status        DocumentStatus
	Authorization *Authorization
	FailureReason string
	FailureCount  int
	LastAttemptAt *time.Time
	CancelReason  string
	IssuedAt      time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SequenceCounter хранит последний выданный номер для пары (эмитент, серия).
type SequenceCounter struct {
	IssuerID        string
	Series          string
	LastNumber      int64
	LastAllocatedAt time.Time
}

// Environment описывает целевую среду фискального органа.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// IssuerConfig содержит настройки эмитента фискальных документов.
type IssuerConfig struct {
	IssuerID       string          `json:"issuer_id"`
	Name           string          `json:"name"`
	TaxID          string          `json:"tax_id"`
	RegistrationID string          `json:"registration_id"`
	DefaultSeries  string          `json:"default_series"`
	AutoIssue      bool            `json:"auto_issue"`
	Environment    Environment     `json:"sefaz_environment"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	RegionCode     string          `json:"region_code"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DefaultSeries используется, когда у эмитента нет явной настройки серии.
const DefaultSeries = "1"

// DefaultIssuerConfig возвращает конфигурацию, создаваемую при первом обращении к эмитенту.
// Автовыставление выключено, среда sandbox.
func DefaultIssuerConfig(issuerID string, taxRate decimal.Decimal, regionCode string) IssuerConfig {
	return IssuerConfig{
		IssuerID:      issuerID,
		Name:          issuerID,
		DefaultSeries: DefaultSeries,
		AutoIssue:     false,
		Environment:   EnvironmentSandbox,
		TaxRate:       taxRate,
		RegionCode:    regionCode,
	}
}
