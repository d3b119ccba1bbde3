package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDocumentStatusTransitions(t *testing.T) {
	tests := []struct {
		from DocumentStatus
		to   DocumentStatus
		ok   bool
	}{
		{DocumentStatusPending, DocumentStatusProcessing, true},
		{DocumentStatusPending, DocumentStatusAuthorized, false},
		{DocumentStatusProcessing, DocumentStatusAuthorized, true},
		{DocumentStatusProcessing, DocumentStatusError, true},
		{DocumentStatusProcessing, DocumentStatusRejected, true},
		{DocumentStatusError, DocumentStatusProcessing, true},
		{DocumentStatusRejected, DocumentStatusProcessing, false},
		{DocumentStatusAuthorized, DocumentStatusProcessing, false},
		{DocumentStatusAuthorized, DocumentStatusCancelled, true},
		{DocumentStatusRejected, DocumentStatusCancelled, true},
		{DocumentStatusProcessing, DocumentStatusCancelled, true},
		{DocumentStatusCancelled, DocumentStatusCancelled, false},
		{DocumentStatusCancelled, DocumentStatusProcessing, false},
		{DocumentStatus("typo"), DocumentStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestSaleStatusTransitions(t *testing.T) {
	assert.True(t, SaleStatusPending.CanTransition(SaleStatusConfirmed))
	assert.True(t, SaleStatusConfirmed.CanTransition(SaleStatusCompleted))
	assert.True(t, SaleStatusCompleted.CanTransition(SaleStatusCancelled))
	assert.False(t, SaleStatusPending.CanTransition(SaleStatusCompleted))
	assert.False(t, SaleStatusCancelled.CanTransition(SaleStatusPending))

	assert.True(t, SaleStatusConfirmed.Billable())
	assert.True(t, SaleStatusCompleted.Billable())
	assert.False(t, SaleStatusPending.Billable())
	assert.False(t, SaleStatusCancelled.Billable())
	assert.False(t, SaleStatus("bogus").Valid())
}

func TestDefaultIssuerConfig(t *testing.T) {
	cfg := DefaultIssuerConfig("acme", decimal.RequireFromString("0.05"), "35")

	assert.False(t, cfg.AutoIssue)
	assert.Equal(t, EnvironmentSandbox, cfg.Environment)
	assert.Equal(t, DefaultSeries, cfg.DefaultSeries)
	assert.Equal(t, "acme", cfg.IssuerID)
	assert.Equal(t, "35", cfg.RegionCode)
}
