package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel is the judicial risk assessment. The stored form is the
// Portuguese label used by the review team.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

var riskRaw = map[RiskLevel]string{
	RiskLow:    "Baixo",
	RiskMedium: "Médio",
	RiskHigh:   "Alto",
}

// ParseRiskLevel accepts the enum name or the stored label. Empty input is LOW.
func ParseRiskLevel(raw string) (RiskLevel, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return RiskLow, nil
	}
	for level, stored := range riskRaw {
		if strings.EqualFold(v, string(level)) || strings.EqualFold(v, stored) {
			return level, nil
		}
	}
	if strings.EqualFold(v, "Medio") {
		return RiskMedium, nil
	}
	return "", WrapError(ErrInvalidInput, "parse risk level", fmt.Errorf("unknown risk level %q", raw))
}

func (r RiskLevel) RawValue() string {
	if stored, ok := riskRaw[r]; ok {
		return stored
	}
	return riskRaw[RiskLow]
}

// OccupancyStatus records who is living in the property.
type OccupancyStatus string

const (
	OccupancyVacant           OccupancyStatus = "VACANT"
	OccupancyOccupiedByOwner  OccupancyStatus = "OCCUPIED_BY_OWNER"
	OccupancyOccupiedByTenant OccupancyStatus = "OCCUPIED_BY_TENANT"
	OccupancyUnknown          OccupancyStatus = "UNKNOWN"
)

var occupancyRaw = map[OccupancyStatus]string{
	OccupancyVacant:           "Vago",
	OccupancyOccupiedByOwner:  "Ocupado (Proprietário)",
	OccupancyOccupiedByTenant: "Ocupado (Inquilino)",
	OccupancyUnknown:          "Desconhecido",
}

// ParseOccupancyStatus accepts the enum name or the stored label. Empty input is VACANT.
func ParseOccupancyStatus(raw string) (OccupancyStatus, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return OccupancyVacant, nil
	}
	for status, stored := range occupancyRaw {
		if strings.EqualFold(v, string(status)) || strings.EqualFold(v, stored) {
			return status, nil
		}
	}
	return "", WrapError(ErrInvalidInput, "parse occupancy status", fmt.Errorf("unknown occupancy status %q", raw))
}

func (o OccupancyStatus) RawValue() string {
	if stored, ok := occupancyRaw[o]; ok {
		return stored
	}
	return occupancyRaw[OccupancyVacant]
}

// DeepAnalysis is the shared legal/financial annotation of a listing. It is
// keyed by (Site, ListingID); UserID records who created it.
type DeepAnalysis struct {
	Site      string `json:"site"`
	ListingID string `json:"listing_id"`
	UserID    string `json:"user_id"`

	LegalOpinion      string    `json:"legal_opinion"`
	Risk              RiskLevel `json:"risk"`
	DefendantServed   bool      `json:"defendant_served"`
	CreditorsNotified bool      `json:"creditors_notified"`

	CondoDebt       decimal.Decimal `json:"condo_debt"`
	PropertyTaxDebt decimal.Decimal `json:"property_tax_debt"`
	// DebtSubrogated true means the buyer does not inherit the debts above.
	DebtSubrogated bool `json:"debt_subrogated"`

	Occupancy            OccupancyStatus `json:"occupancy"`
	EstimatedResaleValue decimal.Decimal `json:"estimated_resale_value"`
	RenovationCost       decimal.Decimal `json:"renovation_cost"`
	EvictionCost         decimal.Decimal `json:"eviction_cost"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewDeepAnalysis returns the record rendered for a listing nobody analysed yet.
func NewDeepAnalysis(userID, site, listingID string) DeepAnalysis {
	return DeepAnalysis{
		Site:              site,
		ListingID:         listingID,
		UserID:            userID,
		Risk:              RiskLow,
		DefendantServed:   true,
		CreditorsNotified: true,
		DebtSubrogated:    true,
		Occupancy:         OccupancyVacant,
		UpdatedAt:         time.Now().UTC(),
	}
}

// TotalLiabilities sums what the buyer pays on top of the bid.
func (a DeepAnalysis) TotalLiabilities() decimal.Decimal {
	total := a.RenovationCost.Add(a.EvictionCost)
	if !a.DebtSubrogated {
		total = total.Add(a.CondoDebt).Add(a.PropertyTaxDebt)
	}
	return total
}

// EstimatedMargin is resale value minus bid and liabilities.
func (a DeepAnalysis) EstimatedMargin(bid decimal.Decimal) decimal.Decimal {
	return a.EstimatedResaleValue.Sub(bid).Sub(a.TotalLiabilities())
}
