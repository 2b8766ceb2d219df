package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type AccountTier string

const (
	TierNone AccountTier = ""
	Tier1    AccountTier = "TIER1"
	Tier2    AccountTier = "TIER2"
	Tier3    AccountTier = "TIER3"
	Tier4    AccountTier = "TIER4"
)

type Account struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	IsCustomer              bool            `json:"is_customer"`
	ARR                     decimal.Decimal `json:"arr"`
	ATR                     decimal.Decimal `json:"atr"`
	Pipeline                decimal.Decimal `json:"pipeline"`
	CRECount                int             `json:"cre_count"`
	Territory               string          `json:"territory"`
	Geo                     string          `json:"geo"`
	OwnerID                 *string         `json:"owner_id"`
	ParentID                *string         `json:"parent_id"`
	CreatedAt               time.Time       `json:"created_at"`
	OwnerChangeDate         *time.Time      `json:"owner_change_date"`
	Tier                    AccountTier     `json:"tier"`
	IsStrategic             bool            `json:"is_strategic"`
	PEFirmProtected         bool            `json:"pe_firm_protected"`
	ExcludeFromReassignment bool            `json:"exclude_from_reassignment"`
}

// RiskFlagged reports whether the account carries any CRE risk.
func (a Account) RiskFlagged() bool {
	return a.CRECount > 0
}

type SalesRep struct {
	RepID                string    `json:"rep_id"`
	Name                 string    `json:"name"`
	Region               string    `json:"region"`
	IsActive             bool      `json:"is_active"`
	IncludeInAssignments bool      `json:"include_in_assignments"`
	IsStrategicRep       bool      `json:"is_strategic_rep"`
	IsRenewalSpecialist  bool      `json:"is_renewal_specialist"`
	Team                 string    `json:"team,omitempty"`
	Tier                 string    `json:"tier,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Assignable reports whether the rep participates in balancing runs.
func (r SalesRep) Assignable() bool {
	return r.IsActive && r.IncludeInAssignments
}

type AssignmentType string

const (
	AssignmentCustomer AssignmentType = "customer"
	AssignmentProspect AssignmentType = "prospect"
)

type Proposal struct {
	ID                string         `json:"id"`
	AccountID         string         `json:"account_id"`
	ProposedOwnerID   string         `json:"proposed_owner_id"`
	ProposedOwnerName string         `json:"proposed_owner_name"`
	AssignmentType    AssignmentType `json:"assignment_type"`
	Rationale         string         `json:"rationale"`
	Score             *float64       `json:"score,omitempty"`
	ConflictFlag      string         `json:"conflict_flag,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at"`
	Status     string          `json:"status"`
	Summary    json.RawMessage `json:"summary"`
}
