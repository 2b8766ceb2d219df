package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/models"
)

var testEpoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func testRep(id, region string) models.SalesRep {
	return models.SalesRep{
		RepID:                id,
		Name:                 "Rep " + id,
		Region:               region,
		IsActive:             true,
		IncludeInAssignments: true,
	}
}

func testAccount(id string, arr int64, owner string) models.Account {
	a := models.Account{
		ID:         id,
		Name:       "Account " + id,
		IsCustomer: true,
		ARR:        decimal.NewFromInt(arr),
		CreatedAt:  testEpoch,
	}
	if owner != "" {
		a.OwnerID = &owner
	}
	return a
}

func testConfig(minARR, targetARR, maxARR int64) Config {
	return Config{
		MinARR:       decimal.NewFromInt(minARR),
		TargetARR:    decimal.NewFromInt(targetARR),
		MaxARR:       decimal.NewFromInt(maxARR),
		MaxCREPerRep: 5,
		Now:          func() time.Time { return testEpoch },
	}
}
