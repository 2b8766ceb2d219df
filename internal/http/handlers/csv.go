package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookbalance/backend/internal/models"
	"github.com/bookbalance/backend/internal/territory"
)

func parseAccountsCSV(file *multipart.FileHeader) ([]models.Account, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)
	var errors []string
	var out []models.Account

	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errors = append(errors, err.Error())
			continue
		}

		id := normalizeTrim(getFieldAny(rec, index, "id", "account_id", "account id", "sfdc_id"))
		name := normalizeTrim(getFieldAny(rec, index, "name", "account_name", "account name"))
		if id == "" {
			errors = append(errors, fmt.Sprintf("accounts.csv line %d: id required", line))
			continue
		}

		arr, err := parseMoney(getFieldAny(rec, index, "arr", "annual_recurring_revenue"))
		if err != nil {
			errors = append(errors, fmt.Sprintf("accounts.csv line %d: invalid arr", line))
			continue
		}
		atr, err := parseMoney(getFieldAny(rec, index, "atr", "available_to_renew"))
		if err != nil {
			errors = append(errors, fmt.Sprintf("accounts.csv line %d: invalid atr", line))
			continue
		}
		pipeline, err := parseMoney(getFieldAny(rec, index, "pipeline", "open_pipeline"))
		if err != nil {
			errors = append(errors, fmt.Sprintf("accounts.csv line %d: invalid pipeline", line))
			continue
		}

		creCount, _ := strconv.Atoi(normalizeTrim(getFieldAny(rec, index, "cre_count", "cre count", "cres")))
		createdAt := parseTimeOrNow(getFieldAny(rec, index, "created_at", "created", "created date"))

		a := models.Account{
			ID:                      id,
			Name:                    name,
			IsCustomer:              parseBool(getFieldAny(rec, index, "is_customer", "customer")),
			ARR:                     arr,
			ATR:                     atr,
			Pipeline:                pipeline,
			CRECount:                creCount,
			Territory:               territory.NormalizeTerritory(getFieldAny(rec, index, "territory", "sales_territory")),
			Geo:                     normalizeTrim(getFieldAny(rec, index, "geo", "region", "geo_region")),
			Tier:                    normalizeTier(getFieldAny(rec, index, "tier", "account_tier", "expansion_tier")),
			IsStrategic:             parseBool(getFieldAny(rec, index, "is_strategic", "strategic")),
			PEFirmProtected:         parseBool(getFieldAny(rec, index, "pe_firm_protected", "pe_protected")),
			ExcludeFromReassignment: parseBool(getFieldAny(rec, index, "exclude_from_reassignment", "exclude", "do_not_reassign")),
			CreatedAt:               createdAt,
		}
		if owner := normalizeTrim(getFieldAny(rec, index, "owner_id", "owner", "current_owner_id")); owner != "" {
			a.OwnerID = &owner
		}
		if parent := normalizeTrim(getFieldAny(rec, index, "parent_id", "parent_account_id")); parent != "" {
			a.ParentID = &parent
		}
		if raw := normalizeTrim(getFieldAny(rec, index, "owner_change_date", "owner_changed_at")); raw != "" {
			if t, err := parseTime(raw); err == nil {
				a.OwnerChangeDate = &t
			}
		}
		out = append(out, a)
	}
	return out, errors
}

func parseRepsCSV(file *multipart.FileHeader) ([]models.SalesRep, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)
	var errors []string
	var out []models.SalesRep

	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errors = append(errors, err.Error())
			continue
		}

		id := normalizeTrim(getFieldAny(rec, index, "rep_id", "id", "rep id"))
		name := normalizeTrim(getFieldAny(rec, index, "name", "rep_name", "full_name"))
		if id == "" || name == "" {
			errors = append(errors, fmt.Sprintf("reps.csv line %d: rep_id/name required", line))
			continue
		}

		included := true
		if raw := normalizeTrim(getFieldAny(rec, index, "include_in_assignments", "include")); raw != "" {
			included = parseBool(raw)
		}
		active := true
		if raw := normalizeTrim(getFieldAny(rec, index, "is_active", "active")); raw != "" {
			active = parseBool(raw)
		}

		r := models.SalesRep{
			RepID:                id,
			Name:                 name,
			Region:               normalizeTrim(getFieldAny(rec, index, "region", "geo")),
			IsActive:             active,
			IncludeInAssignments: included,
			IsStrategicRep:       parseBool(getFieldAny(rec, index, "is_strategic_rep", "strategic", "is_strategic")),
			IsRenewalSpecialist:  parseBool(getFieldAny(rec, index, "is_renewal_specialist", "renewal_specialist", "rs")),
			Team:                 normalizeTrim(getFieldAny(rec, index, "team")),
			Tier:                 string(normalizeTier(getFieldAny(rec, index, "tier"))),
			UpdatedAt:            time.Now().UTC(),
		}
		out = append(out, r)
	}
	return out, errors
}

func headerIndex(headers []string) map[string]int {
	idx := map[string]int{}
	for i, h := range headers {
		idx[normalizeHeader(h)] = i
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

func getFieldAny(rec []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if v := getField(rec, idx, normalizeHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(h))
}

func normalizeTrim(v string) string {
	return strings.TrimSpace(v)
}

func normalizeTier(v string) models.AccountTier {
	t := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), " ", ""))
	switch t {
	case "TIER1", "1":
		return models.Tier1
	case "TIER2", "2":
		return models.Tier2
	case "TIER3", "3":
		return models.Tier3
	case "TIER4", "4":
		return models.Tier4
	}
	return models.TierNone
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

// parseMoney accepts plain numbers with optional thousands separators
// and currency symbols. Empty is zero.
func parseMoney(v string) (decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "$")
	v = strings.ReplaceAll(v, ",", "")
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", v)
}

func parseTimeOrNow(v string) time.Time {
	if t, err := parseTime(strings.TrimSpace(v)); err == nil {
		return t
	}
	return time.Now().UTC()
}

func validateExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv"
}
