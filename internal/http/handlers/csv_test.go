package handlers

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/bookbalance/backend/internal/models"
)

func TestParseAccountsCSV(t *testing.T) {
	content := "id,name,is_customer,arr,atr,cre_count,territory,geo,owner_id,tier,created_at\n" +
		"A1,Acme,true,\"$1,200,000\",300000,2,ny,EAST,R1,Tier 1,2023-04-01\n" +
		"A2,Beta,false,50000,,0,,WEST,,,\n"
	fh := makeMultipartFile(t, "accounts", "accounts.csv", content)

	accounts, errs := parseAccountsCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}

	a := accounts[0]
	if !a.IsCustomer {
		t.Fatal("expected customer")
	}
	if a.ARR.String() != "1200000" {
		t.Fatalf("expected ARR 1200000, got %s", a.ARR)
	}
	if a.Territory != "NY" {
		t.Fatalf("expected normalized territory NY, got %s", a.Territory)
	}
	if a.Tier != models.Tier1 {
		t.Fatalf("expected Tier1, got %s", a.Tier)
	}
	if a.OwnerID == nil || *a.OwnerID != "R1" {
		t.Fatalf("expected owner R1, got %v", a.OwnerID)
	}
	if a.CreatedAt.Year() != 2023 {
		t.Fatalf("expected created_at 2023, got %v", a.CreatedAt)
	}

	b := accounts[1]
	if b.IsCustomer {
		t.Fatal("expected prospect")
	}
	if !b.ATR.IsZero() {
		t.Fatalf("expected zero ATR, got %s", b.ATR)
	}
	if b.OwnerID != nil {
		t.Fatalf("expected no owner, got %v", b.OwnerID)
	}
	if b.Tier != models.TierNone {
		t.Fatalf("expected no tier, got %s", b.Tier)
	}
}

func TestParseAccountsCSVRejectsBadARR(t *testing.T) {
	content := "id,name,arr\nA1,Acme,not-a-number\n"
	fh := makeMultipartFile(t, "accounts", "accounts.csv", content)

	accounts, errs := parseAccountsCSV(fh)
	if len(accounts) != 0 {
		t.Fatalf("expected no accounts, got %d", len(accounts))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
}

func TestParseAccountsCSVHeaderAliases(t *testing.T) {
	content := "account_id,account name,annual_recurring_revenue\nA1,Acme,500\n"
	fh := makeMultipartFile(t, "accounts", "accounts.csv", content)

	accounts, errs := parseAccountsCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(accounts) != 1 || accounts[0].ID != "A1" || accounts[0].ARR.String() != "500" {
		t.Fatalf("unexpected parse result: %+v", accounts)
	}
}

func TestParseRepsCSV(t *testing.T) {
	content := "rep_id,name,region,is_active,is_strategic_rep,is_renewal_specialist,team\n" +
		"R1,Jordan,EAST,true,false,true,renewals\n" +
		"R2,Sam,WEST,false,true,false,\n"
	fh := makeMultipartFile(t, "reps", "reps.csv", content)

	reps, errs := parseRepsCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(reps) != 2 {
		t.Fatalf("expected 2 reps, got %d", len(reps))
	}
	if !reps[0].IsRenewalSpecialist {
		t.Fatal("expected R1 to be a renewal specialist")
	}
	if reps[1].IsActive {
		t.Fatal("expected R2 inactive")
	}
	if !reps[1].IsStrategicRep {
		t.Fatal("expected R2 strategic")
	}
}

func TestParseRepsCSVRequiresIDAndName(t *testing.T) {
	content := "rep_id,name\nR1,\n,Sam\n"
	fh := makeMultipartFile(t, "reps", "reps.csv", content)

	reps, errs := parseRepsCSV(fh)
	if len(reps) != 0 {
		t.Fatalf("expected no reps, got %d", len(reps))
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}

func TestValidateExt(t *testing.T) {
	if !validateExt("accounts.CSV") {
		t.Fatal("expected .CSV to validate")
	}
	if validateExt("accounts.xlsx") {
		t.Fatal("expected .xlsx to be rejected")
	}
}

func makeMultipartFile(t *testing.T, fieldName, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(int64(buf.Len()))
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	files := form.File[fieldName]
	if len(files) == 0 {
		t.Fatalf("no file headers found")
	}
	return files[0]
}
