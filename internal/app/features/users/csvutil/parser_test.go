package csvutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/dalemusser/mentorhub/internal/domain/models"
)

func TestParseRosterCSV_Empty(t *testing.T) {
	result, err := ParseRosterCSV(strings.NewReader(""), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Users) != 0 {
		t.Errorf("expected 0 users, got %d", len(result.Users))
	}
	if result.HasErrors() {
		t.Errorf("expected no errors, got %d", len(result.Errors))
	}
}

func TestParseRosterCSV_HeaderOnly(t *testing.T) {
	result, err := ParseRosterCSV(strings.NewReader("full_name,email,role\n"), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Users) != 0 {
		t.Errorf("expected 0 users (header only), got %d", len(result.Users))
	}
	if result.HasErrors() {
		t.Errorf("expected no errors, got %d", len(result.Errors))
	}
}

func TestParseRosterCSV_WithBOM(t *testing.T) {
	// BOM is \uFEFF at the start of the file
	csv := "\uFEFFJohn Doe,john@example.com,mentee\n"
	result, err := ParseRosterCSV(strings.NewReader(csv), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(result.Users))
	}
	if result.Users[0].FullName != "John Doe" {
		t.Errorf("BOM should be stripped: got %q, want %q", result.Users[0].FullName, "John Doe")
	}
}

func TestParseRosterCSV_ValidRows(t *testing.T) {
	csv := `full_name,email,role
John Doe,john@example.com,mentee
Jane Smith,jane@example.com,mentor
Bob Wilson,bob@example.com,org_admin,temp-pass-1`

	result, err := ParseRosterCSV(strings.NewReader(csv), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasErrors() {
		t.Fatalf("expected no errors, got %d: %v", len(result.Errors), result.Errors)
	}
	if len(result.Users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(result.Users))
	}

	if result.Users[0].Role != models.RoleMentee {
		t.Errorf("user 0 Role: got %q, want %q", result.Users[0].Role, models.RoleMentee)
	}
	if result.Users[1].Role != models.RoleMentor {
		t.Errorf("user 1 Role: got %q, want %q", result.Users[1].Role, models.RoleMentor)
	}
	if result.Users[2].TempPassword != "temp-pass-1" {
		t.Errorf("user 2 TempPassword: got %q, want %q", result.Users[2].TempPassword, "temp-pass-1")
	}
	if result.Users[0].TempPassword != "" {
		t.Errorf("user 0 should have no temp password, got %q", result.Users[0].TempPassword)
	}
}

func TestParseRosterCSV_LegacyRoleSpellings(t *testing.T) {
	csv := "Old Student,old@example.com,student\nOld Admin,admin@example.com,orgadmin\n"
	result, err := ParseRosterCSV(strings.NewReader(csv), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasErrors() {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
	if result.Users[0].Role != models.RoleMentee {
		t.Errorf("student should parse as mentee, got %q", result.Users[0].Role)
	}
	if result.Users[1].Role != models.RoleOrgAdmin {
		t.Errorf("orgadmin should parse as org_admin, got %q", result.Users[1].Role)
	}
}

func TestParseRosterCSV_RejectsOperatorRows(t *testing.T) {
	csv := "Sneaky,sneaky@example.com,platform_operator\n"
	result, err := ParseRosterCSV(strings.NewReader(csv), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Users) != 0 {
		t.Errorf("operator row must not parse, got %d users", len(result.Users))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	if result.Errors[0].Line != 1 {
		t.Errorf("error line = %d, want 1", result.Errors[0].Line)
	}
}

func TestParseRosterCSV_DuplicateEmail(t *testing.T) {
	csv := `John Doe,john@example.com,mentee
Jane Doe,JOHN@example.com,mentor`

	result, err := ParseRosterCSV(strings.NewReader(csv), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Users) != 1 {
		t.Errorf("expected 1 user, got %d", len(result.Users))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 duplicate error, got %d", len(result.Errors))
	}
	if !strings.Contains(result.Errors[0].Reason, "duplicate email") {
		t.Errorf("error reason = %q, want a duplicate email message", result.Errors[0].Reason)
	}
}

func TestParseRosterCSV_BadRows(t *testing.T) {
	csv := `No Email Row,mentee
Bad Role,bad@example.com,wizard
,blank@example.com,mentee`

	result, err := ParseRosterCSV(strings.NewReader(csv), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Users) != 0 {
		t.Errorf("expected 0 users, got %d", len(result.Users))
	}
	if len(result.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestParseRosterCSV_MaxRows(t *testing.T) {
	csv := `A One,a@example.com,mentee
B Two,b@example.com,mentee
C Three,c@example.com,mentee`

	_, err := ParseRosterCSV(strings.NewReader(csv), ParseOptions{MaxRows: 2})
	if !errors.Is(err, ErrTooManyRows) {
		t.Errorf("err = %v, want ErrTooManyRows", err)
	}
}

func TestParseRosterCSV_EmptyLinesSkipped(t *testing.T) {
	csv := "John Doe,john@example.com,mentee\n\n   ,  ,  \nJane Smith,jane@example.com,mentor\n"
	result, err := ParseRosterCSV(strings.NewReader(csv), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasErrors() {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
	if len(result.Users) != 2 {
		t.Errorf("expected 2 users, got %d", len(result.Users))
	}
}
