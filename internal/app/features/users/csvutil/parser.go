// internal/app/features/users/csvutil/parser.go

// Package csvutil parses roster CSV uploads for bulk user creation.
package csvutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/mentorhub/internal/domain/models"
)

// ParsedUser represents a validated roster row.
type ParsedUser struct {
	FullName     string
	Email        string
	Role         models.Role
	TempPassword string // empty means the account cannot sign in until a password is set
}

// ParsedResult holds the outcome of parsing a roster CSV file.
type ParsedResult struct {
	Users  []ParsedUser
	Errors []RowError
}

// HasErrors returns true if there are any validation errors.
func (r *ParsedResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// ParseOptions controls parsing limits.
type ParseOptions struct {
	// MaxRows caps the number of data rows. Zero means no limit.
	MaxRows int
}

// ParseRosterCSV parses a roster file with the format:
//
//	full_name,email,role[,temp_password]
//
// where role is one of mentee, mentor, or org_admin (legacy spellings
// accepted). An optional header row is detected and skipped. Returns
// ErrTooManyRows when MaxRows is exceeded (when MaxRows > 0).
func ParseRosterCSV(r io.Reader, opts ParseOptions) (ParsedResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.TrimLeadingSpace = true

	var result ParsedResult
	var parseErrors []string
	lineNum := 0

	first, err := reader.Read()
	if err == io.EOF {
		return result, nil // empty file
	}
	if err != nil {
		return result, err
	}
	lineNum++

	// Handle BOM in first cell
	if len(first) > 0 {
		first[0] = strings.TrimPrefix(first[0], "\uFEFF")
	}

	isHeader := isHeaderRow(first)

	var rawRecords [][]string
	var rawLines []int
	if !isHeader {
		rawRecords = append(rawRecords, first)
		rawLines = append(rawLines, lineNum)
	}

	for {
		rec, err := reader.Read()
		lineNum++
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("line %d: %s", lineNum, err.Error()))
			continue
		}
		if len(rec) == 0 {
			continue // skip empty lines
		}
		if opts.MaxRows > 0 && len(rawRecords) >= opts.MaxRows {
			return result, ErrTooManyRows
		}
		rawRecords = append(rawRecords, rec)
		rawLines = append(rawLines, lineNum)
	}

	// If any row failed to parse at the CSV level, reject the entire file.
	if len(parseErrors) > 0 {
		for _, pe := range parseErrors {
			result.Errors = append(result.Errors, RowError{Reason: pe})
		}
		return result, nil
	}

	// Track seen emails to detect duplicates within the CSV.
	seenEmails := make(map[string]int) // lowercase email -> first line number

	for i, rec := range rawRecords {
		line := rawLines[i]

		user, rowErr := parseRow(rec, line)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		if user == nil {
			continue // completely empty row
		}

		emailLower := strings.ToLower(user.Email)
		if firstLine, seen := seenEmails[emailLower]; seen {
			result.Errors = append(result.Errors, RowError{
				Line:   line,
				Reason: fmt.Sprintf("duplicate email (first appears on line %d)", firstLine),
				Raw:    rec,
			})
			continue
		}
		seenEmails[emailLower] = line

		result.Users = append(result.Users, *user)
	}

	return result, nil
}

// isHeaderRow checks whether a row is a header by examining its cells.
// A row counts as a header when the first column is a name-like header word
// or the third column is a role header word rather than a role value.
func isHeaderRow(rec []string) bool {
	if len(rec) < 2 {
		return false
	}

	c0 := strings.ToLower(strings.TrimSpace(rec[0]))
	for _, hw := range []string{"full_name", "fullname", "full name", "name"} {
		if c0 == hw {
			return true
		}
	}

	if len(rec) >= 3 {
		c2 := strings.ToLower(strings.TrimSpace(rec[2]))
		if c2 == "role" || c2 == "user_role" || c2 == "type" {
			return true
		}
	}
	return false
}

// parseRow parses a single CSV row. Returns nil, nil for rows that should
// be skipped silently (all cells empty).
func parseRow(rec []string, line int) (*ParsedUser, *RowError) {
	if len(rec) == 0 {
		return nil, nil
	}

	fields := make([]string, len(rec))
	empty := true
	for i, f := range rec {
		fields[i] = strings.TrimSpace(f)
		if fields[i] != "" {
			empty = false
		}
	}
	if empty {
		return nil, nil
	}

	if len(fields) < 3 {
		return nil, &RowError{
			Line:   line,
			Reason: "expected full_name,email,role with an optional temp_password",
			Raw:    rec,
		}
	}

	name, email, roleRaw := fields[0], fields[1], fields[2]
	if name == "" {
		return nil, &RowError{Line: line, Reason: "full_name is required", Raw: rec}
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, &RowError{Line: line, Reason: "email is missing or not an email address", Raw: rec}
	}

	role := models.ParseRole(roleRaw)
	if role == models.RoleUnknown {
		return nil, &RowError{
			Line:   line,
			Reason: fmt.Sprintf("unknown role %q (want mentee, mentor, or org_admin)", roleRaw),
			Raw:    rec,
		}
	}
	if role == models.RolePlatformOperator {
		return nil, &RowError{
			Line:   line,
			Reason: "platform operators cannot be created by CSV import",
			Raw:    rec,
		}
	}

	u := &ParsedUser{FullName: name, Email: email, Role: role}
	if len(fields) >= 4 {
		u.TempPassword = fields[3]
	}
	return u, nil
}
