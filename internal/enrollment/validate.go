package enrollment

import (
	"fmt"
	"regexp"
)

// Columns the upload must carry per student row.
const (
	colName        = "name"
	colDOB         = "dob"
	colParentName  = "parentname"
	colParentPhone = "parentphone"
	colAddress     = "address"
)

// dobPattern checks shape only, not calendar validity.
var dobPattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// ValidRow is a normalized, accepted student row.
type ValidRow struct {
	Name        string
	DOB         string
	ParentName  string
	ParentPhone string
	Address     string
}

// ValidateRow checks required fields and the DD/MM/YYYY date shape.
// The returned error names the offending student so batch reports stay
// actionable; "Unknown" when the name itself is missing.
func ValidateRow(row Row) (ValidRow, error) {
	name := row.Get(colName)
	who := name
	if who == "" {
		who = "Unknown"
	}

	for _, col := range []string{colName, colDOB, colParentName, colAddress} {
		if row.Get(col) == "" {
			return ValidRow{}, fmt.Errorf("%s: missing required field %q", who, col)
		}
	}

	dob := row.Get(colDOB)
	if !dobPattern.MatchString(dob) {
		return ValidRow{}, fmt.Errorf("%s: date of birth %q must be DD/MM/YYYY", who, dob)
	}

	return ValidRow{
		Name:        name,
		DOB:         dob,
		ParentName:  row.Get(colParentName),
		ParentPhone: row.Get(colParentPhone),
		Address:     row.Get(colAddress),
	}, nil
}
