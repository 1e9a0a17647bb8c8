// Package testutil builds the small banking datasets the package tests share
package testutil

import (
	"time"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/state"
	"github.com/project-euler/queryassist/internal/translator"
)

// Now is the fixed clock fixtures are written against
var Now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// Clock returns Now
func Clock() time.Time { return Now }

// LoanSchema has a candidate id, a branch number and the amortization inputs
func LoanSchema() *models.Schema {
	return &models.Schema{Fields: []models.Field{
		{ID: "Portfolio", Name: "Portfolio", DataType: models.TypeString, RoleGuess: models.RoleCandidateID},
		{ID: "Branch_Number", Name: "Branch_Number", DataType: models.TypeInteger, RoleGuess: models.RoleField},
		{ID: "Principal", Name: "Principal", DataType: models.TypeCurrency, RoleGuess: models.RoleField},
		{ID: "Rate", Name: "Rate", DataType: models.TypePercentage, RoleGuess: models.RoleField},
		{ID: "Payment", Name: "Payment", DataType: models.TypeCurrency, RoleGuess: models.RoleField},
		{ID: "Maturity_Date", Name: "Maturity_Date", DataType: models.TypeDate, RoleGuess: models.RoleField},
		{ID: "Open_Date", Name: "Open_Date", DataType: models.TypeDate, RoleGuess: models.RoleField},
	}}
}

// LoanRows has two loans above 5,000 in branch 4
func LoanRows() []models.Row {
	return []models.Row{
		{"Portfolio": "P1", "Branch_Number": "4", "Principal": "$7,500.00", "Rate": "6%", "Payment": "250", "Maturity_Date": "2027-06-15", "Open_Date": "2022-01-10"},
		{"Portfolio": "P2", "Branch_Number": "4", "Principal": "$3,000.00", "Rate": "5%", "Payment": "100", "Maturity_Date": "2026-01-01", "Open_Date": "2023-03-01"},
		{"Portfolio": "P3", "Branch_Number": "2", "Principal": "$12,000.00", "Rate": "4.5%", "Payment": "400", "Maturity_Date": "2029-12-31", "Open_Date": "2024-02-20"},
		{"Portfolio": "P4", "Branch_Number": "4", "Principal": "$6,000.00", "Rate": "7%", "Payment": "", "Maturity_Date": "2025-06-15", "Open_Date": "2024-05-01"},
	}
}

// CheckingSchema has a candidate id, a branch number and a balance
func CheckingSchema() *models.Schema {
	return &models.Schema{Fields: []models.Field{
		{ID: "Portfolio", Name: "Portfolio", DataType: models.TypeString, RoleGuess: models.RoleCandidateID},
		{ID: "Branch_Number", Name: "Branch_Number", DataType: models.TypeInteger, RoleGuess: models.RoleField},
		{ID: "Balance", Name: "Balance", DataType: models.TypeCurrency, RoleGuess: models.RoleField},
		{ID: "Open_Date", Name: "Open_Date", DataType: models.TypeDate, RoleGuess: models.RoleField},
	}}
}

// CheckingRows shares P1 and P2 with LoanRows
func CheckingRows() []models.Row {
	return []models.Row{
		{"Portfolio": "P1", "Branch_Number": "4", "Balance": "1,000", "Open_Date": "2021-05-01"},
		{"Portfolio": "P2", "Branch_Number": "4", "Balance": "500", "Open_Date": "2020-07-07"},
		{"Portfolio": "P5", "Branch_Number": "4", "Balance": "5000", "Open_Date": "2024-01-15"},
		{"Portfolio": "P6", "Branch_Number": "1", "Balance": "10,000", "Open_Date": "2019-11-30"},
		{"Portfolio": "P7", "Branch_Number": "4", "Balance": "abc", "Open_Date": "not a date"},
	}
}

// BranchSchema is a two column translator dataset
func BranchSchema() *models.Schema {
	return &models.Schema{Fields: []models.Field{
		{ID: "Branch_Number", Name: "Branch_Number", DataType: models.TypeInteger, RoleGuess: models.RoleCandidateID},
		{ID: "Branch_Name", Name: "Branch_Name", DataType: models.TypeString, RoleGuess: models.RoleField},
	}}
}

// BranchRows names branches 1, 2 and 4
func BranchRows() []models.Row {
	return []models.Row{
		{"Branch_Number": "1", "Branch_Name": "Downtown"},
		{"Branch_Number": "2", "Branch_Name": "Riverside"},
		{"Branch_Number": "4", "Branch_Name": "Lakeside"},
	}
}

// Sources are the ids of a seeded store
type Sources struct {
	Loans    models.SourceMeta
	Checking models.SourceMeta
	Branches models.SourceMeta
}

// NewStore seeds a store with loans, checking accounts and branches, in that
// listing order
func NewStore() (*state.Store, Sources) {
	s := state.NewStore()
	return s, Sources{
		Loans:    s.Put("Loans", "loans.csv", LoanSchema(), LoanRows()),
		Checking: s.Put("Checking Accounts", "checking_accounts.csv", CheckingSchema(), CheckingRows()),
		Branches: s.Put("Branches", "branches.csv", BranchSchema(), BranchRows()),
	}
}

// Translators registers the branch names of BranchRows
func Translators() *translator.Registry {
	r := translator.NewRegistry()
	r.Register("branches", map[string]int{"Downtown": 1, "Riverside": 2, "Lakeside": 4}, translator.Options{
		Synonyms: []string{"branch", "location", "office"},
	})
	return r
}
