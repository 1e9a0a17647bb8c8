package vocab

import "github.com/hashicorp/go-set/v2"

// Canonical entity names
const (
	EntityLoans     = "loans"
	EntityCustomers = "customers"
	EntityChecking  = "checking"
	EntityDeposits  = "deposits"
	EntityBranches  = "branches"
)

// Entities is the whitelist of target entities, in canonical order
var Entities = []string{EntityLoans, EntityCustomers, EntityChecking, EntityDeposits, EntityBranches}

// EntitySet is Entities as a set
var EntitySet = set.From(Entities)

// EntityAliases maps every word naming an entity to its canonical form
var EntityAliases = map[string]string{
	"loan":      EntityLoans,
	"loans":     EntityLoans,
	"customer":  EntityCustomers,
	"customers": EntityCustomers,
	"checking":  EntityChecking,
	"account":   EntityChecking,
	"accounts":  EntityChecking,
	"deposit":   EntityDeposits,
	"deposits":  EntityDeposits,
	"branch":    EntityBranches,
	"branches":  EntityBranches,
}

// AliasOrder fixes iteration order over EntityAliases
var AliasOrder = []string{
	"loans", "loan", "customers", "customer", "checking", "accounts", "account",
	"deposits", "deposit", "branches", "branch",
}

// SourceMarkers are the dataset name/filename fragments that reveal which entity
// a source holds. Checked in order.
var SourceMarkers = []struct {
	Fragment string
	Entity   string
}{
	{"loan", EntityLoans},
	{"checking", EntityChecking},
	{"dda", EntityChecking},
	{"deposit", EntityDeposits},
	{"customer", EntityCustomers},
	{"branch", EntityBranches},
}
