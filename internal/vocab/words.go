package vocab

import "github.com/hashicorp/go-set/v2"

// Canonical statistical operation names
const (
	StatMean              = "mean"
	StatStandardDeviation = "standardDeviation"
	StatMedian            = "median"
	StatMin               = "min"
	StatMax               = "max"
	StatMode              = "mode"
	StatSum               = "sum"
	StatCount             = "count"
	StatVariance          = "variance"
)

// StatPhrase pairs a prompt phrase with its canonical op
type StatPhrase struct {
	Phrase string
	Op     string
}

// StatPhrases is scanned in order; the first "<phrase> of" match wins
var StatPhrases = []StatPhrase{
	{"mean", StatMean},
	{"average", StatMean},
	{"avg", StatMean},
	{"standard deviation", StatStandardDeviation},
	{"std dev", StatStandardDeviation},
	{"stddev", StatStandardDeviation},
	{"std", StatStandardDeviation},
	{"median", StatMedian},
	{"min", StatMin},
	{"minimum", StatMin},
	{"max", StatMax},
	{"maximum", StatMax},
	{"sum", StatSum},
	{"count", StatCount},
	{"variance", StatVariance},
}

// StatOps is the whitelist of canonical statistical ops
var StatOps = set.From([]string{
	StatMean, StatStandardDeviation, StatMedian, StatMin, StatMax,
	StatMode, StatSum, StatCount, StatVariance,
})

// StatOpAliases accepts the loose spellings callers send to the statistics API
var StatOpAliases = map[string]string{
	"mean":               StatMean,
	"average":            StatMean,
	"avg":                StatMean,
	"standarddeviation":  StatStandardDeviation,
	"standard deviation": StatStandardDeviation,
	"std dev":            StatStandardDeviation,
	"stddev":             StatStandardDeviation,
	"std":                StatStandardDeviation,
	"median":             StatMedian,
	"min":                StatMin,
	"minimum":            StatMin,
	"max":                StatMax,
	"maximum":            StatMax,
	"mode":               StatMode,
	"sum":                StatSum,
	"total":              StatSum,
	"count":              StatCount,
	"variance":           StatVariance,
}

// FieldHints reduces a statistical field phrase to a canonical hint word
var FieldHints = map[string]string{
	"rate":       "rate",
	"rates":      "rate",
	"interest":   "rate",
	"apr":        "rate",
	"principal":  "principal",
	"principals": "principal",
	"balance":    "balance",
	"balances":   "balance",
	"amount":     "amount",
	"amounts":    "amount",
	"payment":    "payment",
	"payments":   "payment",
	"term":       "term",
	"terms":      "term",
	"maturity":   "maturity",
}

// GenericNouns are skipped when falling back to the first word of a field phrase
var GenericNouns = set.From([]string{"loan", "loans", "checking", "account", "accounts", "the", "a", "an", "all", "my", "our"})

// ActionVerbs are explicit leading intents
var ActionVerbs = []string{"show", "find", "list", "share", "calculate", "compute", "get"}

// BankingNouns imply a "show" intent when no verb leads the prompt
var BankingNouns = set.From([]string{
	"loan", "loans", "checking", "account", "accounts", "deposit", "deposits",
	"customer", "customers", "branch", "branches", "balance", "balances",
	"principal", "rate", "rates", "portfolio", "payment", "payments", "maturity", "officer",
})

// ComputationVerbs allow function-call detection on their own
var ComputationVerbs = []string{"calculate", "compute", "determine", "measure", "estimate"}

// AggregationNouns allow function-call detection when paired with find/get
var AggregationNouns = []string{"average", "mean", "total", "sum", "count", "minimum", "maximum", "standard deviation"}

// ConceptKeywords are field words recognised by keyword containment when guessing
// a condition's concept. Values are the concept emitted.
var ConceptKeywords = map[string]string{
	"rate":        "rate",
	"rates":       "rate",
	"interest":    "rate",
	"apr":         "rate",
	"principal":   "principal",
	"balance":     "balance",
	"balances":    "balance",
	"amount":      "amount",
	"outstanding": "outstanding",
	"payment":     "payment",
	"payments":    "payment",
	"term":        "term",
	"maturity":    "maturity",
	"branch":      "branch",
	"officer":     "officer",
	"type":        "type",
	"score":       "score",
	"limit":       "limit",
	"value":       "value",
}

// DateFieldWords name the date column a before/after clause applies to
var DateFieldWords = map[string]string{
	"opened":     "opened",
	"open":       "opened",
	"originated": "opened",
	"closed":     "closed",
	"close":      "closed",
	"matured":    "matured",
	"matures":    "matured",
	"maturing":   "matured",
	"due":        "matured",
}
