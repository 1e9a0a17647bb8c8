package functions

import (
	"math"
	"time"

	"github.com/project-euler/queryassist/internal/values"
	"github.com/project-euler/queryassist/internal/vocab"
)

// FinancialLibrary is the library name the loan functions register under
const FinancialLibrary = "financial"

// Clock returns the current time; injected so maturity math is testable
type Clock func() time.Time

// Financial returns the loan computations bound to the given clock
func Financial(now Clock) []Function {
	if now == nil {
		now = time.Now
	}
	return []Function{
		{
			Name:        "untilMaturity",
			Description: "Months remaining until a loan reaches its maturity date",
			Entities:    []string{vocab.EntityLoans},
			Keywords:    []string{"until maturity", "months until maturity", "time to maturity", "remaining term", "months remaining"},
			Parameters:  []Param{{Name: "maturityDate", Kind: KindDate}},
			ReturnType:  "number",
			Impl: func(a Args) (float64, error) {
				text, _ := a.Text("maturityDate")
				return float64(UntilMaturity(text, now())), nil
			},
		},
		{
			Name:        "averagePrincipal",
			Description: "Average outstanding principal over the amortized life of a loan",
			Entities:    []string{vocab.EntityLoans},
			Keywords:    []string{"average principal", "average balance", "average outstanding", "amortized principal"},
			Parameters: []Param{
				{Name: "principal", Kind: KindNumber},
				{Name: "payment", Kind: KindNumber},
				{Name: "rate", Kind: KindNumber},
				{Name: "maturityDate", Kind: KindDate},
				{Name: "termMonths", Kind: KindNumber},
			},
			ReturnType: "number",
			Impl: func(a Args) (float64, error) {
				principal, okP := a.Number("principal")
				payment, okPay := a.Number("payment")
				rate, okR := a.Number("rate")
				maturity, _ := a.Text("maturityDate")
				term, okT := a.Number("termMonths")
				return AveragePrincipal(
					optional(principal, okP), optional(payment, okPay), optional(rate, okR),
					maturity, optional(term, okT), now(),
				), nil
			},
		},
		{
			Name:        "loanProfit",
			Description: "Simple interest profit earned on a loan across its term",
			Entities:    []string{vocab.EntityLoans},
			Keywords:    []string{"profit", "loan profit", "interest income", "earnings"},
			Parameters: []Param{
				{Name: "principal", Kind: KindNumber},
				{Name: "rate", Kind: KindNumber},
				{Name: "termMonths", Kind: KindNumber},
			},
			ReturnType: "number",
			Impl: func(a Args) (float64, error) {
				principal, okP := a.Number("principal")
				rate, okR := a.Number("rate")
				term, okT := a.Number("termMonths")
				return LoanProfit(optional(principal, okP), optional(rate, okR), optional(term, okT)), nil
			},
		},
	}
}

func optional(v float64, ok bool) *float64 {
	if !ok || math.IsNaN(v) {
		return nil
	}
	return &v
}

// UntilMaturity counts calendar months from now to the maturity date, never
// below zero. Unparseable or absent dates give 0.
func UntilMaturity(maturityText string, now time.Time) int {
	if maturityText == "" {
		return 0
	}
	target, ok := values.Date(maturityText)
	if !ok {
		target, ok = values.ParseDateText(maturityText)
	}
	if !ok {
		return 0
	}
	months := (target.Year()-now.Year())*12 + int(target.Month()) - int(now.Month())
	if months < 0 {
		return 0
	}
	return months
}

// AveragePrincipal simulates level-payment amortization month by month and
// returns the mean outstanding principal, rounded to cents.
func AveragePrincipal(principal, payment, rate *float64, maturityText string, termMonths *float64, now time.Time) float64 {
	if principal == nil || *principal <= 0 {
		return 0
	}
	p := *principal

	term := 0.0
	switch {
	case termMonths != nil && *termMonths > 0:
		term = *termMonths
	case maturityText != "":
		term = float64(UntilMaturity(maturityText, now))
	}
	if term <= 0 {
		return p
	}

	monthlyRate := 0.0
	if rate != nil {
		if *rate < 1 {
			monthlyRate = *rate / 12
		} else {
			monthlyRate = *rate / 100 / 12
		}
	}

	pay := 0.0
	if payment != nil && *payment > 0 {
		pay = *payment
	} else {
		switch {
		case monthlyRate > 0:
			growth := math.Pow(1+monthlyRate, term)
			pay = p * monthlyRate * growth / (growth - 1)
		case term > 0:
			pay = p / term
		default:
			pay = p * monthlyRate * 1.1
		}
	}

	sum := 0.0
	months := 0
	for float64(months) < term && p > 0 {
		sum += p
		interest := p * monthlyRate
		reduction := math.Max(0, pay-interest)
		p = math.Max(0, p-reduction)
		months++
	}
	if months == 0 {
		return *principal
	}
	return round2(sum / float64(months))
}

// LoanProfit approximates simple interest over the term. Rates above 1 are
// percentages; the term defaults to 12 months and is clamped to [1, 360].
func LoanProfit(principal, rate, termMonths *float64) float64 {
	if principal == nil || *principal <= 0 || rate == nil {
		return 0
	}
	r := *rate
	if r > 1 {
		r /= 100
	}
	term := 12.0
	if termMonths != nil && *termMonths > 0 && !math.IsInf(*termMonths, 0) {
		term = *termMonths
	}
	term = math.Min(360, math.Max(1, term))
	return round2(*principal * r * (term / 12))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
