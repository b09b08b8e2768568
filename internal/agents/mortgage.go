package agents

import "math"

// Mortgage is a fixed-payment amortizing loan. Payments are monthly.
type Mortgage struct {
	Principal    float64 `json:"principal"`
	Balance      float64 `json:"balance"`
	AnnualRate   float64 `json:"annual_rate"`
	TermMonths   int     `json:"term_months"`
	Payment      float64 `json:"payment"`
	MonthsPaid   int     `json:"months_paid"`
	InterestPaid float64 `json:"interest_paid"`
}

// NewMortgage creates a loan of principal at annualRate over years.
func NewMortgage(principal, annualRate float64, years int) *Mortgage {
	n := years * 12
	if n < 1 {
		n = 1
	}
	return &Mortgage{
		Principal:  principal,
		Balance:    principal,
		AnnualRate: annualRate,
		TermMonths: n,
		Payment:    MonthlyPayment(principal, annualRate, n),
	}
}

// MonthlyPayment is the standard fixed payment B·r / (1 − (1+r)^−n) with r
// the monthly rate.
func MonthlyPayment(balance, annualRate float64, months int) float64 {
	if months <= 0 {
		return balance
	}
	r := annualRate / 12
	if r == 0 {
		return balance / float64(months)
	}
	return balance * r / (1 - math.Pow(1+r, -float64(months)))
}

// ProcessMonth accrues one month of interest and applies the payment.
// Returns the interest and principal portions paid.
func (m *Mortgage) ProcessMonth() (interest, principal float64) {
	if m.PaidOff() {
		return 0, 0
	}
	interest = m.Balance * m.AnnualRate / 12
	principal = min(m.Payment-interest, m.Balance)
	if principal < 0 {
		principal = 0
	}
	m.Balance -= principal
	if m.Balance < 1e-6 {
		m.Balance = 0
	}
	m.InterestPaid += interest
	m.MonthsPaid++
	return interest, principal
}

// PaidOff reports whether the balance is cleared.
func (m *Mortgage) PaidOff() bool { return m.Balance <= 0 }

// ProcessMortgage runs months of mortgage payments, debiting wealth by each
// full payment and crediting the interest to reported income.
func (h *Household) ProcessMortgage(months int) float64 {
	if h.Mortgage == nil {
		return 0
	}
	paid := 0.0
	for i := 0; i < months; i++ {
		interest, principal := h.Mortgage.ProcessMonth()
		payment := interest + principal
		h.Wealth = max(0, h.Wealth-payment)
		h.interestCredit += interest
		paid += payment
	}
	h.earmark = max(0, h.earmark-paid)
	h.release = 0
	return paid
}
