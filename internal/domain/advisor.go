package domain

// ============================================================
// Financial advisor (external assistant)
// ============================================================

// AdvisorRequest is what gets sent to the advisor service: fixed system
// instructions plus a structured financial snapshot. The advisor replies
// with free text expected to contain exactly one JSON verdict object.
type AdvisorRequest struct {
	SystemInstructions string         `json:"systemInstructions"`
	Payload            AdvisorPayload `json:"payload"`
}

// AdvisorPayload is the financial snapshot for one scoring request.
type AdvisorPayload struct {
	MonthlyIncome     float64        `json:"monthlyIncome"`
	MonthlyExpenses   float64        `json:"monthlyExpenses"`
	InstallmentBurden float64        `json:"existingInstallmentBurden"`
	Savings           float64        `json:"savings"`
	PaymentType       string         `json:"paymentType"`
	Product           AdvisorProduct `json:"product"`
	Month             string         `json:"month"`
	SuggestionHistory map[Score]int  `json:"suggestionHistory,omitempty"`
}

// AdvisorProduct describes the purchase under evaluation. Zero-valued
// numeric fields mean "not submitted by the caller".
type AdvisorProduct struct {
	Name           string  `json:"name"`
	Price          float64 `json:"price,omitempty"`
	MonthlyEMI     float64 `json:"monthlyEmi,omitempty"`
	DurationMonths int     `json:"durationMonths,omitempty"`
	Category       string  `json:"category,omitempty"`
}

// AdvisorVerdict is the exact response contract expected back from the
// advisor. suggestionScore and reason are mandatory; derived values are
// advisory only and subject to policy overrides.
type AdvisorVerdict struct {
	SuggestionScore Score          `json:"suggestionScore"`
	Reason          string         `json:"reason"`
	Derived         AdvisorDerived `json:"derived"`
	Explanation     string         `json:"explanation"`
}

// AdvisorDerived is the advisor's view of the deal's numeric terms.
type AdvisorDerived struct {
	MonthlyEMI float64 `json:"monthlyEMI"`
	Duration   int     `json:"duration"`
	Price      float64 `json:"price"`
}
