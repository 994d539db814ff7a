package domain

// ============================================================
// Bill
// ============================================================

// Currency symbols used on the bill and in payment records.
const (
	CurrencySymbol = "₱"
	CurrencyCode   = "PHP"
)

// Bill is derived from the cumulative reading: raw = consumption × rate.
// Amount is the 2-decimal display string and is also what gets charged.
type Bill struct {
	Consumption  float64 `json:"consumption"`
	Rate         float64 `json:"rate"`
	Raw          float64 `json:"raw"`
	Amount       string  `json:"amount"`
	EnergyCharge string  `json:"energyCharge"`
	ServiceFee   string  `json:"serviceFee"`
	Tax          string  `json:"tax"`
	Currency     string  `json:"currency"`
}

// ============================================================
// Payment
// ============================================================

// Payment record constants.
const (
	PaymentStatusCompleted = "completed"
	PaymentMethodCard      = "credit_card"
	PaymentDescription     = "Electricity bill payment (Raw Amount)"
	MsgNoAmountToPay       = "No amount to pay or invalid amount"
)

// PaymentRequest is the body of POST /v1/payments. Amount is the bill
// amount the client displayed and confirmed.
type PaymentRequest struct {
	Amount string `json:"amount"`
}

// Payment is appended under payments/<uid>.
type Payment struct {
	ID            string  `json:"id,omitempty"`
	UserID        string  `json:"userId"`
	UserEmail     string  `json:"userEmail"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Timestamp     int64   `json:"timestamp"`
	Date          string  `json:"date"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"paymentMethod"`
	TransactionID string  `json:"transactionId"`
	Description   string  `json:"description"`
}

// PaymentResponse is returned by POST /v1/payments.
type PaymentResponse struct {
	Payment Payment `json:"payment"`
	Message string  `json:"message"`
	Bill    Bill    `json:"bill"`
}
