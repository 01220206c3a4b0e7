package models

// LineItem is a single position on an invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// InvoiceData is the structured result extracted from one uploaded document.
// It lives only for the duration of the request that produced it.
type InvoiceData struct {
	InvoiceNumber string     `json:"invoice_number"`
	Date          string     `json:"date"` // YYYY-MM-DD
	VendorName    string     `json:"vendor_name"`
	TotalAmount   float64    `json:"total_amount"`
	Currency      string     `json:"currency"` // e.g. EUR, USD
	LineItems     []LineItem `json:"line_items"`
}
