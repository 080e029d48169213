// Package domain defines the core interfaces and types for Kestrel.
package domain

// TransactionInput is the raw transaction submitted for fraud analysis.
// It is built once per request and never mutated afterwards.
type TransactionInput struct {
	// TransactionID keys the cached analysis result. Optional; analyses
	// without an ID are returned but not cached.
	TransactionID string `json:"transactionId,omitempty"`

	UserID   string  `json:"userId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	Location *Location   `json:"location,omitempty"`
	Device   *DeviceInfo `json:"deviceInfo,omitempty"`

	// ClientIP feeds the optional GeoIP enricher when Location is absent.
	ClientIP string `json:"clientIp,omitempty"`

	// Metadata carries free-form transaction context (description,
	// merchant, external id).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Location is a raw geolocation attached to a transaction.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DeviceInfo describes the submitting device.
type DeviceInfo struct {
	IsMobile bool `json:"is_mobile"`
	IsTor    bool `json:"is_tor"`
	IsVPN    bool `json:"is_vpn"`
}

// Description returns the free-form description from metadata, if any.
func (t *TransactionInput) Description() string {
	if t.Metadata == nil {
		return ""
	}
	s, _ := t.Metadata["description"].(string)
	return s
}

// Merchant returns the merchant name from metadata, if any.
func (t *TransactionInput) Merchant() string {
	if t.Metadata == nil {
		return ""
	}
	s, _ := t.Metadata["merchant"].(string)
	return s
}
