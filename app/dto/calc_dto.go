package dto

// ElectricityCalcRequest represents an electricity consumption record to compute.
// UserID is filled from the authenticated principal, never from the body.
type ElectricityCalcRequest struct {
	UserID             string   `json:"-"`
	Kwh                float64  `json:"kwh" validate:"gte=0" example:"125.5"`
	Country            string   `json:"country" validate:"omitempty,max=8" example:"CL"`
	Period             string   `json:"period" validate:"required" example:"2025-09"`
	IdempotencyKey     string   `json:"idempotencyKey" validate:"omitempty,max=255"`
	SelectedAppliances []string `json:"selectedAppliances,omitempty"`
	Career             string   `json:"career,omitempty"`
	Schedule           string   `json:"schedule,omitempty"`
}

// TransportCalcRequest represents a trip to compute.
type TransportCalcRequest struct {
	UserID             string   `json:"-"`
	Distance           float64  `json:"distance" validate:"gte=0" example:"10"`
	TransportMode      string   `json:"transportMode" validate:"required" example:"car"`
	FuelType           *string  `json:"fuelType,omitempty" example:"gasoline"`
	Occupancy          *int     `json:"occupancy,omitempty" example:"4"`
	Country            string   `json:"country" validate:"omitempty,max=8" example:"CL"`
	Period             string   `json:"period" validate:"required" example:"2025-09"`
	IdempotencyKey     string   `json:"idempotencyKey" validate:"omitempty,max=255"`
	OriginLat          *float64 `json:"originLat,omitempty"`
	OriginLng          *float64 `json:"originLng,omitempty"`
	DestinationLat     *float64 `json:"destinationLat,omitempty"`
	DestinationLng     *float64 `json:"destinationLng,omitempty"`
	OriginAddress      *string  `json:"originAddress,omitempty"`
	DestinationAddress *string  `json:"destinationAddress,omitempty"`
}

// CalcResultResponse is returned by both compute endpoints.
type CalcResultResponse struct {
	CalculationID string  `json:"calcId"`
	ResultKgCO2e  float64 `json:"kgCO2e"`
	FactorHash    string  `json:"factorHash"`
}

// CalcHistoryRequest represents history query parameters.
// Page is 0-based. CreatedFrom/CreatedTo are RFC3339 or YYYY-MM-DD.
type CalcHistoryRequest struct {
	UserID      string `json:"-"`
	Page        int    `query:"page" validate:"gte=0"`
	PageSize    int    `query:"pageSize" validate:"gte=0"`
	Category    string `query:"category" validate:"omitempty,oneof=electricity transport"`
	CreatedFrom string `query:"from"`
	CreatedTo   string `query:"to"`
}

// FactorInfo is the factor applied to a history item, taken from its audit snapshot.
type FactorInfo struct {
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Subcategory *string `json:"subcategory,omitempty"`
}

// CalcHistoryItem represents one computed record in history.
type CalcHistoryItem struct {
	ID           string         `json:"id"`
	Category     string         `json:"category"`
	Subcategory  string         `json:"subcategory"`
	InputEcho    map[string]any `json:"inputEcho"`
	ResultKgCO2e float64        `json:"resultKgCO2e"`
	FactorInfo   *FactorInfo    `json:"factorInfo,omitempty"`
	CreatedAt    string         `json:"createdAt"`
}

// CalcHistoryResponse is a page of history items.
type CalcHistoryResponse struct {
	Items    []CalcHistoryItem `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// ResolveFactorRequest asks which factor the resolver would apply.
type ResolveFactorRequest struct {
	Category    string  `query:"category" validate:"required,oneof=electricity transport"`
	Subcategory *string `query:"-"`
	Country     string  `query:"country" validate:"omitempty,max=8"`
	Period      string  `query:"period" validate:"required"`
}

// ResolveFactorResponse describes the selected factor.
type ResolveFactorResponse struct {
	Category    string  `json:"category"`
	Subcategory *string `json:"subcategory,omitempty"`
	Country     *string `json:"country,omitempty"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Hash        string  `json:"hash"`
	SourceID    string  `json:"sourceId"`
	ValidFrom   string  `json:"validFrom"`
	ValidTo     *string `json:"validTo,omitempty"`
}

// SeedCatalogResponse reports the outcome of a catalog bootstrap.
type SeedCatalogResponse struct {
	Inserted []string `json:"inserted"`
	Skipped  []string `json:"skipped"`
}
