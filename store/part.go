package store

// Part is one row of the parts catalog.
type Part struct {
	UID                    string   `json:"uid"`
	Name                   string   `json:"name"`
	ManufacturerPartNumber string   `json:"manufacturer_part_number"`
	PartNumber             string   `json:"part_number"`
	Brand                  string   `json:"brand"`
	ApplianceType          string   `json:"appliance_type"`
	CurrentPrice           float64  `json:"current_price"`
	OriginalPrice          float64  `json:"original_price"`
	HasDiscount            bool     `json:"has_discount"`
	Rating                 *float64 `json:"rating,omitempty"`
	ReviewCount            int      `json:"review_count"`
	Description            string   `json:"description,omitempty"`
	Symptoms               string   `json:"symptoms,omitempty"`
	InstallationDifficulty string   `json:"installation_difficulty,omitempty"`
	InstallationTime       string   `json:"installation_time,omitempty"`
	Availability           string   `json:"availability,omitempty"`
	ImageURL               string   `json:"image_url,omitempty"`
	VideoURL               string   `json:"video_url,omitempty"`
	ProductURL             string   `json:"product_url,omitempty"`
}

// FindPart filters part lookups. Nil fields are ignored.
type FindPart struct {
	UID        *string
	PartNumber *string
	// Search matches against name, part numbers, and symptoms.
	Search *string
	Limit  int
}
