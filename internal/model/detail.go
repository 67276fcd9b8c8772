package model

// NotAvailable is rendered for any detail value that could not be determined.
const NotAvailable = "N/A"

// SDOInfo describes the standards development organization of a standard.
type SDOInfo struct {
	Acronym string `json:"acronym"`
	Name    string `json:"name"`
	Website string `json:"website"`
}

// StandardDetail holds the enrichment data extracted from a standard's
// detail page, merged with catalog fallbacks.
type StandardDetail struct {
	FRRecognitionNumber string  `json:"fr_recognition_number"`
	DateOfEntry         string  `json:"date_of_entry"`
	Standard            string  `json:"standard"`
	ScopeAbstract       string  `json:"scope_abstract"`
	ExtentOfRecognition string  `json:"extent_of_recognition"`
	SDO                 SDOInfo `json:"standards_development_organization"`
}

// DetailField is one labeled value in rendering order.
type DetailField struct {
	Label string
	Value string
}

// Fields returns the top-level detail values in rendering order.
func (d StandardDetail) Fields() []DetailField {
	return []DetailField{
		{Label: "FR_Recognition_Number", Value: d.FRRecognitionNumber},
		{Label: "Date_of_Entry", Value: d.DateOfEntry},
		{Label: "Standard", Value: d.Standard},
		{Label: "Scope_Abstract", Value: d.ScopeAbstract},
		{Label: "Extent_of_Recognition", Value: d.ExtentOfRecognition},
	}
}

// SDOFields returns the organization values in rendering order.
func (d StandardDetail) SDOFields() []DetailField {
	return []DetailField{
		{Label: "Acronym", Value: d.SDO.Acronym},
		{Label: "Name", Value: d.SDO.Name},
		{Label: "Website", Value: d.SDO.Website},
	}
}
