package model

import "time"

// Field column names shared by the listing, the catalog table, and CSV import/export.
const (
	ColDateOfEntry         = "date_of_entry"
	ColSpecialtyArea       = "specialty_task_group_area"
	ColRecognitionNumber   = "recognition_number"
	ColExtentOfRecognition = "extent_of_recognition"
	ColSDO                 = "standards_developing_organization"
	ColDesignation         = "standard_designation_number_and_date"
	ColStandardTitle       = "standard_title"
	ColTitleLink           = "title_link"
)

// Columns lists every StandardRecord field in listing order.
var Columns = []string{
	ColDateOfEntry,
	ColSpecialtyArea,
	ColRecognitionNumber,
	ColExtentOfRecognition,
	ColSDO,
	ColDesignation,
	ColStandardTitle,
	ColTitleLink,
}

// KeyColumns are the natural-key fields hashed into an Identity.
var KeyColumns = []string{ColRecognitionNumber, ColSDO, ColDesignation}

// StandardRecord is one logical row of the recognized standards listing.
// Absent values are empty strings.
type StandardRecord struct {
	DateOfEntry         string `json:"date_of_entry" yaml:"date_of_entry"`
	SpecialtyArea       string `json:"specialty_task_group_area" yaml:"specialty_task_group_area"`
	RecognitionNumber   string `json:"recognition_number" yaml:"recognition_number"`
	ExtentOfRecognition string `json:"extent_of_recognition" yaml:"extent_of_recognition"`
	SDO                 string `json:"standards_developing_organization" yaml:"standards_developing_organization"`
	Designation         string `json:"standard_designation_number_and_date" yaml:"standard_designation_number_and_date"`
	Title               string `json:"standard_title" yaml:"standard_title"`
	TitleLink           string `json:"title_link" yaml:"title_link"`
}

// Values returns the record's fields in Columns order.
func (r StandardRecord) Values() []string {
	return []string{
		r.DateOfEntry,
		r.SpecialtyArea,
		r.RecognitionNumber,
		r.ExtentOfRecognition,
		r.SDO,
		r.Designation,
		r.Title,
		r.TitleLink,
	}
}

// Set assigns the named column. Unknown columns are ignored and reported false.
func (r *StandardRecord) Set(column, value string) bool {
	switch column {
	case ColDateOfEntry:
		r.DateOfEntry = value
	case ColSpecialtyArea:
		r.SpecialtyArea = value
	case ColRecognitionNumber:
		r.RecognitionNumber = value
	case ColExtentOfRecognition:
		r.ExtentOfRecognition = value
	case ColSDO:
		r.SDO = value
	case ColDesignation:
		r.Designation = value
	case ColStandardTitle:
		r.Title = value
	case ColTitleLink:
		r.TitleLink = value
	default:
		return false
	}
	return true
}

// RecordSet is a batch of records together with the columns its source
// actually carried. A source lacking a column leaves it out of Columns.
type RecordSet struct {
	Columns []string
	Records []StandardRecord
}

// NewRecordSet wraps records produced by a source that carries every column.
func NewRecordSet(records []StandardRecord) RecordSet {
	return RecordSet{Columns: append([]string(nil), Columns...), Records: records}
}

// MissingColumns returns the entries of required absent from Columns.
func (s RecordSet) MissingColumns(required []string) []string {
	have := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		have[c] = true
	}
	var missing []string
	for _, c := range required {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// Identity is the content-derived deduplication key of a record.
type Identity string

// ProcessingState is derived from a CatalogEntry's artifact keys.
type ProcessingState string

const (
	StateUnprocessed ProcessingState = "unprocessed"
	StateComplete    ProcessingState = "complete"
)

// CatalogEntry is the persisted form of a StandardRecord. Empty artifact
// keys mean the artifact has not been stored yet.
type CatalogEntry struct {
	StandardRecord `yaml:",inline"`

	Identity             Identity  `json:"identity" yaml:"identity"`
	Bucket               string    `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	ArtifactKeyPrimary   string    `json:"artifact_key_primary,omitempty" yaml:"artifact_key_primary,omitempty"`
	ArtifactKeySecondary string    `json:"artifact_key_secondary,omitempty" yaml:"artifact_key_secondary,omitempty"`
	CreatedAt            time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" yaml:"updated_at"`
}

// State reports Complete only when both artifact keys are set.
func (e CatalogEntry) State() ProcessingState {
	if e.ArtifactKeyPrimary != "" && e.ArtifactKeySecondary != "" {
		return StateComplete
	}
	return StateUnprocessed
}

// SyncStatus summarizes the catalog's processing progress.
type SyncStatus struct {
	Total     int `json:"db_total" yaml:"db_total"`
	Processed int `json:"db_processed" yaml:"db_processed"`
	Pending   int `json:"pending" yaml:"pending"`
}
