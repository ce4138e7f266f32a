package constants

// ExtractionStatus is the canonical status of the displayed scan.
type ExtractionStatus string

// Stable values (these exact strings are stored in scan history).
const (
	StatusIdle       ExtractionStatus = "IDLE"       // nothing scanned yet
	StatusExtracting ExtractionStatus = "EXTRACTING" // OCR run in progress
	StatusSucceeded  ExtractionStatus = "SUCCEEDED"  // text recognized
	StatusFailed     ExtractionStatus = "FAILED"     // terminal failure for the run
)

// User-visible status strings shown in place of recognized text.
const (
	ExtractingMessage       = "Extracting..."
	ExtractionFailedMessage = "Error extracting text"
	CameraDeniedMessage     = "Permission to access camera is required!"
	GalleryDeniedMessage    = "Permission to access gallery is required!"
	ExportFailedMessage     = "Error exporting document"
	NothingToExportMessage  = "There is no text to export yet"
)

// DefaultLanguage is the fixed OCR working language.
const DefaultLanguage = "eng"
