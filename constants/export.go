package constants

// ExportFormat selects the document renderer.
type ExportFormat string

const (
	ExportPDF  ExportFormat = "pdf"
	ExportHTML ExportFormat = "html"
	ExportXLSX ExportFormat = "xlsx"
)

// FileDescriptor is handed to the sharing collaborator together with the artifact.
type FileDescriptor struct {
	FileType string // uniform type identifier, e.g. ".pdf"
	MIMEType string
}

var descriptors = map[ExportFormat]FileDescriptor{
	ExportPDF:  {FileType: ".pdf", MIMEType: "application/pdf"},
	ExportHTML: {FileType: ".html", MIMEType: "text/html"},
	ExportXLSX: {FileType: ".xlsx", MIMEType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
}

// DescriptorFor returns the share descriptor for a format; ok is false for unknown formats.
func DescriptorFor(f ExportFormat) (FileDescriptor, bool) {
	d, ok := descriptors[f]
	return d, ok
}
