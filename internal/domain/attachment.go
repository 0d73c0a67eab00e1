package domain

// Attachment references a file held by the external attachment store.
// The workflow never opens or validates file contents.
type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}
