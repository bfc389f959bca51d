package domain

// Note is the structured result of polishing a transcript.
type Note struct {
	Markdown string `json:"markdown"`
	Title    string `json:"title"`
	FileName string `json:"file_name"`
}

// IsEmpty reports whether the polisher returned no fields at all.
func (n *Note) IsEmpty() bool {
	return n.Markdown == "" && n.Title == "" && n.FileName == ""
}
