package domain

// PreparedImage is a capture ready for storage and extraction.
type PreparedImage struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// CardGroup is one alphabetical bucket of the projected card view.
type CardGroup struct {
	Key   string `json:"key"`
	Cards []Card `json:"cards"`
}

// OverflowGroupKey collects cards whose name does not start with an ASCII letter.
const OverflowGroupKey = "#"
