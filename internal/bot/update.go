package bot

// Update is one normalized incoming user interaction, already stripped
// of transport-specific framing
type Update struct {
	UserID       int64
	Username     string
	Text         string
	Document     []byte
	DocumentName string
}
