package model

// Fallback text used when a page has no usable title or meta description.
const (
	NoTitle       = "No Title Found"
	NoDescription = "No Description Found"
)

// ResultColumns is the column order shared by every tabular rendering of
// result rows.
var ResultColumns = []string{"URL", "TITLE", "DESCRIPTION", "KEYWORD"}

// ResultRow is one scraped URL with its page metadata and the generated
// keyword whose search returned it.
type ResultRow struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Keyword     string `json:"keyword"`
}

// NewResultRow builds a row, substituting the fallback text for a blank
// title or description.
func NewResultRow(url, title, description, keyword string) ResultRow {
	if title == "" {
		title = NoTitle
	}
	if description == "" {
		description = NoDescription
	}
	return ResultRow{
		URL:         url,
		Title:       title,
		Description: description,
		Keyword:     keyword,
	}
}

// Record returns the row's fields in ResultColumns order.
func (r ResultRow) Record() []string {
	return []string{r.URL, r.Title, r.Description, r.Keyword}
}
