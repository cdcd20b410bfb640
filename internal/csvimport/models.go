package csvimport

// ColumnMapping names the CSV header column that feeds each trade field.
// An empty value leaves the field unmapped.
type ColumnMapping struct {
	Ticker      string `json:"ticker"`
	Action      string `json:"action"`
	Strike      string `json:"strike"`
	ExpiredFlag string `json:"expired_flag"`
	Expiration  string `json:"expiration"`
	TradeDate   string `json:"trade_date"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	Fees        string `json:"fees"`
	Notes       string `json:"notes"`
}

// Preview is the first look at an uploaded file.
type Preview struct {
	Columns          []string            `json:"columns"`
	Rows             []map[string]string `json:"preview"`
	RowCount         int                 `json:"row_count"`
	SuggestedMapping ColumnMapping       `json:"suggested_mapping"`
}

// Config tunes preview size, error reporting and date defaults.
type Config struct {
	PreviewRows       int
	MaxReportedErrors int
	DefaultYear       int
}
