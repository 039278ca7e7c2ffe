package domain

// Record store keys. Each key holds one JSON document.
const (
	KeyAccounts             = "accounts"
	KeyStocks               = "stocks"
	KeyFundRecords          = "fundRecords"
	KeyAccountFunds         = "accountFunds"
	KeyBusinessTransactions = "businessTransactions"
)

// RecordStore is a synchronous key-value store of JSON documents.
// Get reports found=false (and no error) for a missing key.
type RecordStore interface {
	Get(key string, dest interface{}) (found bool, err error)
	Set(key string, value interface{}) error
	Keys() ([]string, error)
}
