package entity

import "fmt"

// Collection names a synced record set. The name is the local table name,
// the remote partition key and the wire name used by live changes.
type Collection string

const (
	Goods            Collection = "goods"
	Sales            Collection = "sales"
	Purchases        Collection = "purchases"
	Debtors          Collection = "debtors"
	Creditors        Collection = "creditors"
	Suppliers        Collection = "suppliers"
	CashEntries      Collection = "cashEntries"
	DailyCashRecords Collection = "dailyCashRecords"
)

// Collections lists every synced collection in hydration order.
var Collections = []Collection{
	Goods, Suppliers, Debtors, Creditors, Sales, Purchases, CashEntries, DailyCashRecords,
}

// ParseCollection validates a collection name coming from outside (HTTP path, CLI flag, remote notify).
func ParseCollection(s string) (Collection, error) {
	for _, c := range Collections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// Table returns the local table name for the collection.
func (c Collection) Table() string {
	switch c {
	case CashEntries:
		return "cash_entries"
	case DailyCashRecords:
		return "daily_cash_records"
	}
	return string(c)
}
