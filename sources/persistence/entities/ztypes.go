package entities

const (
	PaymentProviderDemo = "demo"
)

const MonthLayout = "2006-01"
