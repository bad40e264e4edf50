package utils

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatINR renders an amount in rupees with Indian currency formatting, rounded to paise.
func FormatINR(amount decimal.Decimal) string {
	paise := amount.Shift(2).Round(0).IntPart()
	return money.New(paise, money.INR).Display()
}
