package risk

// Quantity sizes a long entry so that the notional plus the entry fee uses
// exactly capital×sizePct:
//
//	qty = capital×sizePct / (price×(1+feeRate))
func Quantity(capital, sizePct, price, feeRate float64) float64 {
	if capital <= 0 || sizePct <= 0 || price <= 0 {
		return 0
	}
	return capital * sizePct / (price * (1 + feeRate))
}

// Fee is the commission charged on a fill of quantity at price.
func Fee(quantity, price, feeRate float64) float64 {
	return quantity * price * feeRate
}
