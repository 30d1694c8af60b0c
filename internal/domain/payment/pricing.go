package payment

// priceTiers maps a charged amount in minor currency units to credits.
var priceTiers = map[int64]int64{
	499:  10,
	999:  25,
	1999: 60,
	4999: 175,
}

// CreditsForAmount returns the credits bought by amountMinor.
func CreditsForAmount(amountMinor int64) (int64, error) {
	credits, ok := priceTiers[amountMinor]
	if !ok {
		return 0, ErrUnknownPriceTier
	}
	return credits, nil
}
