package models

import (
	"fmt"
	"math"
)

// Settings - single-row shop configuration read on every completion.
type Settings struct {
	PixFee          float64 `json:"pix_fee"`
	DebitCardFee    float64 `json:"debit_card_fee"`
	CreditCardFee1x float64 `json:"credit_card_fee_1x"`
	CreditCardFee2x float64 `json:"credit_card_fee_2x"`
	CreditCardFee3x float64 `json:"credit_card_fee_3x"`
	CommissionRate  float64 `json:"commission_rate"`
}

// FeeRate returns the fraction withheld for a payment method. Installments only
// matter for credit card; other methods accept 0 or 1.
func (s Settings) FeeRate(method PaymentMethod, installments int) (float64, error) {
	if installments == 0 {
		installments = 1
	}

	switch method {
	case PaymentCash:
		if installments != 1 {
			break
		}
		return 0, nil
	case PaymentPix:
		if installments != 1 {
			break
		}
		return s.PixFee, nil
	case PaymentDebitCard:
		if installments != 1 {
			break
		}
		return s.DebitCardFee, nil
	case PaymentCreditCard:
		switch installments {
		case 1:
			return s.CreditCardFee1x, nil
		case 2:
			return s.CreditCardFee2x, nil
		case 3:
			return s.CreditCardFee3x, nil
		}
	}

	return 0, fmt.Errorf("%w: %s in %dx", ErrInvalidPayment, method, installments)
}

// Charge is the monetary breakdown stored on a history entry.
type Charge struct {
	TotalCents      int64
	FeeRate         float64
	FeeCents        int64
	NetCents        int64
	CommissionRate  float64
	CommissionCents int64
}

// Charge applies the fee for the payment method to a gross total.
func (s Settings) Charge(totalCents int64, method PaymentMethod, installments int) (Charge, error) {
	rate, err := s.FeeRate(method, installments)
	if err != nil {
		return Charge{}, err
	}

	fee := int64(math.Round(float64(totalCents) * rate))
	net := totalCents - fee

	return Charge{
		TotalCents:      totalCents,
		FeeRate:         rate,
		FeeCents:        fee,
		NetCents:        net,
		CommissionRate:  s.CommissionRate,
		CommissionCents: int64(math.Round(float64(net) * s.CommissionRate)),
	}, nil
}
