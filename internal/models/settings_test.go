package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{
		PixFee:          0.01,
		DebitCardFee:    0.02,
		CreditCardFee1x: 0.03,
		CreditCardFee2x: 0.045,
		CreditCardFee3x: 0.06,
		CommissionRate:  0.5,
	}
}

func TestSettings_FeeRate(t *testing.T) {
	s := testSettings()

	tests := []struct {
		name         string
		method       PaymentMethod
		installments int
		want         float64
	}{
		{"cash", PaymentCash, 1, 0},
		{"cash default installments", PaymentCash, 0, 0},
		{"pix", PaymentPix, 1, 0.01},
		{"debit", PaymentDebitCard, 1, 0.02},
		{"credit 1x", PaymentCreditCard, 1, 0.03},
		{"credit 2x", PaymentCreditCard, 2, 0.045},
		{"credit 3x", PaymentCreditCard, 3, 0.06},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := s.FeeRate(tt.method, tt.installments)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rate)
		})
	}
}

func TestSettings_FeeRate_Invalid(t *testing.T) {
	s := testSettings()

	for _, tc := range []struct {
		method       PaymentMethod
		installments int
	}{
		{PaymentCreditCard, 4},
		{PaymentDebitCard, 2},
		{PaymentCash, 3},
		{PaymentMethod("cheque"), 1},
	} {
		_, err := s.FeeRate(tc.method, tc.installments)
		assert.ErrorIs(t, err, ErrInvalidPayment)
	}
}

func TestSettings_Charge_CreditTwoInstallments(t *testing.T) {
	s := testSettings()

	c, err := s.Charge(4000, PaymentCreditCard, 2)

	require.NoError(t, err)
	assert.Equal(t, int64(4000), c.TotalCents)
	assert.Equal(t, int64(180), c.FeeCents)
	assert.Equal(t, int64(3820), c.NetCents)
	assert.Equal(t, int64(1910), c.CommissionCents)
}

func TestSettings_Charge_NetIsTotalMinusFee(t *testing.T) {
	s := testSettings()
	methods := map[PaymentMethod][]int{
		PaymentCash:       {1},
		PaymentPix:        {1},
		PaymentDebitCard:  {1},
		PaymentCreditCard: {1, 2, 3},
	}

	for method, installments := range methods {
		for _, n := range installments {
			rate, err := s.FeeRate(method, n)
			require.NoError(t, err)

			c, err := s.Charge(12345, method, n)
			require.NoError(t, err)
			assert.InDelta(t, 12345*rate, float64(c.FeeCents), 0.5)
			assert.Equal(t, c.TotalCents-c.FeeCents, c.NetCents)
		}
	}
}
