package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert.True(t, StatusComplete.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusUnknown.IsTerminal())

	assert.True(t, StatusUnknown.Valid())
	assert.False(t, Status("COMPLETE").Valid())
}

func TestPaymentValidate(t *testing.T) {
	valid := Payment{
		UserID:            "u1",
		Amount:            decimal.NewFromInt(500),
		ProviderReference: "pay_1",
		Provider:          string(ProviderIntaSend),
		Status:            StatusPending,
	}
	assert.NoError(t, valid.Validate())

	noAmount := valid
	noAmount.Amount = decimal.Zero
	assert.Error(t, noAmount.Validate())

	noRef := valid
	noRef.ProviderReference = ""
	assert.Error(t, noRef.Validate())

	badProvider := valid
	badProvider.Provider = "paypal"
	assert.Error(t, badProvider.Validate())
}

func TestLookupPlan(t *testing.T) {
	p, ok := LookupPlan("Premium")
	assert.True(t, ok)
	assert.True(t, decimal.NewFromInt(1500).Equal(p.Amount))
	assert.Equal(t, "KES", p.Currency)

	_, ok = LookupPlan("enterprise")
	assert.False(t, ok)

	all := Plans()
	assert.Len(t, all, 3)
	all[0].Name = "changed"
	assert.Equal(t, "Basic", Plans()[0].Name)
}
