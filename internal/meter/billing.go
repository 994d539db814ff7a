package meter

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

const zeroMoney = "0.00"

// ComputeBill returns raw = consumption × rate and its 2-decimal display
// amount. Service fee and tax are always zero.
func ComputeBill(consumption, rate float64) domain.Bill {
	raw := consumption * rate
	amount := decimal.NewFromFloat(consumption).Mul(decimal.NewFromFloat(rate)).StringFixed(2)
	return domain.Bill{
		Consumption:  consumption,
		Rate:         rate,
		Raw:          raw,
		Amount:       amount,
		EnergyCharge: domain.CurrencySymbol + amount,
		ServiceFee:   domain.CurrencySymbol + zeroMoney,
		Tax:          domain.CurrencySymbol + zeroMoney,
		Currency:     domain.CurrencyCode,
	}
}

// ZeroBill is shown when no device is resolved.
func ZeroBill() domain.Bill {
	return domain.Bill{
		Amount:       zeroMoney,
		EnergyCharge: domain.CurrencySymbol + zeroMoney,
		ServiceFee:   domain.CurrencySymbol + zeroMoney,
		Tax:          domain.CurrencySymbol + zeroMoney,
		Currency:     domain.CurrencyCode,
	}
}

// ChargeAmount is the amount a payment charges for b: the displayed,
// rounded amount.
func ChargeAmount(b domain.Bill) decimal.Decimal {
	d, err := decimal.NewFromString(b.Amount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// TransactionID returns "TXN" + unix millis + 5 uppercase base-36 chars.
func TransactionID(now time.Time) string {
	var sb strings.Builder
	sb.WriteString("TXN")
	sb.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	for i := 0; i < 5; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36))))
		if err != nil {
			sb.WriteByte('0')
			continue
		}
		sb.WriteByte(base36[n.Int64()])
	}
	return sb.String()
}
