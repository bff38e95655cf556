package instacart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/importers"
)

func message(subject, html, text string) *api.NormalizedMessage {
	return &api.NormalizedMessage{
		Subject:    subject,
		Date:       time.Date(2021, 4, 2, 17, 0, 0, 0, time.UTC),
		HTML:       html,
		Text:       text,
		RawMessage: &api.RawMessage{ID: "ic1"},
	}
}

func TestExtract_ChargeTable(t *testing.T) {
	html := `<div class="DriverDeliverySchedule">Delivered today</div>` +
		`<div class="DriverDeliverySchedule">Your order from Green Grocer was placed</div>` +
		`<table><tr><td class="charge-type">Subtotal</td><td class="amount">$40.00</td></tr>` +
		`<tr><td class="charge-type">Total Charged</td><td class="amount"> $1,045.67 </td></tr></table>`

	got := New().Extract(message("Your Instacart receipt", html, ""))

	require.NotNil(t, got)
	assert.Equal(t, "1045.67", got.Amount)
	assert.Equal(t, "Green Grocer", got.VendorName)
	assert.Equal(t, importers.Unknown, got.DeliveryAddress)
	assert.Equal(t, "instacart_04022021_170000_ic1", got.Filename)
}

func TestExtract_PlaintextFallback(t *testing.T) {
	got := New().Extract(message("Your order from Cafe X was placed", "<p>thanks</p>", "Total Charged $12.34"))

	require.NotNil(t, got)
	assert.Equal(t, "12.34", got.Amount)
	assert.Equal(t, "Cafe X", got.VendorName)
	assert.Equal(t, importers.Unknown, got.DeliveryAddress)
}

func TestExtract_NoAmount(t *testing.T) {
	assert.Nil(t, New().Extract(message("Your order from Cafe X was placed", "<p>thanks</p>", "")))
}
