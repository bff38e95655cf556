package grubhub

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/importers"
)

func receiptHTML(orderType string) string {
	return `<html><body><table><tr><td id="cellMainContent">` +
		`<table><tr><td>Your ` + orderType + ` order from   Noodle House is being prepared</td></tr></table>` +
		`<table><tr><td></td></tr></table>` +
		`<table><tr><td>Total charge    $23.45</td></tr></table>` +
		`<table><tr><td>Contact restaurant for delivery issues</td></tr></table>` +
		`<table><tr><td>Delivery (ASAP)  Jane Doe, 500 Market St, San Francisco, CA 94105 (415) 555-1234</td></tr></table>` +
		`</td></tr></table></body></html>`
}

func message(subject, html string) *api.NormalizedMessage {
	return &api.NormalizedMessage{
		Subject:    subject,
		Date:       time.Date(2021, 3, 1, 8, 15, 0, 0, time.UTC),
		HTML:       html,
		RawMessage: &api.RawMessage{ID: "gh7"},
	}
}

func TestExtract_Delivery(t *testing.T) {
	got := New().Extract(message("Your order from Noodle House", receiptHTML("delivery")))

	require.NotNil(t, got)
	assert.Equal(t, "23.45", got.Amount)
	assert.Equal(t, "Noodle House", got.VendorName)
	assert.Equal(t, "500 Market St, San Francisco, CA 94105", got.DeliveryAddress)
	assert.Equal(t, "grubhub_03012021_081500_gh7", got.Filename)
}

func TestExtract_ThousandsSeparator(t *testing.T) {
	html := strings.Replace(receiptHTML("delivery"), "$23.45", "$1,234.56", 1)
	got := New().Extract(message("Your order from Noodle House", html))

	require.NotNil(t, got)
	assert.Equal(t, "1234.56", got.Amount)
}

func TestExtract_Pickup(t *testing.T) {
	got := New().Extract(message("Your order from Noodle House", receiptHTML("pickup")))

	require.NotNil(t, got)
	assert.Equal(t, importers.PickupOrder, got.DeliveryAddress)
	assert.Equal(t, "Noodle House", got.VendorName)
}

func TestExtract_Skips(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		html    string
	}{
		{"scheduled duplicate", "Your order from Noodle House has been scheduled", receiptHTML("delivery")},
		{"no charge cell", "Your order from Noodle House", `<table><tr><td id="cellMainContent"><table><tr><td>Hello</td></tr></table></td></tr></table>`},
		{"empty body", "Your order from Noodle House", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Nil(t, New().Extract(message(tc.subject, tc.html)))
		})
	}
}
