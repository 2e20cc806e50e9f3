package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		price, discount, want float64
	}{
		{200, 5, 190},
		{275, 5, 261.25},
		{350, 0, 350},
		{99.99, 33, 66.99},
		{120, 100, 0},
	}

	for _, tt := range tests {
		p := Product{Price: tt.price, DiscountPercentage: tt.discount}
		assert.Equal(t, tt.want, p.FinalPrice(), "%v at %v%%", tt.price, tt.discount)
	}
}

func TestDefaultProductsAreFresh(t *testing.T) {
	a := DefaultProducts()
	a[0].Name = "changed"

	b := DefaultProducts()
	require.Len(t, b, 3)
	assert.Equal(t, "Lavender Bliss Signature", b[0].Name)
}

func TestPublicViewHidesPasscode(t *testing.T) {
	cfg := DefaultSiteConfig()
	public := cfg.PublicView()

	assert.Empty(t, public.MasterPasscode)
	assert.Equal(t, "552008", cfg.MasterPasscode, "source config untouched")

	data, err := json.Marshal(public)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "552008")
}

func TestViews(t *testing.T) {
	for _, v := range []View{ViewAdmin, ViewMonitor, ViewAILab} {
		assert.True(t, v.Protected(), v)
	}
	assert.False(t, ViewShowcase.Protected())
	assert.False(t, ViewLocked.Protected())

	v, err := ParseView("ai_lab")
	require.NoError(t, err)
	assert.Equal(t, ViewAILab, v)

	_, err = ParseView("locked")
	assert.Error(t, err, "the locked view is never a navigation target")
	_, err = ParseView("Admin")
	assert.Error(t, err)
}

func TestVisitorLogOmitsUnreported(t *testing.T) {
	data, err := json.Marshal(VisitorLog{IP: "203.0.113.42", Timestamp: "2026-01-01T00:00:00Z"})
	require.NoError(t, err)

	assert.NotContains(t, string(data), "cores")
	assert.NotContains(t, string(data), "latitude")
	assert.Contains(t, string(data), `"ip":"203.0.113.42"`)
}
