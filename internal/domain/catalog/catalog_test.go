package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{name: "valid", item: Item{Name: "Mouse", Price: decimal.RequireFromString("29.99")}},
		{name: "free item", item: Item{Name: "Sticker", Price: decimal.Zero}},
		{name: "missing name", item: Item{Price: decimal.NewFromInt(1)}, wantErr: true},
		{name: "negative price", item: Item{Name: "Broken", Price: decimal.NewFromInt(-1)}, wantErr: true},
		{name: "trailing zeros", item: Item{Name: "Cable", Price: decimal.RequireFromString("10.5000")}},
		{name: "largest price", item: Item{Name: "Server", Price: decimal.RequireFromString("9999999999.99")}},
		{name: "sub-cent price", item: Item{Name: "Screw", Price: decimal.RequireFromString("10.005")}, wantErr: true},
		{name: "price at limit", item: Item{Name: "Yacht", Price: decimal.RequireFromString("10000000000")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidItem)
				return
			}
			require.NoError(t, err)
		})
	}
}
