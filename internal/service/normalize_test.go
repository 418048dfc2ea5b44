package service

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderhub/internal/marketplace"
	"orderhub/internal/model"
)

func raw(t *testing.T, s string) marketplace.RawOrder {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestNormalize_MinimalOrderPerSource(t *testing.T) {
	tests := []struct {
		name    string
		source  model.Source
		payload string
		wantID  string
		wantSKU string
	}{
		{
			name:   "backmarket",
			source: model.SourceBackMarket,
			payload: `{"order_id": 555, "state": 1, "price": "100.00",
				"shipping_address": {"first_name": "Mario", "last_name": "Rossi", "email": "a@b.com",
					"street": "Via Roma 1", "city": "Milano", "postal_code": "20100", "country": "IT"},
				"orderlines": [{"serial_number": "X1", "listing_id": 98765, "product": "Phone", "price": "100.00", "quantity": 1}]}`,
			wantID:  "555",
			wantSKU: "X1",
		},
		{
			name:   "refurbed",
			source: model.SourceRefurbed,
			payload: `{"id": "R-1", "state": "NEW", "customer_email": "r@b.com", "settlement_total_paid": "50",
				"shipping_address": {"first_name": "Anna", "family_name": "Bianchi", "street_name": "Via Po", "house_no": "3",
					"town": "Torino", "post_code": "10100", "country_code": "IT"},
				"items": [{"offer_data": {"sku": "R-SKU"}, "title": "Tablet", "settlement_total_paid": "50"}]}`,
			wantID:  "R-1",
			wantSKU: "R-SKU",
		},
		{
			name:   "cdiscount",
			source: model.SourceCDiscount,
			payload: `{"orderId": "C-1", "status": "WaitingForShipmentAcceptation", "totalPrice": {"sellingPrice": 80},
				"lines": [{"offer": {"sellerProductId": "C-SKU", "productTitle": "Laptop"}, "price": {"sellingPrice": 80},
					"shippingAddress": {"firstName": "Jean", "lastName": "Dupont", "email": "c@b.com",
						"addressLine1": "Rue 1", "city": "Paris", "postalCode": "75000", "countryCode": "FR"}}]}`,
			wantID:  "C-1",
			wantSKU: "C-SKU",
		},
		{
			name:   "magento",
			source: model.SourceMagento,
			payload: `{"increment_id": "000123", "entity_id": 12, "status": "processing", "grand_total": 120,
				"customer_email": "m@b.com", "payment": {"method": "banktransfer"},
				"billing_address": {"firstname": "Luca", "lastname": "Verdi", "street": ["Via Dante 5"],
					"city": "Roma", "postcode": "00100", "country_id": "IT", "telephone": "333"},
				"items": [{"sku": "M-SKU", "name": "Watch", "qty_ordered": 1, "price": 120, "product_type": "simple"}]}`,
			wantID:  "000123",
			wantSKU: "M-SKU",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Normalize(raw(t, tt.payload), tt.source, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, o.OrderID)
			assert.Equal(t, tt.source, o.Source)
			assert.NotEmpty(t, o.CustomerEmail)
			assert.NotContains(t, o.CustomerEmail, "placeholder")
			require.Len(t, o.Items, 1)
			assert.Equal(t, tt.wantSKU, o.Items[0].SKU)
			assert.Equal(t, 1, o.Items[0].Quantity)
			assert.NotEmpty(t, o.CustomerName)
			assert.NotEmpty(t, o.City)
		})
	}
}

func TestNormalize_BackMarketFields(t *testing.T) {
	o, err := Normalize(raw(t, `{"order_id": 555, "state": 1, "price": "100.00",
		"shipping_address": {"first_name": "Mario", "last_name": "Rossi", "street": "Via Roma 1", "street2": "int 4"},
		"orderlines": [{"listing": "L-1", "listing_id": 98765, "price": "100.00", "quantity": 2}]}`),
		model.SourceBackMarket, nil)
	require.NoError(t, err)

	assert.Equal(t, "1", o.Status)
	assert.Equal(t, "Mario Rossi", o.CustomerName)
	assert.Equal(t, "Via Roma 1 int 4", o.Address)
	assert.True(t, decimal.NewFromInt(100).Equal(o.Total))
	assert.Equal(t, "L-1", o.Items[0].SKU)
	assert.Equal(t, "98765", o.Items[0].ListingID)
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestNormalize_PriceFallbackOrder(t *testing.T) {
	o, err := Normalize(raw(t, `{"id": "R-2", "email": "x@y.z",
		"items": [
			{"sku": "A", "settlement_total_paid": "0", "price": "10.5"},
			{"sku": "B", "offer": {"price": "7"}},
			{"sku": "C"}
		]}`), model.SourceRefurbed, nil)
	require.NoError(t, err)

	require.Len(t, o.Items, 3)
	assert.Equal(t, "10.5", o.Items[0].UnitPrice.String())
	assert.Equal(t, "7", o.Items[1].UnitPrice.String())
	assert.True(t, o.Items[2].UnitPrice.IsZero())
	assert.Equal(t, "NEW", o.Status)
}

func TestNormalize_PlaceholderEmail(t *testing.T) {
	o, err := Normalize(raw(t, `{"order_id": "9", "orderlines": [{"serial_number": "S"}]}`), model.SourceBackMarket, nil)
	require.NoError(t, err)
	assert.Equal(t, "backmarket_9@placeholder.local", o.CustomerEmail)
}

func TestNormalize_InvalidPayloads(t *testing.T) {
	_, err := Normalize(raw(t, `{"orderlines": [{"serial_number": "S"}]}`), model.SourceBackMarket, nil)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = Normalize(raw(t, `{"order_id": "1", "orderlines": []}`), model.SourceBackMarket, nil)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = Normalize(raw(t, `{"order_id": "1"}`), model.Source("Amazon"), nil)
	assert.Error(t, err)
}

func TestNormalize_MagentoSkipsChildAndVirtualItems(t *testing.T) {
	o, err := Normalize(raw(t, `{"increment_id": "100", "entity_id": 7, "customer_email": "m@b.com",
		"items": [
			{"item_id": 1, "sku": "CONF", "product_type": "configurable", "qty_ordered": 1, "price": 50},
			{"item_id": 2, "sku": "CHILD", "parent_item_id": 1, "qty_ordered": 1},
			{"item_id": 3, "sku": "GIFT", "product_type": "virtual", "qty_ordered": 1},
			{"item_id": 4, "sku": "PACK", "product_type": "bundle", "qty_ordered": 1}
		]}`), model.SourceMagento, nil)
	require.NoError(t, err)

	require.Len(t, o.Items, 1)
	assert.Equal(t, "CONF", o.Items[0].SKU)
	assert.Equal(t, "7", o.ExternalID)
	assert.Equal(t, "", o.PaymentMethod)
}
