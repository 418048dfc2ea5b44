package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"orderhub/internal/model"
)

// Sender is the constant company block printed on every shipping label.
type Sender struct {
	Name    string
	Company string
	Address string
	Zip     string
	City    string
	Country string
	Phone   string
	Email   string
}

// Parcel placeholders until real weights and sizes come from the catalog.
const (
	parcelWeightKg = "0.5"
	parcelLengthCm = "20"
	parcelWidthCm  = "15"
	parcelHeightCm = "10"
)

var shippingHeader = []string{
	"sender_name", "sender_company", "sender_address", "sender_zip", "sender_city",
	"sender_country", "sender_phone", "sender_email",
	"name", "surname", "address", "zip", "city", "country", "phone", "email",
	"content", "declared_value", "weight_kg", "length_cm", "width_cm", "height_cm", "reference",
}

// ShippingCSVFilename is the download name for an export taken at t.
func ShippingCSVFilename(t time.Time) string {
	return fmt.Sprintf("shipping_orders_%s.csv", t.Format("20060102_150405"))
}

// WriteShippingCSV writes one semicolon separated row per order item.
func WriteShippingCSV(w io.Writer, orders []model.Order, sender Sender) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(shippingHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range orders {
		first, last := model.SplitName(o.CustomerName)
		for _, it := range o.Items {
			content := it.Name
			if content == "" {
				content = it.SKU
			}
			row := []string{
				sender.Name, sender.Company, sender.Address, sender.Zip, sender.City,
				sender.Country, sender.Phone, sender.Email,
				first, last, o.Address, o.PostalCode, o.City, o.Country, o.CustomerPhone, o.CustomerEmail,
				content, o.Total.StringFixed(2),
				parcelWeightKg, parcelLengthCm, parcelWidthCm, parcelHeightCm,
				fmt.Sprintf("%s-%s", o.Source, o.OrderID),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write order %s: %w", o.Key(), err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
