package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"orderhub/internal/marketplace"
	"orderhub/internal/model"
)

var trackingTemplates = map[string]string{
	"UPS":   "https://www.ups.com/track?loc=en_US&tracknum=%s",
	"DHL":   "https://mydhl.express.dhl/it/it/tracking.html#/results?id=%s",
	"BRT":   "https://vas.brt.it/vas/sped_det_show.hsm?chisono=%s",
	"GLS":   "https://gls-group.eu/IT/it/ricerca-pacchi?match=%s",
	"TNT":   "https://www.tnt.com/express/it_it/site/tracking.html?searchType=con&cons=%s",
	"FEDEX": "https://www.fedex.com/fedextrack/?trknbr=%s",
	"POSTE": "https://www.poste.it/cerca/index.html#/risultati-spedizioni/%s",
	"SDA":   "https://www.sda.it/wps/portal/Servizi_online/dettaglio-spedizione?locale=it&tracing.letteraVettura=%s",
}

// TrackingURL returns the public tracking page of the parcel. Unknown carriers
// yield the tracking number itself.
func TrackingURL(carrier, number string) string {
	number = strings.TrimSpace(number)
	tmpl, ok := trackingTemplates[strings.ToUpper(strings.TrimSpace(carrier))]
	if !ok {
		return number
	}
	return fmt.Sprintf(tmpl, number)
}

func SupportedCarriers() []string {
	out := make([]string, 0, len(trackingTemplates))
	for c := range trackingTemplates {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ShipmentStore is the shipment journal kept in the service database.
type ShipmentStore struct {
	db *sql.DB
}

func NewShipmentStore(db *sql.DB) *ShipmentStore {
	return &ShipmentStore{db: db}
}

func (s *ShipmentStore) Record(ctx context.Context, sh model.Shipment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shipments (id, source, order_id, carrier, tracking_number, tracking_url, shipped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sh.ID, string(sh.Source), sh.OrderID, sh.Carrier, sh.TrackingNumber, sh.TrackingURL, sh.ShippedAt)
	if err != nil {
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

func (s *ShipmentStore) List(ctx context.Context, limit int) ([]model.Shipment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, order_id, carrier, tracking_number, tracking_url, shipped_at
		FROM shipments
		ORDER BY shipped_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	var out []model.Shipment
	for rows.Next() {
		var sh model.Shipment
		var source string
		if err := rows.Scan(&sh.ID, &source, &sh.OrderID, &sh.Carrier, &sh.TrackingNumber, &sh.TrackingURL, &sh.ShippedAt); err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		sh.Source = model.Source(source)
		out = append(out, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}

var ErrNoJournal = errors.New("shipment journal not configured")

type ShippingService struct {
	ch    Channels
	store *ShipmentStore
	log   *slog.Logger
	now   func() time.Time
}

// NewShippingService accepts a nil store; shipments are then not journaled.
func NewShippingService(ch Channels, store *ShipmentStore, logger *slog.Logger) *ShippingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShippingService{ch: ch, store: store, log: logger, now: time.Now}
}

// MarkShipped confirms the shipment on the marketplace. For Magento orderID is
// the order entity id.
func (s *ShippingService) MarkShipped(ctx context.Context, source model.Source, orderID, carrier, number string) (*model.Shipment, error) {
	carrier = strings.ToUpper(strings.TrimSpace(carrier))
	t := marketplace.Tracking{Carrier: carrier, Number: strings.TrimSpace(number)}
	t.URL = TrackingURL(carrier, t.Number)

	if !s.ch.Configured(source) {
		return nil, fmt.Errorf("%s: %w", source.Key(), marketplace.ErrNotConfigured)
	}

	var err error
	switch source {
	case model.SourceBackMarket:
		err = s.ch.BackMarket.MarkShipped(ctx, orderID, t)
	case model.SourceRefurbed:
		err = s.ch.Refurbed.MarkShipped(ctx, orderID, t)
	case model.SourceCDiscount:
		err = s.ch.CDiscount.MarkShipped(ctx, orderID, t)
	case model.SourceMagento:
		err = s.ch.Magento.MarkShipped(ctx, orderID, t)
	default:
		err = marketplace.ErrUnsupported
	}
	if err != nil {
		s.log.Error("mark shipped failed", "marketplace", source.Key(), "order", orderID, "step", "mark_shipped", "error", err)
		return nil, err
	}

	sh := &model.Shipment{
		ID:             uuid.New(),
		Source:         source,
		OrderID:        orderID,
		Carrier:        carrier,
		TrackingNumber: t.Number,
		TrackingURL:    t.URL,
		ShippedAt:      s.now().UTC(),
	}
	if s.store != nil {
		if err := s.store.Record(ctx, *sh); err != nil {
			s.log.Error("failed to journal shipment", "marketplace", source.Key(), "order", orderID, "error", err)
		}
	}
	s.log.Info("order shipped", "marketplace", source.Key(), "order", orderID, "carrier", carrier, "tracking", t.Number)
	return sh, nil
}

func (s *ShippingService) ListShipments(ctx context.Context, limit int) ([]model.Shipment, error) {
	if s.store == nil {
		return nil, ErrNoJournal
	}
	return s.store.List(ctx, limit)
}
