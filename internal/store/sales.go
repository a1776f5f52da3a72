package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"

	"ticket-sales/internal/status"
	"ticket-sales/models"
)

type saleRow struct {
	ID               string          `db:"id"`
	EventID          string          `db:"event_id"`
	BuyerName        string          `db:"buyer_name"`
	BuyerEmail       string          `db:"buyer_email"`
	BuyerPhone       string          `db:"buyer_phone"`
	Subtotal         decimal.Decimal `db:"subtotal"`
	Tax              decimal.Decimal `db:"tax"`
	Total            decimal.Decimal `db:"total"`
	TotalAmount      int64           `db:"total_amount"`
	Currency         string          `db:"currency"`
	Status           string          `db:"status"`
	PaymentStatus    string          `db:"payment_status"`
	ExpiresAt        sql.NullInt64   `db:"expires_at"`
	PaymentProvider  string          `db:"payment_provider"`
	PaymentReference string          `db:"payment_reference"`
	PaymentID        string          `db:"payment_id"`
	PaidAt           sql.NullInt64   `db:"paid_at"`
	CreatedAt        int64           `db:"created_at"`
	UpdatedAt        int64           `db:"updated_at"`
}

func (r saleRow) toModel() *models.Sale {
	return &models.Sale{
		ID:      r.ID,
		EventID: r.EventID,
		Buyer: models.Buyer{
			Name:  r.BuyerName,
			Email: r.BuyerEmail,
			Phone: r.BuyerPhone,
		},
		Subtotal:         r.Subtotal,
		Tax:              r.Tax,
		Total:            r.Total,
		TotalAmount:      r.TotalAmount,
		Currency:         r.Currency,
		Status:           models.SaleStatus(r.Status),
		PaymentStatus:    models.PaymentStatus(r.PaymentStatus),
		ExpiresAt:        fromNullMillis(r.ExpiresAt),
		PaymentProvider:  r.PaymentProvider,
		PaymentReference: r.PaymentReference,
		PaymentID:        r.PaymentID,
		PaidAt:           fromNullMillis(r.PaidAt),
		CreatedAt:        fromMillis(r.CreatedAt),
		UpdatedAt:        fromMillis(r.UpdatedAt),
	}
}

type saleItemRow struct {
	ID             string          `db:"id"`
	SaleID         string          `db:"sale_id"`
	TicketTypeID   string          `db:"ticket_type_id"`
	TicketTypeName string          `db:"ticket_type_name"`
	Quantity       int             `db:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price"`
	IsTable        bool            `db:"is_table"`
	SeatsPerTable  int             `db:"seats_per_table"`
	TableNumber    int             `db:"table_number"`
}

func (r saleItemRow) toModel() models.SaleItem {
	return models.SaleItem{
		ID:             r.ID,
		SaleID:         r.SaleID,
		TicketTypeID:   r.TicketTypeID,
		TicketTypeName: r.TicketTypeName,
		Quantity:       r.Quantity,
		UnitPrice:      r.UnitPrice,
		IsTable:        r.IsTable,
		SeatsPerTable:  r.SeatsPerTable,
		TableNumber:    r.TableNumber,
	}
}

const saleColumns = `id, event_id, buyer_name, buyer_email, buyer_phone, subtotal, tax, total,
	total_amount, currency, status, payment_status, expires_at, payment_provider,
	payment_reference, payment_id, paid_at, created_at, updated_at`

// InsertSale persists a sale together with its items.
func (s *Store) InsertSale(ctx context.Context, sale *models.Sale) error {
	now := time.Now()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now

	_, err := s.db.Insert("sales", dbx.Params{
		"id":                sale.ID,
		"event_id":          sale.EventID,
		"buyer_name":        sale.Buyer.Name,
		"buyer_email":       sale.Buyer.Email,
		"buyer_phone":       sale.Buyer.Phone,
		"subtotal":          sale.Subtotal,
		"tax":               sale.Tax,
		"total":             sale.Total,
		"total_amount":      sale.TotalAmount,
		"currency":          sale.Currency,
		"status":            string(sale.Status),
		"payment_status":    string(sale.PaymentStatus),
		"expires_at":        nullMillis(sale.ExpiresAt),
		"payment_provider":  sale.PaymentProvider,
		"payment_reference": sale.PaymentReference,
		"payment_id":        sale.PaymentID,
		"paid_at":           nullMillis(sale.PaidAt),
		"created_at":        toMillis(sale.CreatedAt),
		"updated_at":        toMillis(sale.UpdatedAt),
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("InsertSale: sales: %w", err)
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		_, err := s.db.Insert("sale_items", dbx.Params{
			"id":              item.ID,
			"sale_id":         item.SaleID,
			"ticket_type_id":  item.TicketTypeID,
			"quantity":        item.Quantity,
			"unit_price":      item.UnitPrice,
			"is_table":        item.IsTable,
			"seats_per_table": item.SeatsPerTable,
			"table_number":    item.TableNumber,
		}).WithContext(ctx).Execute()
		if err != nil {
			return fmt.Errorf("InsertSale: sale_items: %w", err)
		}
	}
	return nil
}

// GetSale loads a sale and its items.
func (s *Store) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	return s.findSale(ctx, "id = {:id}", dbx.Params{"id": id}, id)
}

// FindSaleByReference resolves a gateway reference to a sale. The stored
// payment reference wins over a sale id that happens to match.
func (s *Store) FindSaleByReference(ctx context.Context, ref string) (*models.Sale, error) {
	if ref == "" {
		return nil, status.Invalid("empty payment reference")
	}
	sale, err := s.findSale(ctx, "payment_reference = {:ref}", dbx.Params{"ref": ref}, ref)
	if errors.Is(err, status.ErrNotFound) {
		return s.GetSale(ctx, ref)
	}
	return sale, err
}

// LockSale write-locks the sale row for the rest of the transaction and
// returns its current state.
func (s *Store) LockSale(ctx context.Context, id string) (*models.Sale, error) {
	n, err := s.touchRows(ctx, "sales", []string{id})
	if err != nil {
		return nil, fmt.Errorf("LockSale: %w", err)
	}
	if n == 0 {
		return nil, status.NotFound("sale", id)
	}
	return s.GetSale(ctx, id)
}

func (s *Store) findSale(ctx context.Context, where string, params dbx.Params, key string) (*models.Sale, error) {
	var row saleRow
	err := s.db.NewQuery("SELECT " + saleColumns + " FROM sales WHERE " + where + " LIMIT 1").
		Bind(params).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.NotFound("sale", key)
	}
	if err != nil {
		return nil, fmt.Errorf("findSale: %w", err)
	}

	sale := row.toModel()
	if sale.Items, err = s.listSaleItems(ctx, sale.ID); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) listSaleItems(ctx context.Context, saleID string) ([]models.SaleItem, error) {
	var rows []saleItemRow
	err := s.db.NewQuery(`
		SELECT si.id, si.sale_id, si.ticket_type_id, tt.name AS ticket_type_name, si.quantity,
		       si.unit_price, si.is_table, si.seats_per_table, si.table_number
		FROM sale_items si
		JOIN ticket_types tt ON tt.id = si.ticket_type_id
		WHERE si.sale_id = {:sale}
		ORDER BY si.id`).
		Bind(dbx.Params{"sale": saleID}).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("listSaleItems: %w", err)
	}
	items := make([]models.SaleItem, len(rows))
	for i, r := range rows {
		items[i] = r.toModel()
	}
	return items, nil
}

// SaleUpdate lists the sale columns a state transition may change.
type SaleUpdate struct {
	Status           *models.SaleStatus
	PaymentStatus    *models.PaymentStatus
	PaymentProvider  *string
	PaymentReference *string
	PaymentID        *string
	PaidAt           *time.Time
}

func (u SaleUpdate) params() dbx.Params {
	p := dbx.Params{"updated_at": toMillis(time.Now())}
	if u.Status != nil {
		p["status"] = string(*u.Status)
	}
	if u.PaymentStatus != nil {
		p["payment_status"] = string(*u.PaymentStatus)
	}
	if u.PaymentProvider != nil {
		p["payment_provider"] = *u.PaymentProvider
	}
	if u.PaymentReference != nil {
		p["payment_reference"] = *u.PaymentReference
	}
	if u.PaymentID != nil {
		p["payment_id"] = *u.PaymentID
	}
	if u.PaidAt != nil {
		p["paid_at"] = toMillis(*u.PaidAt)
	}
	return p
}

func (s *Store) UpdateSale(ctx context.Context, id string, u SaleUpdate) error {
	res, err := s.db.Update("sales", u.params(), dbx.HashExp{"id": id}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("UpdateSale: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.NotFound("sale", id)
	}
	return nil
}

// ExpireStale cancels every never-paid sale whose hold ended before now.
// The payment_status predicate keeps it from touching a sale that a
// concurrent fulfillment already moved to PAID.
func (s *Store) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.NewQuery(`
		UPDATE sales
		SET status = {:cancelled}, payment_status = {:expired}, updated_at = {:now}
		WHERE status = {:pending}
		  AND payment_status = {:paymentPending}
		  AND expires_at IS NOT NULL
		  AND expires_at < {:now}`).
		Bind(dbx.Params{
			"cancelled":      string(models.SaleCancelled),
			"expired":        string(models.PaymentExpired),
			"pending":        string(models.SalePending),
			"paymentPending": string(models.PaymentPending),
			"now":            toMillis(now),
		}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("ExpireStale: %w", err)
	}
	return res.RowsAffected()
}

// CountExpirable counts the sales ExpireStale would transition.
func (s *Store) CountExpirable(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.db.NewQuery(`
		SELECT COUNT(*) FROM sales
		WHERE status = {:pending}
		  AND payment_status = {:paymentPending}
		  AND expires_at IS NOT NULL
		  AND expires_at < {:now}`).
		Bind(dbx.Params{
			"pending":        string(models.SalePending),
			"paymentPending": string(models.PaymentPending),
			"now":            toMillis(now),
		}).
		WithContext(ctx).
		Row(&count)
	if err != nil {
		return 0, fmt.Errorf("CountExpirable: %w", err)
	}
	return count, nil
}

// CountLivePending counts sales currently holding inventory.
func (s *Store) CountLivePending(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.db.NewQuery(`
		SELECT COUNT(*) FROM sales
		WHERE status = {:pending} AND (expires_at IS NULL OR expires_at > {:now})`).
		Bind(dbx.Params{"pending": string(models.SalePending), "now": toMillis(now)}).
		WithContext(ctx).
		Row(&count)
	if err != nil {
		return 0, fmt.Errorf("CountLivePending: %w", err)
	}
	return count, nil
}

// TableHeld reports whether a table of a ticket type is already sold or held
// by a live pending sale.
func (s *Store) TableHeld(ctx context.Context, ticketTypeID string, tableNumber int, now time.Time) (bool, error) {
	var count int
	err := s.db.NewQuery(`
		SELECT COUNT(*)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE si.ticket_type_id = {:tt}
		  AND si.table_number = {:table}
		  AND (s.status = {:completed}
		       OR (s.status = {:pending} AND (s.expires_at IS NULL OR s.expires_at > {:now})))`).
		Bind(dbx.Params{
			"tt":        ticketTypeID,
			"table":     tableNumber,
			"completed": string(models.SaleCompleted),
			"pending":   string(models.SalePending),
			"now":       toMillis(now),
		}).
		WithContext(ctx).
		Row(&count)
	if err != nil {
		return false, fmt.Errorf("TableHeld: %w", err)
	}
	return count > 0, nil
}
