package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/memstore"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sales"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

// Whatever the stock looks like when payment lands, confirmation either takes
// every line and completes the sale, or changes nothing at all.
func TestConfirmPaymentAllOrNothing(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		ids := []string{"p0", "p1", "p2", "p3"}
		recs := make([]inventory.Record, 0, len(ids))
		for _, id := range ids {
			recs = append(recs, inventory.Record{ProductID: id, StockQuantity: 10, UnitPriceCents: 1000, Available: true})
		}
		mem := memstore.New(recs...)
		svc := &Service{Store: mem, Locker: NewLocalLocker()}

		o, err := svc.CreateCart(ctx, alice)
		if err != nil {
			rt.Fatal(err)
		}
		want := map[string]int{}
		n := rapid.IntRange(1, len(ids)).Draw(rt, "lines")
		for _, id := range ids[:n] {
			qty := rapid.IntRange(1, 3).Draw(rt, "qty_"+id)
			want[id] = qty
			if _, err := svc.AddItem(ctx, alice, o.ID, id, qty); err != nil {
				rt.Fatal(err)
			}
		}
		if _, err := svc.InitiateCheckout(ctx, alice, o.ID, details()); err != nil {
			rt.Fatal(err)
		}

		// stok berubah antara checkout dan pembayaran
		before := map[string]int{}
		enough := true
		for _, id := range ids {
			stock := rapid.IntRange(0, 4).Draw(rt, "stock_"+id)
			before[id] = stock
			if stock < want[id] {
				enough = false
			}
			if err := mem.PutProduct(inventory.Record{ProductID: id, StockQuantity: stock, UnitPriceCents: 1000, Available: stock > 0}); err != nil {
				rt.Fatal(err)
			}
		}

		_, err = svc.ConfirmPayment(ctx, admin, o.ID, "pay")
		if enough && err != nil {
			rt.Fatalf("confirm with enough stock: %v", err)
		}
		if !enough && !errors.Is(err, inventory.ErrInsufficientStock) {
			rt.Fatalf("confirm with short stock returned %v", err)
		}

		err = mem.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			got, err := tx.Orders().Get(ctx, o.ID)
			if err != nil {
				return err
			}
			sale, err := tx.Sales().GetByOrder(ctx, o.ID)
			if err != nil {
				return err
			}
			if !sale.MirrorsOrder(got.Status) {
				return fmt.Errorf("sale %s does not mirror order %s", sale.Status, got.Status)
			}
			wantStatus, wantSale := orders.StatusPending, sales.StatusPending
			if enough {
				wantStatus, wantSale = orders.StatusPaid, sales.StatusCompleted
			}
			if got.Status != wantStatus || sale.Status != wantSale {
				return fmt.Errorf("order %s sale %s", got.Status, sale.Status)
			}
			for _, id := range ids {
				rec, err := tx.Inventory().Get(ctx, id)
				if err != nil {
					return err
				}
				expect := before[id]
				if enough {
					expect -= want[id]
				}
				if rec.StockQuantity != expect {
					return fmt.Errorf("%s stock %d, want %d", id, rec.StockQuantity, expect)
				}
				if rec.StockQuantity < 0 {
					return fmt.Errorf("%s went negative", id)
				}
			}
			return nil
		})
		if err != nil {
			rt.Fatal(err)
		}
	})
}

// Edits on anything but a cart fail and leave the order as it was.
func TestFrozenOrdersRejectEdits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		mem := memstore.New(inventory.Record{ProductID: "p0", StockQuantity: 50, UnitPriceCents: 700, Available: true})
		svc := &Service{Store: mem}

		o, err := svc.CreateCart(ctx, alice)
		if err != nil {
			rt.Fatal(err)
		}
		if _, err := svc.AddItem(ctx, alice, o.ID, "p0", 2); err != nil {
			rt.Fatal(err)
		}
		if _, err := svc.InitiateCheckout(ctx, alice, o.ID, details()); err != nil {
			rt.Fatal(err)
		}
		switch rapid.IntRange(0, 2).Draw(rt, "terminal") {
		case 1:
			_, err = svc.ConfirmPayment(ctx, admin, o.ID, "pay")
		case 2:
			_, err = svc.Cancel(ctx, alice, o.ID, "bye")
		}
		if err != nil {
			rt.Fatal(err)
		}
		snap, err := svc.GetOrder(ctx, alice, o.ID)
		if err != nil {
			rt.Fatal(err)
		}

		qty := rapid.IntRange(1, 5).Draw(rt, "qty")
		switch rapid.IntRange(0, 2).Draw(rt, "edit") {
		case 0:
			_, err = svc.AddItem(ctx, alice, o.ID, "p0", qty)
		case 1:
			_, err = svc.UpdateQuantity(ctx, alice, o.ID, "p0", qty)
		case 2:
			_, err = svc.RemoveItem(ctx, alice, o.ID, "p0")
		}
		if !errors.Is(err, orders.ErrInvalidState) {
			rt.Fatalf("edit on %s order returned %v", snap.Order.Status, err)
		}
		after, err := svc.GetOrder(ctx, alice, o.ID)
		if err != nil {
			rt.Fatal(err)
		}
		if after.Order.TotalCents != snap.Order.TotalCents || len(after.Order.Items) != len(snap.Order.Items) {
			rt.Fatalf("order changed after rejected edit")
		}
	})
}
