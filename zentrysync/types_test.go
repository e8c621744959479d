package zentrysync_test

import (
	"testing"

	"github.com/mmdatafocus/factory_backend/zentrysync"
)

func TestNormalizeModulesForcesMasterData(t *testing.T) {
	mod := zentrysync.NormalizeModules(zentrysync.SyncModules{Invoices: true})
	if !mod.Customers || !mod.Vendors || !mod.Items {
		t.Errorf("master-data modules must stay on: %+v", mod)
	}
	if !mod.Invoices || mod.Bills || mod.PurchaseOrders {
		t.Errorf("other modules changed: %+v", mod)
	}
}

func TestDecodeModulesFallsBackToDefaults(t *testing.T) {
	if got := zentrysync.DecodeModules(nil); got != zentrysync.DefaultModules() {
		t.Errorf("empty input: %+v", got)
	}
	if got := zentrysync.DecodeModules([]byte("{broken")); got != zentrysync.DefaultModules() {
		t.Errorf("malformed input: %+v", got)
	}

	got := zentrysync.DecodeModules([]byte(`{"customers":false,"salesOrders":true}`))
	if !got.Customers {
		t.Error("decode must normalize master data back on")
	}
	if !got.SalesOrders {
		t.Error("explicit module flag lost")
	}
}

func TestModulesEnabled(t *testing.T) {
	mod := zentrysync.DefaultModules()
	if !mod.Enabled(zentrysync.EntityCustomer) || !mod.Enabled(zentrysync.EntityBill) {
		t.Error("default modules should cover customers and bills")
	}
	if mod.Enabled(zentrysync.EntitySalesOrder) || mod.Enabled(zentrysync.EntityInventoryAdjustment) {
		t.Error("optional modules should default off")
	}
	if mod.Enabled("unknownType") {
		t.Error("unknown entity types are never enabled")
	}
}

func TestDecodeCursorStateRoundTrip(t *testing.T) {
	state := zentrysync.CursorState{
		zentrysync.EntityCustomer: {PushedSince: "2026-02-01T00:00:00Z", PulledSince: "2026-02-01T00:00:00Z", Page: 1},
		zentrysync.EntityInvoice:  {PushedSince: "2026-02-01T00:00:00Z", Page: 3},
	}
	decoded := zentrysync.DecodeCursorState(zentrysync.EncodeCursorState(state))
	if len(decoded) != 2 {
		t.Fatalf("decoded: %+v", decoded)
	}
	if decoded[zentrysync.EntityInvoice].Page != 3 {
		t.Errorf("page lost: %+v", decoded[zentrysync.EntityInvoice])
	}
}

func TestDecodeCursorStateBadInput(t *testing.T) {
	if got := zentrysync.DecodeCursorState(nil); len(got) != 0 {
		t.Errorf("empty input: %+v", got)
	}
	if got := zentrysync.DecodeCursorState([]byte("[1,2]")); len(got) != 0 {
		t.Errorf("malformed input: %+v", got)
	}
}
