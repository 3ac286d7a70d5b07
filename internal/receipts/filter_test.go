package receipts

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

func TestFilterApply(t *testing.T) {
	all := []models.Receipt{
		{ID: "1", Bank: "Maybank", Status: models.ReceiptNew, DateReceipt: "2024-05-01", ClientName: "Tan", ReceiptAmount: decimal.NewFromInt(10)},
		{ID: "2", Bank: "CIMB Bank", Status: models.ReceiptReconciled, DateReceipt: "2024-05-10", ClientName: "Lim", ReceiptAmount: decimal.NewFromInt(20)},
		{ID: "3", Bank: "Maybank", Status: models.ReceiptReconciled, CreatedAt: time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC), ReceiptAmount: decimal.NewFromInt(30)},
		{ID: "4", Bank: "RHB", Status: models.ReceiptOnHold, DateReceipt: "someday", ReceiptAmount: decimal.NewFromInt(40)},
	}
	chat := map[string]string{"3": "customer sent proof of transfer"}
	last := func(id string) string { return chat[id] }

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"none", Filter{}, []string{"1", "2", "3", "4"}},
		{"status", Filter{Status: models.ReceiptReconciled}, []string{"2", "3"}},
		{"bank", Filter{Bank: "Maybank"}, []string{"1", "3"}},
		{"term client", Filter{Term: "LIM"}, []string{"2"}},
		{"term chat", Filter{Term: "proof"}, []string{"3"}},
		{"range", Filter{From: time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)}, []string{"2"}},
		{"range created fallback", Filter{From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}, []string{"3"}},
		{"range to only", Filter{To: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}, []string{"1"}},
		{"range skips undated", Filter{From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)}, []string{"1", "2", "3"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.filter.Apply(all, last)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %+v", tc.want, got)
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Fatalf("expected %v, got %+v", tc.want, got)
				}
			}
		})
	}
}
