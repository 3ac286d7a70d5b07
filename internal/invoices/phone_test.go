package invoices

import (
	"reflect"
	"testing"

	"crm/pkg/models"
)

func TestInvalidPhones(t *testing.T) {
	tests := []struct {
		name string
		inv  models.Invoice
		want []string
	}{
		{"no phones", models.Invoice{NumberInvoice: "INV-1"}, nil},
		{"valid mobile", models.Invoice{PhoneNumber: "012-345 6789"}, nil},
		{"too short", models.Invoice{PhoneNumber: "123"}, []string{"123"}},
		{"second phone checked", models.Invoice{PhoneNumber: "+60 12-345 6789", PhoneNumber2: "call me"}, []string{"call me"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InvalidPhones(tt.inv, "MY"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("InvalidPhones = %v, want %v", got, tt.want)
			}
		})
	}
}
