package kpi_test

import (
	"fmt"

	"github.com/shopspring/decimal"

	"crm/internal/kpi"
	"crm/pkg/models"
)

func ExampleCollectors() {
	receipts := []models.Receipt{
		{DebtCollectorName: "Bob", Status: models.ReceiptReconciled, ReceiptAmount: decimal.NewFromInt(50)},
		{DebtCollectorName: "Bob", Status: models.ReceiptNew, ReceiptAmount: decimal.NewFromInt(30)},
	}
	for _, s := range kpi.Collectors(receipts) {
		fmt.Printf("%s collected %s, success %.0f%%\n", s.Name, s.CollectedAmount, s.SuccessRate())
	}
	// Output: Bob collected 50, success 50%
}

func ExampleProgress() {
	fmt.Println(kpi.Progress(decimal.NewFromInt(750), decimal.NewFromInt(1000)))
	fmt.Println(kpi.Remaining(decimal.NewFromInt(1200), decimal.NewFromInt(1000)))
	// Output:
	// 75
	// 0
}
