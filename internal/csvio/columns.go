// Package csvio converts invoices to and from the fixed 22-column layout
// shared by CSV files, spreadsheets and XLSX exports.
package csvio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"crm/pkg/models"
)

// Header lists the columns in positional order.
var Header = []string{
	"Date", "Invoice Number", "Status", "Branch", "Client Name", "Amount Due",
	"Phone Number", "Phone Number 2", "MyKad No", "Debt Collector", "Salesperson",
	"Address", "Address 2", "City", "Postcode", "State", "Country",
	"Tracking No", "PTP", "Total Boxes", "PTP Date", "PTP Amount",
}

const (
	colDate = iota
	colNumber
	colStatus
	colBranch
	colClient
	colAmount
	colPhone
	colPhone2
	colMyKad
	colCollector
	colSalesperson
	colAddress
	colAddress2
	colCity
	colPostcode
	colState
	colCountry
	colTracking
	colPTP
	colBoxes
	colPTPDate
	colPTPAmount
	columnCount
)

// RowToInvoice converts one data row into a candidate invoice. Short rows
// are padded with empty cells. Blank amount, box and PTP cells leave the
// field unset; unparseable ones are left unset too and reported as warnings.
func RowToInvoice(row []string) (models.Invoice, []string) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	var warnings []string

	inv := models.Invoice{
		DateInvoice:       cell(colDate),
		NumberInvoice:     cell(colNumber),
		StatusInvoice:     models.InvoiceStatus(cell(colStatus)),
		Branch:            cell(colBranch),
		ClientName:        cell(colClient),
		PhoneNumber:       cell(colPhone),
		PhoneNumber2:      cell(colPhone2),
		MyKadNo:           cell(colMyKad),
		DebtCollectorName: cell(colCollector),
		Salesperson:       cell(colSalesperson),
		Address:           cell(colAddress),
		Address2:          cell(colAddress2),
		City:              cell(colCity),
		Postcode:          cell(colPostcode),
		State:             cell(colState),
		Country:           cell(colCountry),
		TrackingNo:        cell(colTracking),
		PTPDate:           cell(colPTPDate),
	}

	if raw := cell(colAmount); raw != "" {
		amount, err := ParseAmount(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid amount due %q, ignored", raw))
		} else {
			inv.AmountDue = &amount
		}
	}

	if raw := cell(colBoxes); raw != "" {
		boxes, err := strconv.Atoi(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid total boxes %q, ignored", raw))
		} else {
			inv.TotalBoxes = &boxes
		}
	}

	if raw := cell(colPTP); raw != "" {
		ptp, err := strconv.ParseBool(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid PTP flag %q, ignored", raw))
		} else {
			inv.PTP = &ptp
		}
	}

	if raw := cell(colPTPAmount); raw != "" {
		ptp, err := ParseAmount(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid PTP amount %q, ignored", raw))
		} else {
			inv.PTPAmount = &ptp
		}
	}
	return inv, warnings
}

// InvoiceToRow renders inv in column order.
func InvoiceToRow(inv models.Invoice) []string {
	row := make([]string, columnCount)
	row[colDate] = inv.DateInvoice
	row[colNumber] = inv.NumberInvoice
	row[colStatus] = string(inv.StatusInvoice)
	row[colBranch] = inv.Branch
	row[colClient] = inv.ClientName
	if inv.AmountDue != nil {
		row[colAmount] = inv.AmountDue.String()
	}
	row[colPhone] = inv.PhoneNumber
	row[colPhone2] = inv.PhoneNumber2
	row[colMyKad] = inv.MyKadNo
	row[colCollector] = inv.DebtCollectorName
	row[colSalesperson] = inv.Salesperson
	row[colAddress] = inv.Address
	row[colAddress2] = inv.Address2
	row[colCity] = inv.City
	row[colPostcode] = inv.Postcode
	row[colState] = inv.State
	row[colCountry] = inv.Country
	row[colTracking] = inv.TrackingNo
	if inv.PTP != nil {
		row[colPTP] = strconv.FormatBool(*inv.PTP)
	}
	if inv.TotalBoxes != nil {
		row[colBoxes] = strconv.Itoa(*inv.TotalBoxes)
	}
	row[colPTPDate] = inv.PTPDate
	if inv.PTPAmount != nil {
		row[colPTPAmount] = inv.PTPAmount.String()
	}
	return row
}

// ParseAmount reads a money cell such as "1,234.50" or "RM 99". A blank
// cell is zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "RM"), "MYR")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
