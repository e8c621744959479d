package zentrysync

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
)

// docLine is the provider-neutral shape of a document line shared by bills,
// invoices, purchase orders and sales orders.
type docLine struct {
	ProductId   int
	Name        string
	Description string
	Qty         decimal.Decimal
	UnitRate    decimal.Decimal
	TaxAmount   decimal.Decimal
}

func (l docLine) total() decimal.Decimal {
	return l.Qty.Mul(l.UnitRate).Add(l.TaxAmount)
}

// remoteLineBodies builds the LineItems array for an outbound document. Lines
// referencing a product first ensure the item exists remotely, so a document
// never lands with a dangling item reference.
func remoteLineBodies(ctx context.Context, deps *DependencyResolver, lines []docLine, accountCode string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		body := map[string]any{
			"Description": lineDescription(line),
			"Quantity":    line.Qty,
			"UnitAmount":  line.UnitRate,
			"TaxAmount":   line.TaxAmount,
			"LineAmount":  line.Qty.Mul(line.UnitRate),
			"AccountCode": accountCode,
		}
		if line.ProductId > 0 {
			itemId, err := deps.EnsureSynced(ctx, EntityItem, strconv.Itoa(line.ProductId))
			if err != nil {
				return nil, err
			}
			body["ItemID"] = itemId
		}
		out = append(out, body)
	}
	return out, nil
}

func lineDescription(line docLine) string {
	if line.Description != "" {
		return line.Name + " - " + line.Description
	}
	return line.Name
}

// zentryLine is the wire shape of a remote document line.
type zentryLine struct {
	Description string          `json:"Description"`
	Quantity    decimal.Decimal `json:"Quantity"`
	UnitAmount  decimal.Decimal `json:"UnitAmount"`
	TaxAmount   decimal.Decimal `json:"TaxAmount"`
	ItemID      string          `json:"ItemID"`
}

// localLines converts inbound remote lines, resolving each item reference to
// a local product. A line whose item has never been pulled fails the whole
// document so no partial rows are written.
func localLines(ctx context.Context, deps *DependencyResolver, lines []zentryLine) ([]docLine, error) {
	out := make([]docLine, 0, len(lines))
	for _, line := range lines {
		converted := docLine{
			Name:      line.Description,
			Qty:       line.Quantity,
			UnitRate:  line.UnitAmount,
			TaxAmount: line.TaxAmount,
		}
		if line.ItemID != "" {
			localId, err := deps.ResolveLocal(ctx, EntityItem, line.ItemID)
			if err != nil {
				return nil, err
			}
			productId, err := strconv.Atoi(localId)
			if err != nil {
				return nil, err
			}
			converted.ProductId = productId
		}
		out = append(out, converted)
	}
	return out, nil
}

// lineTotals recomputes document totals from the lines so header amounts
// always agree with the detail rows.
func lineTotals(lines []docLine) (subtotal, tax, total decimal.Decimal) {
	for _, line := range lines {
		subtotal = subtotal.Add(line.Qty.Mul(line.UnitRate))
		tax = tax.Add(line.TaxAmount)
	}
	total = subtotal.Add(tax)
	return subtotal, tax, total
}
