/*
schedule.go - Invoice schedule calculation

PURPOSE:
  Pure function mapping (annual premium, billing schedule, effective date)
  to an ordered list of invoice specifications. No side effects; the
  InvoiceLedger persists the result.

DATE RULES:
  bill_date[i]  = effective + i * (12/N) months  (clamped month arithmetic)
  due_date      = bill_date + 1 month
  cancel_date   = due_date + 14 days             (grace period)

ROUNDING RULE:
  Each installment is floor(premium / N). The integer remainder is folded
  into the FIRST installment, so the batch always sums exactly to the
  annual premium. Example: 1250 Monthly -> 106, 104 x 11.
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// graceDays is the interval between an invoice's due date and its cancel
// date, during which non-payment is pending but not yet cancellation-triggering.
const graceDays = 14

// InvoiceSpec is one installment produced by the schedule calculator,
// before it is materialized as an Invoice row.
type InvoiceSpec struct {
	BillDate   Date
	DueDate    Date
	CancelDate Date
	AmountDue  decimal.Decimal
}

// ComputeSchedule generates the installment schedule for a policy year,
// earliest bill date first. An unsupported schedule yields
// ErrInvalidSchedule and no specs.
func ComputeSchedule(premium decimal.Decimal, schedule BillingSchedule, effective Date) ([]InvoiceSpec, error) {
	n, err := schedule.Installments()
	if err != nil {
		return nil, err
	}
	step, err := schedule.MonthStep()
	if err != nil {
		return nil, err
	}

	count := decimal.NewFromInt(int64(n))
	base := premium.Div(count).Floor()
	remainder := premium.Sub(base.Mul(count))

	specs := make([]InvoiceSpec, 0, n)
	for i := 0; i < n; i++ {
		amount := base
		if i == 0 {
			amount = amount.Add(remainder)
		}

		billDate := effective.AddMonths(i * step)
		dueDate := billDate.AddMonths(1)
		specs = append(specs, InvoiceSpec{
			BillDate:   billDate,
			DueDate:    dueDate,
			CancelDate: dueDate.AddDays(graceDays),
			AmountDue:  amount,
		})
	}
	return specs, nil
}
