/*
scenarios.go - Demo data loader

PURPOSE:
  Seeds a recognizable set of contacts, policies and payments so the API
  can be explored without hand-crafting records. Loading is idempotent: if
  any demo policy already exists the loader is a no-op.

DEMO DATA:
  Policy One    Annual     365/yr   effective 2015-01-01
  Policy Two    Quarterly  1600/yr  effective 2015-02-01, 400 paid 2015-02-01
  Policy Three  Monthly    1200/yr  effective 2015-01-01

SEE ALSO:
  - handlers.go: The /api/demo/load endpoint
*/
package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/warp/policy-billing/billing"
)

// LoadDemoData seeds the demo contacts, policies and payments. Opening an
// accounting session for each policy generates its invoice schedule.
func LoadDemoData(ctx context.Context, store billing.TxStore, clock billing.Clock) error {
	existing, err := store.ListPolicies(ctx)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p.Number == "Policy One" || p.Number == "Policy Two" || p.Number == "Policy Three" {
			return nil
		}
	}

	john := billing.Contact{ID: billing.ContactID(uuid.NewString()), Name: "John Doe", Role: billing.RoleNamedInsured}
	johnAgent := billing.Contact{ID: billing.ContactID(uuid.NewString()), Name: "John Doe", Role: billing.RoleAgent}
	bob := billing.Contact{ID: billing.ContactID(uuid.NewString()), Name: "Bob Smith", Role: billing.RoleAgent}
	anna := billing.Contact{ID: billing.ContactID(uuid.NewString()), Name: "Anna White", Role: billing.RoleNamedInsured}
	joe := billing.Contact{ID: billing.ContactID(uuid.NewString()), Name: "Joe Lee", Role: billing.RoleAgent}
	ryan := billing.Contact{ID: billing.ContactID(uuid.NewString()), Name: "Ryan Bucket", Role: billing.RoleNamedInsured}

	for _, c := range []billing.Contact{john, johnAgent, bob, anna, joe, ryan} {
		contact := c
		if err := store.SaveContact(ctx, &contact); err != nil {
			return fmt.Errorf("save demo contact %s: %w", c.Name, err)
		}
	}

	policies := []billing.Policy{
		{
			ID:            billing.PolicyID(uuid.NewString()),
			Number:        "Policy One",
			EffectiveDate: billing.NewDate(2015, 1, 1),
			AnnualPremium: billing.MoneyFromInt(365),
			Schedule:      billing.ScheduleAnnual,
			Status:        billing.PolicyActive,
			NamedInsured:  john.ID,
			Agent:         bob.ID,
		},
		{
			ID:            billing.PolicyID(uuid.NewString()),
			Number:        "Policy Two",
			EffectiveDate: billing.NewDate(2015, 2, 1),
			AnnualPremium: billing.MoneyFromInt(1600),
			Schedule:      billing.ScheduleQuarterly,
			Status:        billing.PolicyActive,
			NamedInsured:  anna.ID,
			Agent:         joe.ID,
		},
		{
			ID:            billing.PolicyID(uuid.NewString()),
			Number:        "Policy Three",
			EffectiveDate: billing.NewDate(2015, 1, 1),
			AnnualPremium: billing.MoneyFromInt(1200),
			Schedule:      billing.ScheduleMonthly,
			Status:        billing.PolicyActive,
			NamedInsured:  ryan.ID,
			Agent:         johnAgent.ID,
		},
	}

	for i := range policies {
		p := &policies[i]
		if err := store.SavePolicy(ctx, p); err != nil {
			return fmt.Errorf("save demo policy %s: %w", p.Number, err)
		}

		acct, err := billing.OpenAccounting(ctx, store, clock, p.ID)
		if err != nil {
			return fmt.Errorf("open demo policy %s: %w", p.Number, err)
		}

		// Policy Two carries a first-installment payment by its insured.
		if p.Number == "Policy Two" {
			_, err := acct.MakePayment(ctx, billing.PaymentInput{
				ContactID: anna.ID,
				Date:      billing.NewDate(2015, 2, 1),
				Amount:    billing.MoneyFromInt(400),
			})
			if err != nil {
				return fmt.Errorf("register demo payment on %s: %w", p.Number, err)
			}
		}
	}
	return nil
}
