package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"
)

// Metadata keys set on checkout sessions created by the onboarding flow.
const (
	metadataRegistrationID = "registration_id"
	metadataPlanID         = "plan_id"
)

// ParseStripe converts a verified provider event into its typed form.
// Returns ErrUnhandledEventType for event classes this service ignores and
// ErrMalformedPayload when a payload is missing required fields.
func ParseStripe(raw stripe.Event) (Event, error) {
	meta := Meta{
		ID:        raw.ID,
		CreatedAt: time.Unix(raw.Created, 0),
	}

	switch raw.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", ErrMalformedPayload, err)
		}
		ev := CheckoutCompleted{
			Meta:          meta,
			SessionID:     session.ID,
			CustomerEmail: session.CustomerEmail,
		}
		if session.Customer != nil {
			ev.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			ev.SubscriptionID = session.Subscription.ID
		}
		if session.Metadata != nil {
			ev.RegistrationID = session.Metadata[metadataRegistrationID]
			if rawPlan := session.Metadata[metadataPlanID]; rawPlan != "" {
				planID, err := strconv.ParseInt(rawPlan, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: plan_id metadata %q", ErrMalformedPayload, rawPlan)
				}
				ev.PlanID = planID
			}
		}
		return ev, nil

	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated:
		sub, err := unmarshalSubscription(raw.Data.Raw)
		if err != nil {
			return nil, err
		}
		ev := SubscriptionUpdated{
			Meta:              meta,
			SubscriptionID:    sub.ID,
			Status:            string(sub.Status),
			PeriodStart:       time.Unix(sub.CurrentPeriodStart, 0),
			PeriodEnd:         time.Unix(sub.CurrentPeriodEnd, 0),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		}
		if sub.Customer != nil {
			ev.CustomerID = sub.Customer.ID
		}
		if sub.CancelAtPeriodEnd && sub.CancelAt > 0 {
			t := time.Unix(sub.CancelAt, 0)
			ev.CancelAt = &t
		}
		return ev, nil

	case stripe.EventTypeCustomerSubscriptionDeleted:
		sub, err := unmarshalSubscription(raw.Data.Raw)
		if err != nil {
			return nil, err
		}
		ev := SubscriptionDeleted{
			Meta:           meta,
			SubscriptionID: sub.ID,
		}
		if sub.Customer != nil {
			ev.CustomerID = sub.Customer.ID
		}
		return ev, nil

	case stripe.EventTypeInvoicePaid:
		invoice, err := unmarshalInvoice(raw.Data.Raw)
		if err != nil {
			return nil, err
		}
		ev := InvoicePaid{
			Meta:             meta,
			InvoiceID:        invoice.ID,
			AmountPaid:       invoice.AmountPaid,
			Currency:         string(invoice.Currency),
			BillingReason:    string(invoice.BillingReason),
			InvoicePDFURL:    invoice.InvoicePDF,
			HostedInvoiceURL: invoice.HostedInvoiceURL,
		}
		if invoice.Customer != nil {
			ev.CustomerID = invoice.Customer.ID
		}
		if invoice.Subscription != nil {
			ev.SubscriptionID = invoice.Subscription.ID
		}
		if invoice.PaymentIntent != nil {
			ev.PaymentIntentID = invoice.PaymentIntent.ID
		}
		if invoice.Lines != nil {
			for _, line := range invoice.Lines.Data {
				if line.Proration && line.Price != nil {
					ev.ProrationPriceIDs = append(ev.ProrationPriceIDs, line.Price.ID)
				}
			}
		}
		return ev, nil

	case stripe.EventTypeInvoicePaymentFailed:
		invoice, err := unmarshalInvoice(raw.Data.Raw)
		if err != nil {
			return nil, err
		}
		ev := InvoicePaymentFailed{
			Meta:           meta,
			InvoiceID:      invoice.ID,
			AmountDue:      invoice.AmountDue,
			Currency:       string(invoice.Currency),
			FailureMessage: "Payment failed",
		}
		if invoice.Customer != nil {
			ev.CustomerID = invoice.Customer.ID
		}
		if invoice.Subscription != nil {
			ev.SubscriptionID = invoice.Subscription.ID
		}
		if invoice.PaymentIntent != nil {
			ev.PaymentIntentID = invoice.PaymentIntent.ID
		}
		if invoice.LastFinalizationError != nil && invoice.LastFinalizationError.Msg != "" {
			ev.FailureMessage = invoice.LastFinalizationError.Msg
		}
		return ev, nil

	case stripe.EventTypeCustomerSubscriptionTrialWillEnd:
		sub, err := unmarshalSubscription(raw.Data.Raw)
		if err != nil {
			return nil, err
		}
		ev := TrialWillEnd{
			Meta:           meta,
			SubscriptionID: sub.ID,
			TrialEnd:       time.Unix(sub.TrialEnd, 0),
		}
		if sub.Customer != nil {
			ev.CustomerID = sub.Customer.ID
		}
		return ev, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEventType, raw.Type)
	}
}

func unmarshalSubscription(raw json.RawMessage) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: subscription: %v", ErrMalformedPayload, err)
	}
	if sub.ID == "" {
		return nil, fmt.Errorf("%w: subscription id missing", ErrMalformedPayload)
	}
	return &sub, nil
}

func unmarshalInvoice(raw json.RawMessage) (*stripe.Invoice, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return nil, fmt.Errorf("%w: invoice: %v", ErrMalformedPayload, err)
	}
	if invoice.ID == "" {
		return nil, fmt.Errorf("%w: invoice id missing", ErrMalformedPayload)
	}
	return &invoice, nil
}
