// Package stripe implements the payment-provider client against the
// Stripe API.
package stripe

import (
	"context"
	"fmt"
	"time"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"github.com/stitchlane/billing-service/internal/domain/provider"
	apperrors "github.com/stitchlane/billing-service/pkg/errors"
)

// Client wraps the Stripe SDK behind the provider.Client interface.
// Every call is bounded by a timeout so a slow upstream cannot stall
// webhook processing.
type Client struct {
	api     *client.API
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a new Stripe provider client.
func NewClient(secretKey string, timeout time.Duration, logger *zap.Logger) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		api:     api,
		timeout: timeout,
		logger:  logger,
	}
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*provider.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sub, err := c.api.Subscriptions.Get(id, &stripeapi.SubscriptionParams{
		Params: stripeapi.Params{Context: ctx},
	})
	if err != nil {
		c.logger.Error("Stripe subscription lookup failed",
			zap.String("subscription_id", id),
			zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrUnavailable,
			fmt.Sprintf("failed to fetch subscription %s", id), err)
	}

	out := &provider.Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		PeriodStart:       time.Unix(sub.CurrentPeriodStart, 0),
		PeriodEnd:         time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	return out, nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*provider.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cust, err := c.api.Customers.Get(id, &stripeapi.CustomerParams{
		Params: stripeapi.Params{Context: ctx},
	})
	if err != nil {
		c.logger.Error("Stripe customer lookup failed",
			zap.String("customer_id", id),
			zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrUnavailable,
			fmt.Sprintf("failed to fetch customer %s", id), err)
	}

	return &provider.Customer{
		ID:    cust.ID,
		Email: cust.Email,
	}, nil
}

func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, id string, cancelAtPeriodEnd bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.Subscriptions.Update(id, &stripeapi.SubscriptionParams{
		Params:            stripeapi.Params{Context: ctx},
		CancelAtPeriodEnd: stripeapi.Bool(cancelAtPeriodEnd),
	})
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrUnavailable,
			fmt.Sprintf("failed to update subscription %s", id), err)
	}

	c.logger.Info("Updated subscription auto-renew",
		zap.String("subscription_id", id),
		zap.Bool("cancel_at_period_end", cancelAtPeriodEnd))
	return nil
}
