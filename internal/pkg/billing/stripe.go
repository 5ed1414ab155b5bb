package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/promptdeck/promptdeck/app/models"
	"github.com/promptdeck/promptdeck/internal/pkg/env"
)

const (
	metadataPlanKey = "plan"
	metadataUserKey = "user_id"
)

// StripeProvider implements Provider on top of the official Stripe SDK.
// Construct it once and inject it; the SDK key is set at construction.
type StripeProvider struct {
	secretKey     string
	webhookSecret string
	catalog       *Catalog
	productName   string
}

// NewStripeProvider creates a Stripe provider. secretKey is the sk_...
// API key, webhookSecret the whsec_... signing secret.
func NewStripeProvider(secretKey, webhookSecret string, catalog *Catalog) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		catalog:       catalog,
		productName:   "PromptDeck",
	}
}

// NewStripeProviderFromEnv wires the provider from STRIPE_SECRET_KEY and
// STRIPE_WEBHOOK_SECRET.
func NewStripeProviderFromEnv(catalog *Catalog) *StripeProvider {
	return NewStripeProvider(
		strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		catalog,
	)
}

func (p *StripeProvider) Name() string {
	return models.BillingProviderStripe
}

func (p *StripeProvider) Configured() bool {
	return p.secretKey != "" && p.webhookSecret != ""
}

// ensurePrice resolves the Stripe price for a plan. Preconfigured IDs
// win; otherwise an existing price is found through the plan tag in its
// metadata before a new product/price pair is provisioned. The metadata
// lookup is what keeps repeated checkouts from stacking up duplicate
// remote prices.
func (p *StripeProvider) ensurePrice(ctx context.Context, pp PlanPrice) (string, error) {
	if pp.PriceID != "" {
		return pp.PriceID, nil
	}

	searchParams := &stripe.PriceSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("active:'true' AND metadata['%s']:'%s'", metadataPlanKey, pp.Plan),
			Context: ctx,
		},
	}
	it := price.Search(searchParams)
	if it.Next() {
		return it.Price().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("stripe price search: %w", err)
	}

	productParams := &stripe.ProductParams{
		Name: stripe.String(fmt.Sprintf("%s %s", p.productName, titlePlan(pp.Plan))),
	}
	productParams.Context = ctx
	productParams.AddMetadata(metadataPlanKey, pp.Plan)
	prod, err := product.New(productParams)
	if err != nil {
		return "", fmt.Errorf("stripe product create: %w", err)
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(prod.ID),
		UnitAmount: stripe.Int64(pp.Amount),
		Currency:   stripe.String(strings.ToLower(pp.Currency)),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(pp.Interval),
		},
	}
	priceParams.Context = ctx
	priceParams.AddMetadata(metadataPlanKey, pp.Plan)
	pr, err := price.New(priceParams)
	if err != nil {
		return "", fmt.Errorf("stripe price create: %w", err)
	}
	return pr.ID, nil
}

// ensureCustomer resolves a Stripe customer by billing email, creating
// one tagged with the local user id when none exists.
func (p *StripeProvider) ensureCustomer(ctx context.Context, userID uint, email string) (string, error) {
	listParams := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)
	it := customer.List(listParams)
	if it.Next() {
		return it.Customer().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("stripe customer list: %w", err)
	}

	createParams := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	createParams.Context = ctx
	createParams.AddMetadata(metadataUserKey, strconv.FormatUint(uint64(userID), 10))
	c, err := customer.New(createParams)
	if err != nil {
		return "", fmt.Errorf("stripe customer create: %w", err)
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	pp, ok := p.catalog.Price(req.Plan)
	if !ok {
		return nil, ErrUnknownPlan
	}

	priceID, err := p.ensurePrice(ctx, pp)
	if err != nil {
		return nil, err
	}
	customerID, err := p.ensureCustomer(ctx, req.UserID, req.Email)
	if err != nil {
		return nil, err
	}

	userRef := strconv.FormatUint(uint64(req.UserID), 10)
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(userRef),
		// The same attribution metadata rides on the subscription so later
		// subscription events can be matched without the checkout session.
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				metadataUserKey: userRef,
				metadataPlanKey: pp.Plan,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataUserKey, userRef)
	params.AddMetadata(metadataPlanKey, pp.Plan)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &CheckoutSession{URL: sess.URL, SessionID: sess.ID}, nil
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, externalID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	if _, err := subscription.Update(externalID, params); err != nil {
		return fmt.Errorf("stripe subscription cancel: %w", err)
	}
	return nil
}

// VerifyEvent authenticates the raw payload against the Stripe-Signature
// header and normalizes the event. Any verification or decode failure is
// reported as ErrInvalidSignature without further detail.
func (p *StripeProvider) VerifyEvent(payload []byte, signature string) (*Event, error) {
	if p.webhookSecret == "" || strings.TrimSpace(signature) == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, ErrInvalidSignature
	}

	normalized, err := p.normalizeEvent(&event)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	return normalized, nil
}

// Minimal local views of the Stripe payloads we consume. Decoding into
// these instead of the SDK structs keeps us independent of API version
// drift in fields we never read.
type stripeCheckoutSessionData struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	Invoice         string            `json:"invoice"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	ClientReference string            `json:"client_reference_id"`
	Metadata        map[string]string `json:"metadata"`
}

type stripeInvoiceData struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (i *stripeInvoiceData) subscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription
	}
	// Newer API versions moved the linkage under parent.
	return i.Parent.SubscriptionDetails.Subscription
}

type stripeSubscriptionData struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	Metadata          map[string]string `json:"metadata"`
}

func (p *StripeProvider) normalizeEvent(event *stripe.Event) (*Event, error) {
	ev := &Event{
		ID:           event.ID,
		Provider:     p.Name(),
		ProviderType: string(event.Type),
		Raw:          event.Data.Raw,
	}

	switch event.Type {
	case "checkout.session.completed":
		var cs stripeCheckoutSessionData
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, err
		}
		ev.Type = EventCheckoutCompleted
		ev.SessionID = cs.ID
		ev.CustomerID = cs.Customer
		ev.SubscriptionID = cs.Subscription
		ev.PaymentID = cs.Invoice
		ev.Amount = cs.AmountTotal
		ev.Currency = strings.ToUpper(cs.Currency)
		ev.UserID = userIDFromMetadata(cs.Metadata, cs.ClientReference)
		ev.Plan = cs.Metadata[metadataPlanKey]

	case "invoice.payment_succeeded", "invoice.paid":
		var inv stripeInvoiceData
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, err
		}
		ev.Type = EventPaymentSucceeded
		ev.PaymentID = inv.ID
		ev.CustomerID = inv.Customer
		ev.SubscriptionID = inv.subscriptionID()
		ev.Amount = inv.AmountPaid
		ev.Currency = strings.ToUpper(inv.Currency)

	case "invoice.payment_failed":
		var inv stripeInvoiceData
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, err
		}
		ev.Type = EventPaymentFailed
		ev.PaymentID = inv.ID
		ev.CustomerID = inv.Customer
		ev.SubscriptionID = inv.subscriptionID()
		ev.Amount = inv.AmountDue
		ev.Currency = strings.ToUpper(inv.Currency)

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripeSubscriptionData
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, err
		}
		if event.Type == "customer.subscription.deleted" {
			ev.Type = EventSubscriptionCanceled
		} else {
			ev.Type = EventSubscriptionUpdated
		}
		ev.SubscriptionID = sub.ID
		ev.CustomerID = sub.Customer
		ev.Status = mapStripeStatus(sub.Status)
		ev.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		ev.UserID = userIDFromMetadata(sub.Metadata, "")
		ev.Plan = sub.Metadata[metadataPlanKey]
		if sub.CurrentPeriodEnd > 0 {
			t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			ev.CurrentPeriodEnd = &t
		}

	default:
		log.Printf("[billing] unrecognized stripe event type %s (%s)", event.Type, event.ID)
		ev.Type = EventUnknown
	}

	return ev, nil
}

// mapStripeStatus maps Stripe's subscription status vocabulary onto the
// local state machine.
func mapStripeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return models.SubscriptionStatusActive
	case "past_due", "unpaid", "paused":
		return models.SubscriptionStatusPastDue
	case "canceled", "incomplete_expired":
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusIncomplete
	}
}

func titlePlan(plan string) string {
	if plan == "" {
		return plan
	}
	return strings.ToUpper(plan[:1]) + plan[1:]
}

func userIDFromMetadata(metadata map[string]string, fallback string) uint {
	raw := strings.TrimSpace(metadata[metadataUserKey])
	if raw == "" {
		raw = strings.TrimSpace(fallback)
	}
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}
