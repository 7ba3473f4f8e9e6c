package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-commerce-cart/validate"
	"github.com/sirupsen/logrus"
)

type Storer interface {
	Create(ctx context.Context, m Method) error
	Find(ctx context.Context, accountID string, processor string, ref *string) (Method, error)
	QueryByAccount(ctx context.Context, accountID string) ([]Method, error)
}

// Verifier asks a processor whether the method exists before it is stored.
type Verifier interface {
	Verify(ctx context.Context, m MethodNew) error
}

type Core struct {
	log        logrus.FieldLogger
	store      Storer
	processors map[string]bool
	verifiers  map[string]Verifier
	now        func() time.Time
}

// NewCore accepts methods only for the configured processors. Processors
// without a verifier are stored as declared.
func NewCore(log logrus.FieldLogger, store Storer, processors []string, verifiers map[string]Verifier) *Core {
	ps := make(map[string]bool, len(processors))
	for _, p := range processors {
		ps[p] = true
	}

	return &Core{
		log:        log,
		store:      store,
		processors: ps,
		verifiers:  verifiers,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *Core) Register(ctx context.Context, accountID string, mn MethodNew) (Method, error) {
	if !c.processors[mn.Processor] {
		return Method{}, fmt.Errorf("%s: %w", mn.Processor, ErrUnknownProcessor)
	}

	m := Method{
		ID:        validate.GenerateID(),
		AccountID: accountID,
		Processor: mn.Processor,
		CreatedAt: c.now(),
	}

	switch mn.Processor {
	case ProcessorStripe:
		if mn.StripePaymentMethodID == "" {
			return Method{}, fmt.Errorf("%s: %w", FieldStripePaymentMethodID, ErrMissingField)
		}
		m.StripePaymentMethodID = &mn.StripePaymentMethodID
	case ProcessorPaypal:
		if mn.PaypalVaultID == "" {
			return Method{}, fmt.Errorf("%s: %w", FieldPaypalVaultID, ErrMissingField)
		}
		m.PaypalVaultID = &mn.PaypalVaultID
	}

	if v, ok := c.verifiers[mn.Processor]; ok {
		if err := v.Verify(ctx, mn); err != nil {
			return Method{}, fmt.Errorf("verifying %s payment method: %w", mn.Processor, err)
		}
	}

	if err := c.store.Create(ctx, m); err != nil {
		return Method{}, err
	}

	c.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"processor":  m.Processor,
	}).Info("payment method registered")
	return m, nil
}

func (c *Core) List(ctx context.Context, accountID string) ([]Method, error) {
	return c.store.QueryByAccount(ctx, accountID)
}

// Find looks up the method registered by the account for processor,
// narrowed by the processor specific fields the caller supplied.
func (c *Core) Find(ctx context.Context, accountID string, processor string, fields map[string]string) (Method, error) {
	var ref *string
	if id := fields[refFields[processor]]; id != "" {
		ref = &id
	}

	return c.store.Find(ctx, accountID, processor, ref)
}
