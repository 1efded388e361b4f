package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"delivery-marketplace/internal/cart"
)

var (
	// ErrMissingContext is returned when the submitting user or the
	// cart's vendor is unresolved. No network call is made.
	ErrMissingContext = errors.New("order context is incomplete")

	// ErrSubmissionFailed wraps a persistence failure. The cart is left
	// intact and the same submission may be retried.
	ErrSubmissionFailed = errors.New("order submission failed")

	// ErrSubmissionInFlight is returned when a submission for the same
	// cart is already outstanding.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// Receipt identifies the order created by a successful submission.
type Receipt struct {
	OrderNumber string  `json:"order_number"`
	Status      string  `json:"status"`
	Total       float64 `json:"total"`
}

// OrderPlacer persists an assembled draft as a new order. Implementations
// must treat the create as all-or-nothing and deduplicate on the
// idempotency key.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, userID string, draft Draft, idempotencyKey string) (Receipt, error)
}

// Service coordinates the cart-to-order handoff.
type Service struct {
	placer OrderPlacer
	policy Policy

	mu       sync.Mutex
	inFlight map[*cart.Cart]struct{}
	pending  map[*cart.Cart]string
}

// NewService creates a checkout service with the given pricing policy.
func NewService(placer OrderPlacer, policy Policy) *Service {
	return &Service{
		placer:   placer,
		policy:   policy,
		inFlight: make(map[*cart.Cart]struct{}),
		pending:  make(map[*cart.Cart]string),
	}
}

// Quote assembles a draft without submitting it, for cart display.
func (s *Service) Quote(c *cart.Cart) (Draft, error) {
	return Assemble(c, s.policy)
}

// Submit assembles the cart into a draft and sends it as a single atomic
// create to the order persistence layer. On success the cart is cleared
// and the new order's identity is returned. On failure the cart is left
// intact and the error is recoverable: the caller may retry the same
// submission. The idempotency key is minted once per submission and
// held until a success clears it, so a manual retry after a
// false-negative (the write landed but the response was lost) reuses
// the key and the persistence layer returns the original order instead
// of creating a duplicate.
func (s *Service) Submit(ctx context.Context, userID string, c *cart.Cart) (Receipt, error) {
	if userID == "" {
		return Receipt{}, ErrMissingContext
	}

	draft, err := Assemble(c, s.policy)
	if err != nil {
		return Receipt{}, err
	}
	if draft.RestaurantID == 0 {
		return Receipt{}, ErrMissingContext
	}

	if !s.acquire(c) {
		return Receipt{}, ErrSubmissionInFlight
	}
	defer s.release(c)

	receipt, err := s.placer.PlaceOrder(ctx, userID, draft, s.submissionKey(c))
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	s.clearKey(c)
	c.Clear()
	return receipt, nil
}

// submissionKey returns the cart's outstanding idempotency key, minting
// one if no submission is pending.
func (s *Service) submissionKey(c *cart.Cart) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.pending[c]
	if !ok {
		key = uuid.NewString()
		s.pending[c] = key
	}
	return key
}

func (s *Service) clearKey(c *cart.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, c)
}

func (s *Service) acquire(c *cart.Cart) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[c]; busy {
		return false
	}
	s.inFlight[c] = struct{}{}
	return true
}

func (s *Service) release(c *cart.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, c)
}
