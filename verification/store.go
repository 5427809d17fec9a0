package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrInvalidPhoneNumber rejects numbers that are not in international
// dialing format. Nothing is stored or dispatched for them.
var ErrInvalidPhoneNumber = errors.New("invalid phone number format")

// ErrDispatchFailed wraps an SMS transport failure during issuance. The
// issued code stays stored, so validating a code delivered out of band still
// works.
var ErrDispatchFailed = errors.New("fail to dispatch verification code")

// Optional leading +, then 2-15 digits with a non-zero first digit (E.164).
var phoneRegexp = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// Notifier delivers a verification code to a phone number.
type Notifier interface {
	SendCode(ctx context.Context, phoneNumber, code string) error
}

// Store issues and single-use-validates 6-digit codes keyed by phone number.
// Codes are volatile: they live in memory and expire after the configured
// TTL. At most one live code exists per number; issuing again overwrites it.
type Store struct {
	notifier        Notifier
	dispatchTimeout time.Duration

	// mu makes validate-and-consume atomic; go-cache locks individual calls
	// but has no take operation. It is never held across dispatch.
	mu    sync.Mutex
	codes *gocache.Cache
}

func NewStore(notifier Notifier, codeTTL, dispatchTimeout time.Duration) *Store {
	return &Store{
		notifier:        notifier,
		dispatchTimeout: dispatchTimeout,
		codes:           gocache.New(codeTTL, codeTTL),
	}
}

// Issue generates a fresh code for the number, replacing any prior
// unconsumed one, and dispatches it via the notifier. The code is stored
// before dispatch; a transport failure leaves it usable.
func (s *Store) Issue(ctx context.Context, phoneNumber string) error {
	if !phoneRegexp.MatchString(phoneNumber) {
		return fmt.Errorf("%w: %s", ErrInvalidPhoneNumber, phoneNumber)
	}
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("fail to generate verification code, err: %w", err)
	}

	s.mu.Lock()
	s.codes.Set(phoneNumber, code, gocache.DefaultExpiration)
	s.mu.Unlock()

	dispatchCtx := ctx
	if s.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(ctx, s.dispatchTimeout)
		defer cancel()
	}
	if err := s.notifier.SendCode(dispatchCtx, phoneNumber, code); err != nil {
		return fmt.Errorf("%w: %s", ErrDispatchFailed, err)
	}
	return nil
}

// Validate consumes the stored code when candidate matches it exactly, and
// reports whether it did. A mismatch or absent entry leaves the store
// untouched: false means retry allowed, not lockout.
func (s *Store) Validate(phoneNumber, candidate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.codes.Get(phoneNumber)
	if !ok {
		return false
	}
	code, ok := v.(string)
	if !ok || code != candidate {
		return false
	}
	s.codes.Delete(phoneNumber)
	return true
}

// generateCode returns a uniform random code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}
