package verification

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	codes       map[string]string
	calls       int
	hadDeadline bool
	err         error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{codes: make(map[string]string)}
}

func (f *fakeNotifier) SendCode(ctx context.Context, phoneNumber, code string) error {
	f.calls++
	_, f.hadDeadline = ctx.Deadline()
	f.codes[phoneNumber] = code
	return f.err
}

const testPhone = "+15551234567"

func TestIssueAndValidateOnce(t *testing.T) {
	n := newFakeNotifier()
	s := NewStore(n, time.Minute, time.Second)

	require.NoError(t, s.Issue(context.Background(), testPhone))
	code := n.codes[testPhone]
	require.Regexp(t, regexp.MustCompile(`^[1-9]\d{5}$`), code)

	require.True(t, s.Validate(testPhone, code))
	// Consumed: the same code never validates twice.
	require.False(t, s.Validate(testPhone, code))
}

func TestValidateMismatchLeavesCodeUsable(t *testing.T) {
	n := newFakeNotifier()
	s := NewStore(n, time.Minute, time.Second)

	require.NoError(t, s.Issue(context.Background(), testPhone))
	code := n.codes[testPhone]

	require.False(t, s.Validate(testPhone, "000000"))
	require.False(t, s.Validate("+15550000000", code))
	require.True(t, s.Validate(testPhone, code))
}

func TestIssueOverwritesPriorCode(t *testing.T) {
	n := newFakeNotifier()
	s := NewStore(n, time.Minute, time.Second)

	require.NoError(t, s.Issue(context.Background(), testPhone))
	first := n.codes[testPhone]
	require.NoError(t, s.Issue(context.Background(), testPhone))
	second := n.codes[testPhone]

	if first != second {
		require.False(t, s.Validate(testPhone, first))
	}
	require.True(t, s.Validate(testPhone, second))
}

func TestIssueRejectsMalformedNumbers(t *testing.T) {
	n := newFakeNotifier()
	s := NewStore(n, time.Minute, time.Second)

	for _, phone := range []string{"", "+", "0123456", "123-456", "+1", "abc", "+123456789012345678"} {
		err := s.Issue(context.Background(), phone)
		require.ErrorIs(t, err, ErrInvalidPhoneNumber, "phone %q", phone)
	}
	// Nothing stored, nothing dispatched.
	require.Zero(t, n.calls)
}

func TestIssueStoresCodeDespiteDispatchFailure(t *testing.T) {
	n := newFakeNotifier()
	n.err = errors.New("gateway down")
	s := NewStore(n, time.Minute, time.Second)

	err := s.Issue(context.Background(), testPhone)
	require.ErrorIs(t, err, ErrDispatchFailed)

	// Stored before dispatch: the code issued during the failed dispatch is
	// still valid, so a code delivered out of band can be checked.
	require.True(t, s.Validate(testPhone, n.codes[testPhone]))
}

func TestIssueBoundsDispatchTime(t *testing.T) {
	n := newFakeNotifier()
	s := NewStore(n, time.Minute, time.Second)

	require.NoError(t, s.Issue(context.Background(), testPhone))
	require.True(t, n.hadDeadline)
}

func TestCodesExpire(t *testing.T) {
	n := newFakeNotifier()
	s := NewStore(n, 20*time.Millisecond, time.Second)

	require.NoError(t, s.Issue(context.Background(), testPhone))
	code := n.codes[testPhone]
	time.Sleep(50 * time.Millisecond)
	require.False(t, s.Validate(testPhone, code))
}
