package contexthelper

import "context"

// CheckCancellation returns the context's error when it has already been
// cancelled or timed out, nil otherwise.
func CheckCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
