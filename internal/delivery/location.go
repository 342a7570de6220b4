package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
)

// DefaultLocateTimeout bounds a single location request.
const DefaultLocateTimeout = 10 * time.Second

type LocationFailure string

const (
	FailurePermissionDenied    LocationFailure = "permission_denied"
	FailurePositionUnavailable LocationFailure = "position_unavailable"
	FailureTimeout             LocationFailure = "timeout"
)

// LocationError tells the caller why no customer location could be obtained.
// It is never converted into a zero distance.
type LocationError struct {
	Reason LocationFailure
	Err    error
}

func (e *LocationError) Error() string {
	switch e.Reason {
	case FailurePermissionDenied:
		return "location permission denied"
	case FailurePositionUnavailable:
		return "location unavailable"
	case FailureTimeout:
		return "location request timed out"
	}
	return "location error: " + string(e.Reason)
}

func (e *LocationError) Unwrap() error { return e.Err }

// Is matches any LocationError with the same reason.
func (e *LocationError) Is(target error) bool {
	t, ok := target.(*LocationError)
	return ok && t.Reason == e.Reason
}

var (
	ErrPermissionDenied    = &LocationError{Reason: FailurePermissionDenied}
	ErrPositionUnavailable = &LocationError{Reason: FailurePositionUnavailable}
	ErrLocationTimeout     = &LocationError{Reason: FailureTimeout}

	// ErrSuperseded is returned to a pending request replaced by a newer one for the same session.
	ErrSuperseded = errors.New("location request superseded")
)

// ParseFailure maps a client-reported failure string to its error.
func ParseFailure(reason string) (*LocationError, bool) {
	switch LocationFailure(reason) {
	case FailurePermissionDenied:
		return ErrPermissionDenied, true
	case FailurePositionUnavailable:
		return ErrPositionUnavailable, true
	case FailureTimeout:
		return ErrLocationTimeout, true
	}
	return nil, false
}

// Locator obtains a customer's position.
type Locator interface {
	Locate(ctx context.Context) (domain.GeoPoint, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (domain.GeoPoint, error)

func (f LocatorFunc) Locate(ctx context.Context) (domain.GeoPoint, error) { return f(ctx) }

// StaticLocator returns a fixed point, or the client-reported failure if Failure is set.
type StaticLocator struct {
	Point   domain.GeoPoint
	Failure *LocationError
}

func (s StaticLocator) Locate(context.Context) (domain.GeoPoint, error) {
	if s.Failure != nil {
		return domain.GeoPoint{}, s.Failure
	}
	if err := s.Point.Validate(); err != nil {
		return domain.GeoPoint{}, &LocationError{Reason: FailurePositionUnavailable, Err: err}
	}
	return s.Point, nil
}

// Acquirer runs single-shot location requests with a bounded timeout. A new request
// for a session cancels the one still pending for it; requests are never queued.
type Acquirer struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRequest
	seq     uint64
}

type pendingRequest struct {
	id     uint64
	cancel context.CancelCauseFunc
}

func NewAcquirer(timeout time.Duration) *Acquirer {
	if timeout <= 0 {
		timeout = DefaultLocateTimeout
	}
	return &Acquirer{
		timeout: timeout,
		pending: make(map[string]*pendingRequest),
	}
}

// Acquire asks loc for a position on behalf of session.
func (a *Acquirer) Acquire(ctx context.Context, session string, loc Locator) (domain.GeoPoint, error) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	reqCtx, cancelTimeout := context.WithTimeout(reqCtx, a.timeout)
	defer cancelTimeout()

	id := a.register(session, cancel)
	defer a.release(session, id)

	type result struct {
		point domain.GeoPoint
		err   error
	}
	done := make(chan result, 1)
	go func() {
		p, err := loc.Locate(reqCtx)
		done <- result{p, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return domain.GeoPoint{}, a.classify(reqCtx, r.err)
		}
		return r.point, nil
	case <-reqCtx.Done():
		return domain.GeoPoint{}, a.classify(reqCtx, reqCtx.Err())
	}
}

func (a *Acquirer) classify(reqCtx context.Context, err error) error {
	if errors.Is(context.Cause(reqCtx), ErrSuperseded) {
		return ErrSuperseded
	}
	var locErr *LocationError
	if errors.As(err, &locErr) {
		return locErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &LocationError{Reason: FailureTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &LocationError{Reason: FailurePositionUnavailable, Err: err}
}

func (a *Acquirer) register(session string, cancel context.CancelCauseFunc) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.pending[session]; ok {
		prev.cancel(ErrSuperseded)
	}
	a.seq++
	a.pending[session] = &pendingRequest{id: a.seq, cancel: cancel}
	return a.seq
}

func (a *Acquirer) release(session string, id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.pending[session]; ok && cur.id == id {
		delete(a.pending, session)
	}
}
