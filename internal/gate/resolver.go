package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

const tracerName = "github.com/yashgoel75/cleit-cdc/internal/gate"

// DefaultResolveTimeout bounds one resolution when Resolver.Timeout is zero.
const DefaultResolveTimeout = 10 * time.Second

// TokenProvider obtains a fresh credential for the signed-in identity.
type TokenProvider interface {
	Credential(ctx context.Context) (Credential, error)
}

// ProfileRecord is the part of the backend profile the gate reads.
type ProfileRecord struct {
	Name string
	// IsProfileComplete is nil when the backend omitted the flag.
	IsProfileComplete *bool
}

// ProfileFetcher retrieves the profile for an email with a bearer credential.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, email string, cred Credential) (ProfileRecord, error)
}

// FailureMode selects the state a failed resolution degrades to.
type FailureMode int

const (
	// FailIncomplete keeps the identity and marks the profile incomplete.
	FailIncomplete FailureMode = iota
	// FailSignedOut treats the visitor as signed out.
	FailSignedOut
)

// ParseFailureMode accepts "incomplete" and "signed_out". Anything else is
// FailIncomplete.
func ParseFailureMode(s string) FailureMode {
	switch s {
	case "signed_out", "signed-out", "signedout":
		return FailSignedOut
	default:
		return FailIncomplete
	}
}

func (m FailureMode) String() string {
	if m == FailSignedOut {
		return "signed_out"
	}
	return "incomplete"
}

// Resolution is the outcome of resolving one identity.
type Resolution struct {
	Profile     Completeness
	DisplayName string

	// SignedOut is set when a failure degrades to the signed-out state.
	SignedOut bool
	// Cancelled is set when the caller abandoned the resolution.
	Cancelled bool
	Err       error
}

// Resolver runs the credential-then-profile resolution.
type Resolver struct {
	Tokens   TokenProvider
	Profiles ProfileFetcher

	Timeout      time.Duration
	OnTokenError FailureMode
	OnFetchError FailureMode

	Recorder Recorder
}

// Resolve never returns an error directly: failures are reported in
// Resolution.Err and already folded into the resulting completeness.
func (r *Resolver) Resolve(ctx context.Context, id Identity) Resolution {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "gate.resolve", trace.WithAttributes(
		attribute.String("gate.email", id.Email),
	))
	defer span.End()

	res := r.resolve(ctx, tracer, id)
	span.SetAttributes(attribute.String("gate.outcome", outcome(res)))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	recorder(r.Recorder).Resolution(outcome(res))
	return res
}

func (r *Resolver) resolve(ctx context.Context, tracer trace.Tracer, id Identity) Resolution {
	cctx, cspan := tracer.Start(ctx, "gate.credential")
	cred, err := r.Tokens.Credential(cctx)
	cspan.End()
	if err == nil && cred == "" {
		err = errors.New("empty credential")
	}
	if err != nil {
		if !errors.Is(err, ErrToken) {
			err = fmt.Errorf("%w: %w", ErrToken, err)
		}
		if cancelled(ctx) {
			return abandoned(r.OnTokenError, id, err)
		}
		logger.Warn("gate credential failed", map[string]any{
			"email": id.Email,
			"mode":  r.OnTokenError.String(),
			"error": err,
		})
		return failed(r.OnTokenError, err)
	}

	pctx, pspan := tracer.Start(ctx, "gate.profile")
	rec, err := r.Profiles.FetchProfile(pctx, id.Email, cred)
	pspan.End()
	if err != nil {
		if !errors.Is(err, ErrProfileFetch) {
			err = &ProfileFetchError{Err: err}
		}
		if cancelled(ctx) {
			return abandoned(r.OnFetchError, id, err)
		}
		logger.Warn("gate profile fetch failed", map[string]any{
			"email": id.Email,
			"mode":  r.OnFetchError.String(),
			"error": err,
		})
		return failed(r.OnFetchError, err)
	}

	res := Resolution{Profile: Incomplete, DisplayName: rec.Name}
	if rec.IsProfileComplete != nil && *rec.IsProfileComplete {
		res.Profile = Complete
	}
	return res
}

func failed(mode FailureMode, err error) Resolution {
	if mode == FailSignedOut {
		return Resolution{SignedOut: true, Err: err}
	}
	return Resolution{Profile: Incomplete, Err: err}
}

// cancelled reports whether the caller gave up on ctx. A timeout is a
// failure, not a cancellation.
func cancelled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func abandoned(mode FailureMode, id Identity, err error) Resolution {
	logger.Debug("gate resolution cancelled", map[string]any{
		"email": id.Email,
		"error": err,
	})
	res := failed(mode, err)
	res.Cancelled = true
	return res
}

func outcome(res Resolution) string {
	switch {
	case res.Cancelled:
		return "cancelled"
	case errors.Is(res.Err, ErrToken):
		return "token_error"
	case res.Err != nil:
		return "fetch_error"
	case res.Profile == Complete:
		return "complete"
	default:
		return "incomplete"
	}
}
