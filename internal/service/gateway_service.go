package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"vending-payout-console/config"
	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"

	"github.com/rs/zerolog"
)

// GatewayService implements ports.Gateway. It is the single entry point for
// every call to the remote platform: it composes the signer, the response
// cache with its admission side-table, and the transport, and classifies
// every outcome into the structured error taxonomy.
type GatewayService struct {
	signer    ports.Signer
	cache     ports.ResponseCache
	admission ports.AdmissionStore
	transport ports.Transport
	cfg       config.GatewayConfig
	log       zerolog.Logger
	now       func() time.Time
}

// NewGatewayService creates a new GatewayService.
func NewGatewayService(
	signer ports.Signer,
	cache ports.ResponseCache,
	admission ports.AdmissionStore,
	transport ports.Transport,
	cfg config.GatewayConfig,
	log zerolog.Logger,
) *GatewayService {
	return &GatewayService{
		signer:    signer,
		cache:     cache,
		admission: admission,
		transport: transport,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Call executes one remote platform call.
//
// Reads are served from cache when a live entry exists and opts.Force is not
// set. A fresh dispatch is admitted only when the key's call window is open;
// on deferral the returned CallResult carries metadata only (no payload)
// alongside the RateLimitDeferred error, so the console can render the
// countdown. Mutating methods are never cached and never admission-blocked
// locally: the remote platform's duplicate-submission protection is the
// authoritative guard for money movement.
func (s *GatewayService) Call(ctx context.Context, layer domain.Layer, method string, params map[string]any, opts domain.CallOptions) (*domain.CallResult, error) {
	if !layer.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown layer %q", layer))
	}
	spec, ok := domain.LookupMethod(method)
	if !ok {
		return nil, apperror.ErrUnknownMethod(method)
	}

	key := domain.CacheKey(layer, method, params)
	now := s.now()

	if spec.Kind == domain.MethodKindRead && !opts.Force {
		entry, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("method", method).Msg("response cache read failed, dispatching fresh call")
		}
		if entry != nil && entry.Live(now) {
			next, _ := s.admission.NextAllowedAt(ctx, key)
			return &domain.CallResult{
				Payload: entry.Payload,
				Meta: domain.CallMeta{
					Cached:          true,
					CacheAgeSeconds: int64(entry.Age(now).Seconds()),
					NextAllowedAt:   next,
				},
			}, nil
		}
	}

	if spec.Kind == domain.MethodKindRead {
		next, err := s.admission.NextAllowedAt(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("method", method).Msg("admission check failed, allowing call")
		}
		if next != nil && now.Before(*next) {
			return &domain.CallResult{
				Meta: domain.CallMeta{NextAllowedAt: next},
			}, apperror.ErrRateLimitDeferred(method)
		}
	}

	sig, err := s.signer.Sign(layer, method, params)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	payload, callErr := s.transport.Do(callCtx, layer, &ports.TransportRequest{
		Method:    method,
		Params:    params,
		Signature: *sig,
	})

	// Every dispatch, success or failure, reopens the window MinInterval
	// later. The UI derives its refresh countdowns from this.
	nextAt := s.now().Add(s.minInterval(spec.Kind))
	if err := s.admission.SetNextAllowed(ctx, key, nextAt); err != nil {
		s.log.Warn().Err(err).Str("method", method).Msg("failed to record next allowed call time")
	}

	if callErr != nil {
		return nil, s.classify(method, callErr)
	}

	meta := domain.CallMeta{Cached: false, NextAllowedAt: &nextAt}

	if spec.Kind == domain.MethodKindRead {
		if ttl := s.ttlFor(spec.TTLClass); ttl > 0 {
			if err := s.cache.Put(ctx, key, payload, ttl); err != nil {
				s.log.Warn().Err(err).Str("method", method).Msg("failed to cache read result")
			}
		}
	}

	s.log.Debug().
		Str("layer", string(layer)).
		Str("method", method).
		Str("kind", string(spec.Kind)).
		Msg("remote call dispatched")

	return &domain.CallResult{Payload: payload, Meta: meta}, nil
}

// classify maps a transport failure onto the error taxonomy. Structured
// remote rejections (duplicate submission, remote message) arrive already
// classified from the transport adapter; everything else is a local timeout
// or a transport-level failure.
func (s *GatewayService) classify(method string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// Abandonment, not cancellation: the remote effect of a mutating
		// call is unknown and must be reconciled by re-querying state.
		return apperror.ErrTimeout(method, err)
	}
	return apperror.Wrap(apperror.CodeRemote, err.Error(), http.StatusBadGateway, err)
}

func (s *GatewayService) minInterval(kind domain.MethodKind) time.Duration {
	if kind == domain.MethodKindMutating {
		return s.cfg.MutatingInterval
	}
	return s.cfg.ReadInterval
}

func (s *GatewayService) ttlFor(class domain.TTLClass) time.Duration {
	switch class {
	case domain.TTLClassList:
		return s.cfg.ListTTL
	case domain.TTLClassLookup:
		return s.cfg.LookupTTL
	default:
		return 0
	}
}
