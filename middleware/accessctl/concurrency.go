package accessctl

import (
	"net/http"
	"time"

	"access-gate/middleware/accessctl/application"
	"access-gate/middleware/accessctl/domain"
	"access-gate/middleware/accessctl/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// Pool substitui o semáforo padrão (NewChanPool(Max)).
	Pool domain.SlotPool
	// OnShed é chamado quando uma request é recusada por falta de vaga.
	OnShed func()
}

// ConcurrencyMiddleware limita as requests em voo no gateway inteiro.
// Max <= 0 e sem Pool desliga o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		if opts.Max <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		opts.Pool = infra.NewChanPool(opts.Max)
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	guard := application.SlotGuard{
		Pool:   opts.Pool,
		Wait:   opts.AcquireTimeout,
		OnShed: opts.OnShed,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			leave, ok := guard.Enter(r.Context())
			if !ok {
				WriteError(w, opts.RejectStatus, http.StatusText(opts.RejectStatus))
				return
			}
			defer leave()

			next.ServeHTTP(w, r)
		})
	}
}
