package application

import (
	"context"
	"time"

	"access-gate/middleware/accessctl/domain"
)

// SlotGuard controla a entrada de requests no gateway pelas vagas do pool.
type SlotGuard struct {
	Pool domain.SlotPool
	// Wait <= 0 espera até o ctx da request encerrar.
	Wait time.Duration
	// OnShed (opcional) é chamado para cada request que desistiu da vaga.
	OnShed func()
}

// Enter devolve leave (chamar exatamente uma vez) e ok=true quando a request entrou.
func (g SlotGuard) Enter(ctx context.Context) (leave func(), ok bool) {
	if g.Pool == nil {
		return func() {}, true
	}
	if g.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Wait)
		defer cancel()
	}

	leave, ok = g.Pool.Acquire(ctx)
	if !ok && g.OnShed != nil {
		g.OnShed()
	}
	return leave, ok
}
