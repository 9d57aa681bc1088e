package application

import (
	"sync/atomic"

	"access-gate/middleware/accessctl/domain"
)

// PolicyControl guarda os toggles lidos por todo check de cota.
//
// Leituras e toggles concorrentes são seguros; um check "em voo" durante um
// toggle pode ver qualquer um dos dois valores.
type PolicyControl struct {
	registration atomic.Bool
	login        atomic.Bool
}

func NewPolicyControl(initial domain.Settings) *PolicyControl {
	p := &PolicyControl{}
	p.registration.Store(initial.RegistrationEnabled)
	p.login.Store(initial.LoginEnabled)
	return p
}

// Toggle inverte o toggle e devolve o novo estado.
func (p *PolicyControl) Toggle(t domain.Toggle) (bool, error) {
	switch t {
	case domain.ToggleRegistration:
		return flip(&p.registration), nil
	case domain.ToggleLogin:
		return flip(&p.login), nil
	default:
		return false, domain.InvalidAdminAction("unknown toggle %q", t)
	}
}

// Enforced informa se a categoria está sujeita a cota agora.
// Só register e login têm toggle; admin-login é sempre aplicado.
func (p *PolicyControl) Enforced(c domain.Category) bool {
	switch c {
	case domain.CategoryRegister:
		return p.registration.Load()
	case domain.CategoryLogin:
		return p.login.Load()
	default:
		return true
	}
}

func (p *PolicyControl) Settings() domain.Settings {
	return domain.Settings{
		RegistrationEnabled: p.registration.Load(),
		LoginEnabled:        p.login.Load(),
	}
}

func flip(b *atomic.Bool) bool {
	for {
		old := b.Load()
		if b.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
