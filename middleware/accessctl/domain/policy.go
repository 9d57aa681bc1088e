package domain

import (
	"fmt"
	"time"
)

// Toggle é o nome de uma política ligável/desligável em runtime.
type Toggle string

const (
	ToggleRegistration Toggle = "registration"
	ToggleLogin        Toggle = "login"
)

// Settings é o snapshot dos toggles. true = limite aplicado.
type Settings struct {
	RegistrationEnabled bool `json:"registrationEnabled"`
	LoginEnabled        bool `json:"loginEnabled"`
}

// QuotaPolicy reúne os limites estáticos por categoria.
type QuotaPolicy map[Category]Limit

// DefaultQuotaPolicy são os limites de fábrica.
func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{
		CategoryLogin:          {Max: 10, Window: 15 * time.Minute},
		CategoryAdminLogin:     {Max: 10, Window: 15 * time.Minute},
		CategoryRegister:       {Max: 10, Window: time.Hour},
		CategoryAPI:            {Max: 100, Window: time.Minute},
		CategorySupportTicket:  {Max: 5, Window: time.Hour},
		CategorySupportMessage: {Max: 20, Window: 10 * time.Minute},
		CategoryUpload:         {Max: 10, Window: time.Minute},
		CategoryProfileUpdate:  {Max: 10, Window: 15 * time.Minute},
	}
}

// Limit devolve o limite da categoria. Categoria sem limite é erro de programação
// do chamador, não condição de runtime.
func (p QuotaPolicy) Limit(c Category) (Limit, error) {
	l, ok := p[c]
	if !ok {
		return Limit{}, fmt.Errorf("no quota limit configured for category %q", c)
	}
	return l, nil
}

// Validate garante max > 0 e janela > 0 em todas as categorias.
func (p QuotaPolicy) Validate() error {
	for c, l := range p {
		if l.Max <= 0 {
			return fmt.Errorf("quota %q: max must be > 0", c)
		}
		if l.Window <= 0 {
			return fmt.Errorf("quota %q: window must be > 0", c)
		}
	}
	return nil
}
