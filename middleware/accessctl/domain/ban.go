package domain

import (
	"context"
	"time"
)

const RoleAdmin = "admin"

// BanRecord é o estado de suspensão de uma conta, mantido pela persistência externa.
//
// ExpiresAt nil com IsBanned=true é banimento permanente.
type BanRecord struct {
	IsBanned  bool
	ExpiresAt *time.Time
	Reason    *string
}

// Lifted é o registro gravado quando um banimento temporário expira.
func Lifted() BanRecord {
	return BanRecord{}
}

// Account é a visão mínima de um usuário que o gate e o admin precisam.
type Account struct {
	ID   string
	Role string
	Ban  BanRecord
}

func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

type BanStatus int

const (
	NotBanned BanStatus = iota
	Active
	Expired
)

func (s BanStatus) String() string {
	switch s {
	case Active:
		return "active"
	case Expired:
		return "expired"
	default:
		return "not_banned"
	}
}

// BanDecision é o resultado do gate. Reason/ExpiresAt só são preenchidos em Active.
type BanDecision struct {
	Status    BanStatus
	Reason    *string
	ExpiresAt *time.Time
}

// Denied informa se o acesso deve ser negado (403).
func (d BanDecision) Denied() bool { return d.Status == Active }

// Err converte uma decisão Active em *SuspendedError; nil nos demais casos.
func (d BanDecision) Err() error {
	if !d.Denied() {
		return nil
	}
	return &SuspendedError{Reason: d.Reason, ExpiresAt: d.ExpiresAt}
}

// BanRepository é o colaborador de persistência das contas.
//
// Get devolve ErrAccountNotFound quando a conta não existe.
//
// LiftExpired grava Lifted() somente se a conta ainda está banida com
// expiração <= now, numa única operação condicional. Devolve false quando
// nada foi alterado (conta ausente, já liberada ou banida de novo).
type BanRepository interface {
	Get(ctx context.Context, userID string) (Account, error)
	SaveBan(ctx context.Context, userID string, rec BanRecord) error
	LiftExpired(ctx context.Context, userID string, now time.Time) (bool, error)
}
