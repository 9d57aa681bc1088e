package accessctl

import (
	"context"
	"net/http"
	"strings"
)

// UnknownIP é o identificador quando nenhum header de proxy veio na request.
const UnknownIP = "unknown"

// ResolveIP extrai o IP do cliente dos headers do proxy reverso:
// primeiro valor do X-Forwarded-For, depois X-Real-IP, senão "unknown".
//
// Os headers são confiados como vêm (o gateway roda atrás de um proxy
// confiável). RemoteAddr não entra na conta.
func ResolveIP(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return UnknownIP
}

// Principal é a sessão autenticada, resolvida por um colaborador externo.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// ResolveUserID devolve o id usado como identificador nas categorias autenticadas.
func ResolveUserID(p Principal) (string, bool) {
	id := strings.TrimSpace(p.UserID)
	return id, id != ""
}

// SessionFunc resolve a sessão da request. ok=false = anônimo.
type SessionFunc func(r *http.Request) (Principal, bool)

// HeaderSession lê a sessão de headers injetados pelo proxy de autenticação.
func HeaderSession(userHeader, roleHeader string) SessionFunc {
	return func(r *http.Request) (Principal, bool) {
		id := strings.TrimSpace(r.Header.Get(userHeader))
		if id == "" {
			return Principal{}, false
		}
		return Principal{UserID: id, Role: strings.TrimSpace(r.Header.Get(roleHeader))}, true
	}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Session guarda o Principal no contexto para os middlewares seguintes.
func Session(fn SessionFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fn != nil {
				if p, ok := fn(r); ok {
					r = r.WithContext(WithPrincipal(r.Context(), p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityKind escolhe de onde sai o identificador da cota.
type IdentityKind string

const (
	IdentityIP   IdentityKind = "ip"
	IdentityUser IdentityKind = "user"
)

// Identify devolve o identificador da request para o tipo pedido.
// Para IdentityUser sem sessão devolve ok=false.
func Identify(r *http.Request, kind IdentityKind) (string, bool) {
	if kind == IdentityUser {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			return "", false
		}
		return ResolveUserID(p)
	}
	return ResolveIP(r.Header), true
}
