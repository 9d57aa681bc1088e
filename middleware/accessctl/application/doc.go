// Package application contém os casos de uso do controle de acesso.
//
// Depende apenas de domain e não conhece net/http:
//   - QuotaService: check por categoria respeitando os toggles da PolicyControl
//   - BanGate: reconciliação preguiçosa de banimentos expirados
//   - BanService: escrita administrativa de banimentos
//   - Throttle e ConcurrencyService: proteção do próprio gateway
package application
