// Package accessctl fornece os adapters HTTP (net/http) do controle de acesso:
// cota por janela fixa, bloqueio de contas suspensas e limite de concorrência.
//
// Camadas:
//
//   - domain: tipos, portas e erros (sem net/http)
//   - application: casos de uso (QuotaService, PolicyControl, BanGate, BanService)
//   - infra: stores em memória/Redis/SQL, token bucket, semáforo, sinks de estatística
//   - admin: superfície administrativa (/rate-limits, /users/{id}/ban)
//   - accessctl (este pacote): middlewares, resolução de identidade e respostas JSON
//
// Fluxo de uma request sensível:
//
//  1. Session coloca o Principal (se houver) no contexto
//  2. QuotaMiddleware resolve o identificador (IP ou user id) e consome a cota (429)
//  3. BanMiddleware consulta o BanGate para rotas autenticadas (403)
//  4. Só então a request chega ao handler (ex: proxy reverso para a aplicação)
package accessctl
