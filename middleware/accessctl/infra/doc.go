// Package infra contém as implementações concretas das portas de domain.
//
//   - MemoryQuotaStore / RedisQuotaStore: tabela de cotas em janela fixa
//   - SQLBanRepository / MemoryBanRepository: estado de banimento das contas
//   - TokenBucketStore: token bucket por chave (golang.org/x/time/rate)
//   - ChanPool: semáforo para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore / PrometheusStats: sinks de estatística
package infra
