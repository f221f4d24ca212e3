// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - ChanPool: semáforo simples baseado em channel (padrão)
//   - FIFOPool: semáforo estritamente FIFO usando golang.org/x/sync/semaphore
//   - MemoryStatsStore / RedisStatsStore / PromStatsStore: estatísticas das decisões de admissão
//   - SnapshotCollector: gauges Prometheus lidos do Snapshot do gate
package infra
