// Package bulkhead fornece o adapter HTTP (net/http) do bulkhead: limite de requisições
// executando em paralelo por partição, fila de espera global limitada e timeout de espera.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: classificação de partição, registro de pools e o gate de admissão
//   - infra: implementações concretas (semáforos, estatísticas em memória/Redis/Prometheus)
//   - bulkhead (este pacote): middleware HTTP + exclusões + tradução do resultado para status/headers
//
// Fluxo no gateway:
//
//   1) Paths excluídos passam direto para o próximo handler
//   2) Chama a camada application para obter a admissão
//   3) Fila cheia: 503 com Retry-After; timeout na fila: 503 sem Retry-After
//   4) Admitida: chama o próximo handler (ex: reverse proxy) e devolve a vaga ao final,
//      inclusive se o handler der panic
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como BULKHEAD_MAX_CONCURRENT, BULKHEAD_MAX_WAITING, BULKHEAD_TIMEOUT e BULKHEAD_PER_PATH.
package bulkhead
