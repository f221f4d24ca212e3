package application

import (
	"errors"
	"fmt"
	"time"

	"bulkhead-gateway/middleware/bulkhead/domain"
)

// ErrInvalidConfig é retornado (via wrap) por Config.Validate.
var ErrInvalidConfig = errors.New("bulkhead: invalid config")

// Config é imutável depois que o Gate é construído.
type Config struct {
	// MaxConcurrent é o número de vagas por partição.
	MaxConcurrent int
	// MaxWaiting limita quantas requisições esperam vaga, somando todas as partições.
	// 0 significa sem fila: quem não pega vaga na hora é rejeitado.
	MaxWaiting int
	// Timeout é quanto uma requisição espera por vaga. 0 significa não esperar.
	Timeout time.Duration
	// PerPath particiona por path exato; desligado, tudo cai na partição global.
	PerPath bool
	// PathLimits sobrescreve MaxConcurrent para paths específicos (só com PerPath).
	PathLimits map[string]int
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 100,
		MaxWaiting:    50,
		Timeout:       30 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("%w: max concurrent must be >= 1, got %d", ErrInvalidConfig, c.MaxConcurrent)
	}
	if c.MaxWaiting < 0 {
		return fmt.Errorf("%w: max waiting must be >= 0, got %d", ErrInvalidConfig, c.MaxWaiting)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0, got %s", ErrInvalidConfig, c.Timeout)
	}
	for path, limit := range c.PathLimits {
		if limit < 1 {
			return fmt.Errorf("%w: limit for path %q must be >= 1, got %d", ErrInvalidConfig, path, limit)
		}
	}
	return nil
}

// LimitFor devolve a capacidade da partição: PathLimits[key] ou MaxConcurrent.
// Sem PerPath a partição global sempre usa MaxConcurrent.
func (c Config) LimitFor(key domain.Key) int {
	if !c.PerPath {
		return c.MaxConcurrent
	}
	if limit, ok := c.PathLimits[string(key)]; ok {
		return limit
	}
	return c.MaxConcurrent
}

// clone copia PathLimits para o Gate não enxergar mutações feitas pelo chamador.
func (c Config) clone() Config {
	if c.PathLimits == nil {
		return c
	}
	limits := make(map[string]int, len(c.PathLimits))
	for k, v := range c.PathLimits {
		limits[k] = v
	}
	c.PathLimits = limits
	return c
}
