// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers.
//    Evita puxar fmt só para formatação simples

package bulkhead

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// retryAfterSeconds trunca para segundos inteiros, com mínimo de 1 (Retry-After: 0 convida retry imediato).
func retryAfterSeconds(d time.Duration) int {
	s := int(d.Seconds())
	if s < 1 {
		return 1
	}
	return s
}
