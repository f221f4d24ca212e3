package application

import "bulkhead-gateway/middleware/bulkhead/domain"

// Classifier mapeia o path da requisição para a chave da partição.
type Classifier struct {
	PerPath bool
}

// Classify não normaliza o path: "/a" e "/a/" são partições diferentes.
func (c Classifier) Classify(path string) domain.Key {
	if !c.PerPath {
		return domain.GlobalKey
	}
	return domain.Key(path)
}
