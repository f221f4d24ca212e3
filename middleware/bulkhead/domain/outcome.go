package domain

// Outcome é o resultado da admissão de uma requisição.
type Outcome int

const (
	// Admitted: a requisição pegou uma vaga e pode executar.
	Admitted Outcome = iota
	// Overloaded: fila de espera cheia, rejeitada sem esperar.
	Overloaded
	// TimedOut: esperou o timeout inteiro e nenhuma vaga liberou.
	TimedOut
	// Cancelled: o contexto do chamador encerrou durante a espera.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case Overloaded:
		return "overloaded"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
