// Package application contém os casos de uso do bulkhead: classificação do path em
// partição, registro lazy de pools por partição e o gate de admissão
// (vaga imediata, fila global limitada, espera com timeout).
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Gate.Admit(ctx, method, path) retorna uma Admission (outcome + release).
package application
