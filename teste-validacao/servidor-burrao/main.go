package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Upstream lento para validar o bulkhead do gateway:
//
//	UPSTREAM_URL=http://localhost:8081 BULKHEAD_MAX_CONCURRENT=2 BULKHEAD_MAX_WAITING=1 go run ./cmd/gateway
//	curl 'localhost:8080/showTela?ms=3000' (várias vezes em paralelo)
func main() {
	http.HandleFunc("/showTela", func(w http.ResponseWriter, r *http.Request) {
		ms, _ := strconv.Atoi(r.URL.Query().Get("ms"))
		if ms > 0 {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Tela do Sistema</h1><p>Requisição recebida com sucesso após %dms!</p>", ms)
		fmt.Printf("Log: Alguém acessou o endpoint /showTela (request id %s)\n", r.Header.Get("X-Request-ID"))
	})
	fmt.Println("Servidor rodando em http://localhost:8081")
	err := http.ListenAndServe(":8081", nil)
	if err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
