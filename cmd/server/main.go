package main

import (
	"log"
	"net/http"
	"os"

	"repello/internal/api"
	"repello/internal/config"
	"repello/internal/matching"
	"repello/internal/metrics"
	"repello/internal/stream"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %s\n", err)
	}

	market := matching.NewMarket()
	for _, symbol := range cfg.DefaultSymbols {
		market.Book(symbol)
	}

	m := metrics.NewMetrics()
	collector := metrics.NewCollector()

	hub := stream.NewHub()
	go hub.Run()

	server := api.NewServer(cfg.ListenAddr, market, m, collector, hub)

	go func() {
		log.Printf("metrics listening on %s\n", cfg.MetricsAddr)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("prometheus metrics server stopped: %s\n", err)
		}
	}()

	mux := server.Mux()
	if cfg.StreamPath != "/ws" {
		mux.HandleFunc("GET "+cfg.StreamPath, func(w http.ResponseWriter, r *http.Request) {
			if err := stream.ServeWS(hub, w, r); err != nil {
				log.Printf("stream: %s\n", err)
			}
		})
	}

	log.Printf("order API listening on %s, stream on %s%s\n", cfg.ListenAddr, cfg.ListenAddr, cfg.StreamPath)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatalf("could not start server: %s\n", err)
	}
}
