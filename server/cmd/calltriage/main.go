package main

import (
	"flag"
	"log"
	"net/http"

	"call-triage/server/internal/analysis"
	"call-triage/server/internal/api"
	"call-triage/server/internal/collab"
	"call-triage/server/internal/config"
	"call-triage/server/internal/store"
	"call-triage/server/internal/timeline"
)

func main() {
	// 参数用 flag，部署相关的协作方地址与数据库路径用环境变量覆盖
	// （TRANSCRIPTION_URL / ACOUSTIC_URL / ENTITY_URL / CALLS_DB_PATH）。
	addr := flag.String("addr", ":8080", "http listen address")
	configPath := flag.String("config", "server/configs/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var records store.Store
	if cfg.Storage.SQLitePath != "" {
		sq, err := store.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("open call store: %v", err)
		}
		records = sq
		log.Printf("call records persisted to %s", cfg.Storage.SQLitePath)
	} else {
		records = store.NewInMemoryStore()
		log.Printf("no sqlite_path configured, call records held in memory")
	}

	invoker := analysis.NewInvoker(
		collab.NewHTTPTranscriber(cfg.Analysis.TranscriptionURL, cfg.Analysis.Timeout),
		collab.NewHTTPAcoustic(cfg.Analysis.AcousticURL, cfg.Analysis.Timeout),
		collab.NewHTTPExtractor(cfg.Analysis.EntityURL, cfg.Analysis.Timeout),
		cfg.Audio.SampleRate,
		cfg.Analysis.Timeout,
		nil,
	)

	server := api.NewServer(cfg, records, timeline.NewInMemoryStore(), invoker)

	log.Printf("calltriage server listening on %s", *addr)
	if err := http.ListenAndServe(*addr, server.Routes()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
