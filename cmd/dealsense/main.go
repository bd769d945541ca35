package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/motorline/dealsense/agent"
	"github.com/motorline/dealsense/notify"
	pkgconfig "github.com/motorline/dealsense/pkg/config"
	"github.com/motorline/dealsense/pkg/kv"
	"github.com/motorline/dealsense/pkg/llm"
	"github.com/motorline/dealsense/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		clientID   = flag.Int64("client", 0, "client id to analyze")
		domain     = flag.String("domain", "", "analyze a single domain (dossier, car_interests, tasks)")
		message    = flag.String("message", "", "append a chat message before analyzing")
		sender     = flag.String("sender", storage.SenderClient, "sender for -message (client or operator)")
		ctype      = flag.String("type", "", "content type for -message (text, photo, voice, ...)")
		serve      = flag.Bool("serve", false, "run the ingestion API and notification hub")
	)
	flag.Parse()

	log.Println("Starting dealsense...")

	cfg, err := pkgconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	// env.config in the data dir fills gaps the environment left open.
	envPath := filepath.Join(pkgconfig.DefaultDataDir(), "env.config")
	envConfig := pkgconfig.ReadEnvConfig(envPath)
	if cfg.APIKey == "" {
		cfg.APIKey = envConfig["DEALSENSE_API_KEY"]
	}
	if v, ok := envConfig["DEALSENSE_MODEL"]; ok && cfg.Model == pkgconfig.Default().Model {
		cfg.Model = v
	}

	// Persist the resolved key and model back, so the next start works
	// without the environment set.
	if cfg.APIKey != "" {
		if err := os.MkdirAll(pkgconfig.DefaultDataDir(), 0o755); err == nil {
			if err := pkgconfig.MergeEnvConfig(envPath, map[string]string{
				"DEALSENSE_API_KEY": cfg.APIKey,
				"DEALSENSE_MODEL":   cfg.Model,
			}); err != nil {
				log.Printf("env.config write failed: %v", err)
			}
		}
	}

	log.Printf("Config: provider=%s model=%s db=%s key=%s",
		cfg.Provider, cfg.Model, cfg.StoragePath, maskKey(cfg.APIKey))

	provider, err := llm.New(llm.Config{
		Provider:    cfg.Provider,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		TimeoutSecs: int(cfg.HTTPTimeout.Seconds()),
	})
	if err != nil {
		log.Fatalf("Provider init failed: %v", err)
	}

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatalf("Storage init failed: %v", err)
	}
	defer store.Close()

	engine := agent.New(cfg, provider, store)
	defer engine.Close()

	cache, err := kv.Open(kv.DefaultOptions(cfg.CachePath))
	if err != nil {
		log.Printf("Skip cache init failed: %v (continuing without cache)", err)
	} else {
		defer cache.Close()
		engine.WithCache(cache)
	}

	if *serve {
		runServer(engine, cfg)
		return
	}

	if *clientID == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if *message != "" {
		if *sender != storage.SenderClient && *sender != storage.SenderOperator {
			log.Fatalf("Unknown sender %q", *sender)
		}
		if _, err := store.AddMessage(*clientID, *sender, *ctype, *message); err != nil {
			log.Fatalf("Add message failed: %v", err)
		}
	}

	ctx := context.Background()
	var out interface{}
	if *domain != "" {
		rep, err := engine.AnalyzeDomain(ctx, *clientID, *domain)
		if err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}
		out = rep
	} else {
		report, err := engine.Analyze(ctx, *clientID)
		if err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}
		out = report
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("Encode report failed: %v", err)
	}
	fmt.Println(string(data))
}

// runServer exposes message ingestion and the notification hub. Every
// ingested message (re)arms the client's debounce timer.
func runServer(engine *agent.Engine, cfg pkgconfig.Config) {
	hub := notify.NewHub()
	defer hub.Close()
	engine.WithNotifier(notify.Multi{notify.LogNotifier{}, hub})

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			ClientID    int64  `json:"client_id"`
			Sender      string `json:"sender"`
			ContentType string `json:"content_type"`
			Content     string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.ClientID == 0 {
			http.Error(w, "client_id is required", http.StatusBadRequest)
			return
		}
		// Non-text messages (photo, voice) may carry no text at all; the
		// transcript renders them as their content-type tag.
		if req.Content == "" && (req.ContentType == "" || req.ContentType == "text") {
			http.Error(w, "content is required for text messages", http.StatusBadRequest)
			return
		}
		if req.Sender == "" {
			req.Sender = storage.SenderClient
		}
		if req.Sender != storage.SenderClient && req.Sender != storage.SenderOperator {
			http.Error(w, "sender must be client or operator", http.StatusBadRequest)
			return
		}
		if err := engine.OnMessage(req.ClientID, req.Sender, req.ContentType, req.Content); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	addr := cfg.NotifyAddr
	if addr == "" {
		addr = ":8790"
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("Serving on %s (POST /messages, WS /ws)", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Serve error: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Println("dealsense shutting down...")
	srv.Close()
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
