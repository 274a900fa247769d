package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bantay-ai/bantay/internal/events"
)

func main() {
	addr := flag.String("addr", ":8099", "listen address for classification receiver")
	flag.Parse()

	r := mux.NewRouter()
	r.HandleFunc("/events", handleEvent).Methods(http.MethodPost)
	r.HandleFunc("/", handleEvent).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("classification receiver listening on %s (POST JSON to /events)...", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("receiver error: %v", err)
	}
}

func handleEvent(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()

	var ev events.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Printf("received non-event payload: path=%s len=%d: %v", r.URL.Path, len(body), err)
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	category := "-"
	if ev.Result != nil {
		category = fmt.Sprintf("%s (%.3f)", ev.Result.PredictedCategory, ev.Result.Confidence)
	}
	log.Printf("event %s id=%s request=%s report=%s outcome=%s category=%s\n%s",
		r.Header.Get("X-Bantay-Event-Id"), ev.EventID, ev.RequestID, ev.ReportID, ev.Outcome, category, string(body))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, `{"status":"ok"}`)
}
