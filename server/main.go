package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vmihailenco/msgpack/v5"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "caveman.db", "SQLite database path")
	pgDSN := flag.String("pg", "", "Postgres DSN (overrides -db when set)")
	clientDir := flag.String("client", "../client", "Path to client directory")
	adminPass := flag.String("admin-password", "caveman", "Initial admin password (first run only)")
	flag.Parse()

	var store Store
	var err error
	if *pgDSN != "" {
		store, err = OpenPostgres(*pgDSN)
	} else {
		store, err = OpenSQLite(*dbPath)
	}
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	auth, err := NewAuth(store, *adminPass)
	if err != nil {
		log.Fatalf("init auth: %v", err)
	}

	journal := NewJournal(store)
	defer journal.Stop()

	encode := func(gb GameBase) ([]byte, error) { return msgpack.Marshal(gb) }
	rooms := NewRoomRegistry(store, journal, encode)

	hub := NewHub(store, journal, auth, rooms)
	go hub.Run()

	api := NewAPI(store, auth, rooms)
	mux := SetupRoutes(hub, api, *clientDir)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Printf("Server starting on %s", *addr)
		log.Printf("Serving client files from %s", *clientDir)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	server.Close()
}
