package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chatter/internal/app"
)

func main() {
	addr := flag.String("addr", getEnv("CHATTER_ADDR", ":8080"), "server listen address")
	dbPath := flag.String("db", app.DefaultDBPath(), "path to the SQLite database")
	uploadDir := flag.String("upload-dir", app.DefaultUploadDir(), "directory for message images")
	jwtSecret := flag.String("jwt-secret", os.Getenv("CHATTER_JWT_SECRET"), "secret for session tokens")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, app.ServerConfig{
		Addr:      *addr,
		DBPath:    *dbPath,
		UploadDir: *uploadDir,
		JWTSecret: *jwtSecret,
	})
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("chatter server listening on %s", handle.Addr())
	if err := handle.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
