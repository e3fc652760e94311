package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cbodonnell/fairroll/pkg/client"
	"github.com/cbodonnell/fairroll/pkg/log"
	"github.com/google/uuid"
)

func main() {
	serverAddr := flag.String("server", "ws://localhost:8081/ws", "fairroll websocket endpoint")
	clientSeed := flag.String("client-seed", "", "client seed (random if empty)")
	rounds := flag.Int("rounds", 1, "number of rounds to play")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}
	log.SetDefaultLogger(log.New(os.Stderr, "", log.DefaultLoggerFlag, parsedLogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, *serverAddr)
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
	defer c.Close()

	enc := json.NewEncoder(os.Stdout)
	for i := 0; i < *rounds; i++ {
		seed := *clientSeed
		if seed == "" {
			seed = uuid.NewString()
		}

		hash, err := c.Commit(ctx)
		if err != nil {
			log.Error("Failed to get commitment: %v", err)
			os.Exit(1)
		}

		record, err := c.Play(ctx, hash, seed)
		if err != nil {
			log.Error("Failed to play round: %v", err)
			os.Exit(1)
		}
		if err := enc.Encode(record); err != nil {
			log.Error("Failed to write record: %v", err)
			os.Exit(1)
		}
	}
}
