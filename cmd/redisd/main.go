// Command redisd starts a Redis-compatible key/value server speaking
// RESP2 over TCP, optionally as a secondary of another instance.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"redisd/internal/config"
	"redisd/internal/dispatch"
	"redisd/internal/rlog"
	"redisd/internal/server"
)

var log = rlog.New("main")

func main() {
	port := flag.Int("port", 6379, "TCP port to listen on")
	dir := flag.String("dir", "", "directory containing the RDB file to preload")
	dbFilename := flag.String("dbfilename", "", "RDB filename within --dir")
	replicaOf := flag.String("replicaof", "", `"<host> <port>" of a primary to replicate from`)
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	rlog.DEBUG = *debug

	cfg := config.DefaultConfig()
	cfg.Port = *port
	cfg.Dir = *dir
	cfg.DBFilename = *dbFilename

	role := dispatch.RolePrimary
	if *replicaOf != "" {
		host, hostPort, err := parseReplicaOf(*replicaOf)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg.SetReplicaOf(config.ReplicaOf{Host: host, Port: hostPort})
		role = dispatch.RoleSecondary
	}

	d := dispatch.New(role, cfg)
	if err := d.PreloadRDB(); err != nil {
		log.Warnf("RDB preload failed, starting with an empty store: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.New(d, fmt.Sprintf(":%d", cfg.Port))
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("server exited: %v", err)
		os.Exit(1)
	}
}

// parseReplicaOf splits the "<host> <port>" form the --replicaof flag
// takes, matching the one CLI flags consumed by the bootstrap.
func parseReplicaOf(raw string) (host, port string, err error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return "", "", fmt.Errorf(`--replicaof expects "<host> <port>", got %q`, raw)
	}
	return fields[0], fields[1], nil
}
