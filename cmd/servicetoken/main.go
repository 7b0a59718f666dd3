// Command servicetoken prints a Bearer service token for one telephony node.
//
//	servicetoken -node pbx-01
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"callplane/internal/auth"
	"callplane/internal/config"
)

func main() {
	node := flag.String("node", "", "telephony node id carried as the token subject")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		slog.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	tok, err := m.IssueServiceToken(time.Now(), *node)
	if err != nil {
		slog.Error("issue failed", "err", err)
		os.Exit(2)
	}
	fmt.Println(tok)
	slog.Info("service token issued", "node", *node, "ttl", m.TTL().String())
}
