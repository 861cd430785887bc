package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"chapterwatch/internal/resolver"
	"chapterwatch/internal/runner"
	"chapterwatch/pkg/utils"
)

// One-shot resolver invocation, mostly for poking at the upstream
// while debugging: prints the normalized chapter token for a manga id.
func main() {
	timeout := flag.Duration("timeout", time.Minute, "overall deadline")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: resolve [-timeout 1m] <manga-id>")
		os.Exit(2)
	}
	mangaID := flag.Arg(0)

	srvCfg := utils.LoadServerConfig()
	resCfg := utils.LoadResolveConfig()

	res := resolver.New(srvCfg.APIBase, runner.New(1), resolver.Options{
		ShortRetries:   resCfg.ShortRetries,
		ShortBase:      resCfg.ShortBase,
		AttemptTimeout: resCfg.AttemptTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token := res.Resolve(ctx, mangaID)
	if token == resolver.Unresolved {
		log.Fatalf("could not resolve %s (upstream unreachable?)", mangaID)
	}
	fmt.Println(token)
}
