// Command sdrelay-wrapper is the container-side half of the readiness
// relay. It binds an emulated notification socket inside the shared
// directory, spawns the target application with NOTIFY_SOCKET pointed
// at it, persists every notification to the shared state file, and
// exits with the target's exit code.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"sdrelay/internal/channel"
	"sdrelay/internal/wrapper"
)

func main() {
	sharedDir := flag.String("shared-dir", "", "shared directory (default $SHARED_DIR or "+wrapper.DefaultSharedDir+")")
	verbose := flag.Bool("verbose", false, "show detailed logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  %s    shared directory for the relay channel\n", channel.EnvSharedDir)
		fmt.Fprintf(os.Stderr, "  %s  boolean-like, same as -verbose\n", wrapper.EnvVerbose)
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	dir := *sharedDir
	if dir == "" {
		dir = os.Getenv(channel.EnvSharedDir)
	}
	if dir == "" {
		dir = wrapper.DefaultSharedDir
	}

	logger := log.New(os.Stderr, "[wrapper] ", log.LstdFlags|log.Lmsgprefix)

	os.Exit(wrapper.Run(wrapper.Config{
		SharedDir: dir,
		Args:      flag.Args(),
		Verbose:   *verbose || wrapper.BoolEnv(wrapper.EnvVerbose),
		Logger:    logger,
	}))
}
