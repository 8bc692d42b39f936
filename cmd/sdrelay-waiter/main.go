// Command sdrelay-waiter is the host-side half of the readiness relay,
// meant to run as the ExecStart process of a Type=notify service unit.
// It launches the container-run command given on the command line,
// watches the shared relay state for readiness, and acknowledges the
// supervisor under its own process identity.
//
// Exit codes:
//
//	0   readiness was forwarded and the container command later exited 0
//	N   the container command's own exit code, before or after readiness
//	    (a zero exit before readiness is mapped to 1)
//	75  timed out waiting for readiness (EX_TEMPFAIL)
//	69  supervisor socket present but the notification failed (EX_UNAVAILABLE)
//	1   usage or setup error
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"sdrelay/internal/channel"
	"sdrelay/internal/waiter"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	containerName := flag.String("container", "", "container to stop via the Docker API on failure")
	verbose := flag.Bool("verbose", false, "show detailed logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <container-command> [args...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  %s          shared directory (default %s)\n", channel.EnvSharedDir, waiter.DefaultSharedDir)
		fmt.Fprintf(os.Stderr, "  %s             readiness timeout in seconds (default %v)\n", waiter.EnvTimeout, waiter.DefaultTimeout)
		fmt.Fprintf(os.Stderr, "  %s   container to stop on failure, same as -container\n", waiter.EnvContainer)
		fmt.Fprintf(os.Stderr, "  %s     boolean-like, same as -verbose\n", waiter.EnvVerbose)
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(waiter.ExitSetup)
	}

	logger := log.New(os.Stderr, "[waiter] ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := waiter.LoadConfig(*configPath)
	if err != nil {
		logger.Printf("%v", err)
		os.Exit(waiter.ExitSetup)
	}
	if *containerName != "" {
		cfg.ContainerName = *containerName
	}
	if *verbose {
		cfg.Verbose = true
	}
	cfg.Logger = logger

	os.Exit(waiter.Run(cfg, flag.Args()))
}
