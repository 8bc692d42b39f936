package wrapper

import (
	"log"
	"os"
	"os/signal"
	"syscall"
)

// forwardSignals subscribes to termination requests delivered to the
// wrapper and forwards each one to the target, so an external stop
// (e.g. container stop) reaches the real application instead of
// orphaning it. The returned function cancels the subscription.
func forwardSignals(sup *Supervisor, logger *log.Logger) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigCh {
			logger.Printf("forwarding signal %v to target", sig)
			if err := sup.Signal(sig); err != nil {
				logger.Printf("warning: could not forward %v: %v", sig, err)
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(sigCh)
	}
}
