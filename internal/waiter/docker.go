package waiter

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// ContainerStopper tears down the container itself through the Docker
// API. Signaling the launcher child is not always enough: killing a
// `docker run` client can leave the container it started running, and
// then the service the supervisor gave up on keeps consuming resources.
type ContainerStopper struct {
	client *client.Client
	name   string
	logger *log.Logger
}

// NewContainerStopper connects to the Docker daemon for the named
// container.
func NewContainerStopper(name string, logger *log.Logger) (*ContainerStopper, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}
	return &ContainerStopper{client: dockerClient, name: name, logger: logger}, nil
}

// Stop requests a graceful stop with the given grace period and
// escalates to an immediate kill if that fails.
func (cs *ContainerStopper) Stop(ctx context.Context, grace time.Duration) error {
	cs.logger.Printf("stopping container %s via docker (grace %v)", cs.name, grace)

	graceSecs := int(grace.Seconds())
	if err := cs.client.ContainerStop(ctx, cs.name, container.StopOptions{Timeout: &graceSecs}); err != nil {
		cs.logger.Printf("container stop failed: %v, killing", err)
		if killErr := cs.client.ContainerKill(ctx, cs.name, "KILL"); killErr != nil {
			return fmt.Errorf("stop container %s: %w", cs.name, killErr)
		}
	}
	return nil
}
