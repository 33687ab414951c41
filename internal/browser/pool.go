package browser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/gorilla/websocket"
)

const cdpPort nat.Port = "3000/tcp"

// DockerLauncher runs one browserless Chrome container per check-in run
type DockerLauncher struct {
	client *client.Client
	image  string
}

func NewDockerLauncher(imageRef string) (*DockerLauncher, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &DockerLauncher{
		client: cli,
		image:  imageRef,
	}, nil
}

func (p *DockerLauncher) Launch(ctx context.Context, runID string) (*Instance, error) {
	containerConfig := &container.Config{
		Image: p.image,
		Labels: map[string]string{
			"run-id":     runID,
			"managed-by": "checkin-runner",
		},
		Env: []string{
			"CONNECTION_TIMEOUT=-1",
			"MAX_CONCURRENT_SESSIONS=1",
			"PREBOOT_CHROME=true",
			"EXIT_ON_HEALTH_FAILURE=false",
		},
		ExposedPorts: nat.PortSet{
			cdpPort: struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			cdpPort: []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: "0",
				},
			},
		},
	}

	resp, err := p.client.ContainerCreate(
		ctx,
		containerConfig,
		hostConfig,
		nil,
		nil,
		fmt.Sprintf("checkin-%s", shortID(runID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	instance, err := p.start(ctx, runID, resp.ID)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = p.StopBrowser(stopCtx, resp.ID)
		return nil, err
	}
	return instance, nil
}

func (p *DockerLauncher) start(ctx context.Context, runID, containerID string) (*Instance, error) {
	if err := p.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := p.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	bindings := inspect.NetworkSettings.Ports[cdpPort]
	if len(bindings) == 0 {
		return nil, fmt.Errorf("container %s exposes no CDP port", shortID(containerID))
	}
	connectURL := fmt.Sprintf("ws://127.0.0.1:%s", bindings[0].HostPort)

	if err := waitForBrowserReady(ctx, connectURL, 20, 500*time.Millisecond); err != nil {
		return nil, fmt.Errorf("browser failed to become ready: %w", err)
	}

	return &Instance{
		ID:          runID,
		ConnectURL:  connectURL,
		ContainerID: containerID,
		stop: func(ctx context.Context) error {
			return p.StopBrowser(ctx, containerID)
		},
	}, nil
}

func (p *DockerLauncher) StopBrowser(ctx context.Context, containerID string) error {
	timeout := 10
	stopOptions := container.StopOptions{
		Timeout: &timeout,
	}

	if err := p.client.ContainerStop(ctx, containerID, stopOptions); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	if err := p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}

	return nil
}

// EnsureImage pulls the browser image unless it is already present
func (p *DockerLauncher) EnsureImage(ctx context.Context) error {
	images, err := p.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == p.image {
				return nil
			}
		}
	}

	reader, err := p.client.ImagePull(ctx, p.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (p *DockerLauncher) Close() error {
	return p.client.Close()
}

// waitForBrowserReady dials the CDP websocket until it accepts a connection
func waitForBrowserReady(ctx context.Context, connectURL string, attempts int, interval time.Duration) error {
	for i := 0; i < attempts; i++ {
		dialCtx, cancel := context.WithTimeout(ctx, interval)
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, connectURL, nil)
		cancel()
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("browser did not become ready after %d attempts", attempts)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
