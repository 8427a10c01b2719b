// docker.go implements the docker sandbox mode: a disposable nixos/nix
// container that nix commands are executed in via `docker exec`.
//
// Container lifecycle (create, start, remove, stale-container cleanup)
// goes through the Docker Engine SDK with automatic socket detection.
// Command execution uses the docker CLI because exec with inherited
// stdio maps directly onto `docker exec -it`.
//
// All sandbox containers carry "nix-review.managed-by" labels so stale
// containers from interrupted runs can be discovered and removed.
package sandbox

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/Mic92/nix-review/internal/model"
)

// sandboxImage is the container image the docker sandbox runs nix in.
const sandboxImage = "nixos/nix"

// defaultPingTimeout is the maximum duration to wait for a Docker daemon
// response during a Ping operation.
const defaultPingTimeout = 5 * time.Second

// Label keys persisted on sandbox containers. The prefix namespaces
// them away from labels set by other tools.
const (
	labelManagedBy = "nix-review.managed-by"
	labelCacheRoot = "nix-review.cache-root"

	managedByValue = "nix-review"
)

// dockerClient wraps the Docker Engine SDK client with automatic socket
// detection and connectivity verification.
type dockerClient struct {
	inner *client.Client
}

// newDockerClient creates a Docker client. DOCKER_HOST is respected when
// set; otherwise known socket paths are probed per platform.
func newDockerClient() (*dockerClient, error) {
	host := os.Getenv("DOCKER_HOST")
	if host == "" {
		detected, err := detectDockerHost()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError,
				"Docker socket not found", err)
		}
		host = detected
	}

	// WithAPIVersionNegotiation ensures compatibility across daemon
	// versions without hardcoding a specific API version.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to create Docker client for host %q", host), err)
	}
	return &dockerClient{inner: c}, nil
}

// detectDockerHost probes known socket paths for the current platform.
// Existence checks are fast and don't require a running daemon; ping
// handles connectivity verification.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// Docker Desktop symlinks /var/run/docker.sock, but newer
		// versions only create the per-user socket.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err == nil {
			conn.Close()
			return "npipe://" + pipePath, nil
		}
		return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectUnixSocket returns the Docker host URI for the first socket path
// that exists on the filesystem, checked in preference order.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf(
		"Docker socket not found at any of: %v — is Docker running?",
		paths,
	)
}

// ping verifies the Docker daemon is reachable and responsive.
func (c *dockerClient) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			"Docker daemon is not responding — is Docker running?", err)
	}
	return nil
}

func (c *dockerClient) close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// dockerSandbox owns the lifetime of one sandbox container.
type dockerSandbox struct {
	cli         *dockerClient
	containerID string
}

// startDockerSandbox connects to the daemon, removes sandbox containers
// left over from interrupted runs, and creates and starts a fresh
// container with cacheRoot and repoRoot bind-mounted at their host
// paths. Identical paths on both sides keep worktree checkouts and
// store paths consistent between host and container.
func startDockerSandbox(ctx context.Context, cacheRoot, repoRoot string) (*dockerSandbox, error) {
	cli, err := newDockerClient()
	if err != nil {
		return nil, err
	}
	if err := cli.ping(ctx); err != nil {
		_ = cli.close()
		return nil, err
	}

	if err := removeStaleSandboxes(ctx, cli); err != nil {
		_ = cli.close()
		return nil, err
	}

	if err := pullImageIfMissing(ctx, sandboxImage); err != nil {
		_ = cli.close()
		return nil, err
	}

	name := fmt.Sprintf("nix-review-%d", os.Getpid())

	binds := []string{cacheRoot + ":" + cacheRoot}
	if repoRoot != "" {
		binds = append(binds, repoRoot+":"+repoRoot)
	}

	created, err := cli.inner.ContainerCreate(ctx,
		&container.Config{
			Image: sandboxImage,
			// The container idles; all work arrives via docker exec.
			Entrypoint: []string{"sleep", "infinity"},
			Labels: map[string]string{
				labelManagedBy: managedByValue,
				labelCacheRoot: cacheRoot,
			},
		},
		&container.HostConfig{
			Binds: binds,
		},
		nil, nil, name)
	if err != nil {
		_ = cli.close()
		return nil, model.WrapCLIError(model.ExitGeneralError,
			"failed to create sandbox container", err)
	}

	if err := cli.inner.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = cli.inner.ContainerRemove(ctx, created.ID, container.RemoveOptions{Force: true})
		_ = cli.close()
		return nil, model.WrapCLIError(model.ExitGeneralError,
			"failed to start sandbox container", err)
	}

	return &dockerSandbox{cli: cli, containerID: created.ID}, nil
}

// remove force-removes the sandbox container and closes the client.
func (d *dockerSandbox) remove(ctx context.Context) error {
	defer func() { _ = d.cli.close() }()

	err := d.cli.inner.ContainerRemove(ctx, d.containerID, container.RemoveOptions{
		Force: true,
	})
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to remove sandbox container %q", d.containerID), err)
	}
	return nil
}

// removeStaleSandboxes discovers containers from previous nix-review
// runs via the managed-by label and force-removes them. Filtering is
// done server-side by the Docker API.
func removeStaleSandboxes(ctx context.Context, cli *dockerClient) error {
	filterArgs := filters.NewArgs(
		filters.Arg("label", labelManagedBy+"="+managedByValue),
	)

	containers, err := cli.inner.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			"failed to list sandbox containers", err)
	}

	for _, c := range containers {
		if err := cli.inner.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to remove stale sandbox container %q", c.ID), err)
		}
	}
	return nil
}

// pullImageIfMissing pulls the sandbox image when it is not present
// locally. The docker CLI is used so pull progress renders the way
// users expect.
func pullImageIfMissing(ctx context.Context, image string) error {
	inspect := exec.CommandContext(ctx, "docker", "image", "inspect", image)
	inspect.Stdout = nil
	inspect.Stderr = nil
	if inspect.Run() == nil {
		return nil
	}

	pull := exec.CommandContext(ctx, "docker", "pull", image)
	output, err := pull.CombinedOutput()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to pull sandbox image %q: %s",
				image, strings.TrimSpace(string(output))), err)
	}
	return nil
}
