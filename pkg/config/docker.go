package config

import (
	"os"
	"sync"
)

// dockerHostGateway reaches services published on the Docker host.
const dockerHostGateway = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker points a loopback PGHOST at the Docker host when the
// metastore itself runs in a container.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if inDocker && (host == "localhost" || host == "127.0.0.1") {
		return dockerHostGateway
	}
	return host
}
