package docker_worker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

type fakeRun struct {
	status    int64
	stdout    string
	stderr    string
	state     *types.ContainerState
	createErr error
}

type containerCreateCall struct {
	id         string
	config     *container.Config
	hostConfig *container.HostConfig
	files      map[string]string
}

type fakeDockerClient struct {
	mu          sync.Mutex
	nextID      int
	imagePulls  []string
	createCalls []containerCreateCall
	removed     []string
	runs        map[string]fakeRun
	run         func(call containerCreateCall) fakeRun
	closed      bool
}

func newFakeDockerClient(run func(call containerCreateCall) fakeRun) *fakeDockerClient {
	return &fakeDockerClient{runs: make(map[string]fakeRun), run: run}
}

func (f *fakeDockerClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeDockerClient) ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	f.imagePulls = append(f.imagePulls, ref)
	f.mu.Unlock()
	return io.NopCloser(strings.NewReader(`{"status":"Pull complete"}`)), nil
}

// ContainerCreate snapshots the bind-mounted work dir so tests can assert on
// what the executor wrote before the temp dir is removed.
func (f *fakeDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error) {
	call := containerCreateCall{config: config, hostConfig: hostConfig, files: readBind(hostConfig)}

	f.mu.Lock()
	call.id = fmt.Sprintf("container-%d", f.nextID)
	f.nextID++
	f.createCalls = append(f.createCalls, call)
	f.mu.Unlock()

	run := f.run(call)
	if run.createErr != nil {
		return container.CreateResponse{}, run.createErr
	}

	f.mu.Lock()
	f.runs[call.id] = run
	f.mu.Unlock()
	return container.CreateResponse{ID: call.id}, nil
}

func (f *fakeDockerClient) ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error) {
	f.mu.Lock()
	run := f.runs[containerID]
	f.mu.Unlock()

	var buf bytes.Buffer
	if run.stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(run.stdout))
	}
	if run.stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(run.stderr))
	}

	local, remote := net.Pipe()
	_ = remote.Close()
	return types.HijackedResponse{Conn: local, Reader: bufio.NewReader(&buf)}, nil
}

func (f *fakeDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return nil
}

func (f *fakeDockerClient) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	f.mu.Lock()
	run := f.runs[containerID]
	f.mu.Unlock()

	statusCh := make(chan container.WaitResponse, 1)
	statusCh <- container.WaitResponse{StatusCode: run.status}
	return statusCh, make(chan error, 1)
}

func (f *fakeDockerClient) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	f.mu.Lock()
	run := f.runs[containerID]
	f.mu.Unlock()

	if run.state == nil {
		return types.ContainerJSON{}, nil
	}
	return types.ContainerJSON{ContainerJSONBase: &types.ContainerJSONBase{ID: containerID, State: run.state}}, nil
}

func (f *fakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.mu.Lock()
	f.removed = append(f.removed, containerID)
	f.mu.Unlock()
	return nil
}

func readBind(hostConfig *container.HostConfig) map[string]string {
	files := make(map[string]string)
	if hostConfig == nil || len(hostConfig.Binds) == 0 {
		return files
	}
	dir, _, _ := strings.Cut(hostConfig.Binds[0], ":")
	for _, name := range listDir(dir) {
		files[name] = readFile(dir, name)
	}
	return files
}
