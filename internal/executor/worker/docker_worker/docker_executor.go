package docker_worker

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

const (
	workdir                = "/workdir"
	inputFile              = "input.txt"
	compileErrorStatusCode = 100 // emitted by the wrapper script when the compile step fails
	timeoutStatusCode      = 124
	busyboxTimeoutCode     = 143
)

// Config bounds the resources of every sandbox container.
type Config struct {
	MemoryBytes int64
	NanoCPUs    int64
	PidsLimit   int64
	TimeLimit   time.Duration
	OutputLimit int
}

// DockerJobExecutor compiles and runs code inside a throwaway container per call.
type DockerJobExecutor struct {
	cli    dockerClient
	cfg    Config
	logger *zap.Logger
}

// New connects to the docker daemon described by the environment.
func New(cfg Config, logger *zap.Logger) (*DockerJobExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return newWithClient(cli, cfg, logger), nil
}

func newWithClient(cli dockerClient, cfg Config, logger *zap.Logger) *DockerJobExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = 10 * time.Second
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = 64 << 10
	}
	if cfg.PidsLimit <= 0 {
		cfg.PidsLimit = 64
	}
	return &DockerJobExecutor{cli: cli, cfg: cfg, logger: logger}
}

func (executor *DockerJobExecutor) Close() error {
	return executor.cli.Close()
}

// PullImages pre-pulls the sandbox images so first executions aren't slow.
// The pull stream must be drained or the daemon abandons the download.
func (executor *DockerJobExecutor) PullImages(ctx context.Context, langs []model.LanguageSpec) error {
	seen := make(map[string]bool, len(langs))
	for _, lang := range langs {
		ref := lang.Sandbox.Image
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true

		executor.logger.Info("pulling sandbox image", zap.String("image", ref))
		out, err := executor.cli.ImagePull(ctx, ref, image.PullOptions{})
		if err != nil {
			return fmt.Errorf("pull %s: %w", ref, err)
		}
		_, err = io.Copy(io.Discard, out)
		out.Close()
		if err != nil {
			return fmt.Errorf("read pull stream for %s: %w", ref, err)
		}
	}
	return nil
}

func (executor *DockerJobExecutor) Execute(ctx context.Context, code string, lang model.LanguageSpec, stdin string) model.Outcome {
	if lang.Sandbox.Image == "" || lang.Sandbox.SourceFile == "" || lang.Sandbox.RunCmd == "" {
		return model.BackendFailure(fmt.Sprintf("No sandbox configured for %s", lang.DisplayName), nil)
	}

	dir, err := os.MkdirTemp("", "exec-workdir-*")
	if err != nil {
		return model.BackendFailure(fmt.Sprintf("Failed to create temp dir: %v", err), nil)
	}
	defer os.RemoveAll(dir)

	if err := writeSourceFiles(dir, lang.Sandbox, code, stdin); err != nil {
		return model.BackendFailure(fmt.Sprintf("Failed to write source file: %v", err), nil)
	}

	return executor.runContainer(ctx, dir, lang)
}

// writeSourceFiles writes the program and its stdin into the bind-mounted work dir.
func writeSourceFiles(dir string, sandbox model.SandboxSpec, code, stdin string) error {
	// the container user must be able to write build artifacts here
	if err := os.Chmod(dir, 0o777); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, sandbox.SourceFile), []byte(code), fs.FileMode(0o644)); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, inputFile), []byte(stdin), fs.FileMode(0o644))
}

// wrapperScript compiles (when needed) and runs the program with stdin from input.txt.
func wrapperScript(sandbox model.SandboxSpec, limit time.Duration) string {
	secs := int(limit.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	run := fmt.Sprintf("timeout %d %s < %s", secs, sandbox.RunCmd, inputFile)
	if sandbox.CompileCmd == "" {
		return run
	}
	return fmt.Sprintf("%s 1>&2 || exit %d; %s", sandbox.CompileCmd, compileErrorStatusCode, run)
}

func (executor *DockerJobExecutor) runContainer(ctx context.Context, dir string, lang model.LanguageSpec) model.Outcome {
	log := executor.logger.With(zap.String("language", lang.ID), zap.String("image", lang.Sandbox.Image))

	resp, err := executor.cli.ContainerCreate(ctx, &container.Config{
		Image:           lang.Sandbox.Image,
		WorkingDir:      workdir,
		Cmd:             []string{"sh", "-c", wrapperScript(lang.Sandbox, executor.cfg.TimeLimit)},
		NetworkDisabled: true,
		AttachStdout:    true,
		AttachStderr:    true,
	}, &container.HostConfig{
		Binds:       []string{fmt.Sprintf("%s:%s", dir, workdir)},
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges"},
		Resources: container.Resources{
			Memory:    executor.cfg.MemoryBytes,
			NanoCPUs:  executor.cfg.NanoCPUs,
			PidsLimit: &executor.cfg.PidsLimit,
		},
	}, nil, nil, "")
	if err != nil {
		log.Warn("container create failed", zap.Error(err))
		return model.BackendFailure(fmt.Sprintf("Failed to create container: %v", err), nil)
	}

	defer func() {
		// ctx may already be cancelled by the per-call deadline
		rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := executor.cli.ContainerRemove(rmCtx, resp.ID, container.RemoveOptions{Force: true}); err != nil {
			log.Warn("failed to remove container", zap.String("container", resp.ID), zap.Error(err))
		}
	}()

	attachResp, err := executor.cli.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return model.BackendFailure(fmt.Sprintf("Failed to attach to container: %v", err), nil)
	}
	defer attachResp.Close()

	stdout := &cappedBuffer{limit: executor.cfg.OutputLimit}
	stderr := &cappedBuffer{limit: executor.cfg.OutputLimit}
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
		copied <- err
	}()

	start := time.Now()
	if err := executor.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return model.BackendFailure(fmt.Sprintf("Failed to start container: %v", err), nil)
	}

	okChan, errChan := executor.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case data := <-okChan:
		wall := time.Since(start)
		if data.Error != nil {
			return model.BackendFailure(fmt.Sprintf("Container wait error: %s", data.Error.Message), model.Millis(wall))
		}

		select {
		case err := <-copied:
			if err != nil {
				log.Warn("stdcopy error", zap.Error(err))
			}
		case <-ctx.Done():
		}

		inspectResp, err := executor.cli.ContainerInspect(ctx, resp.ID)
		if err != nil {
			return model.BackendFailure(fmt.Sprintf("Failed to inspect container: %v", err), model.Millis(wall))
		}

		elapsed := model.Millis(runTime(inspectResp, wall))
		return classify(data.StatusCode, oomKilled(inspectResp), stdout.String(), stderr.String(), elapsed)

	case err := <-errChan:
		return model.BackendFailure(fmt.Sprintf("Container wait error: %v", err), nil)
	}
}

// runTime prefers the daemon's own start/finish timestamps and falls back to wall time.
func runTime(inspect types.ContainerJSON, wall time.Duration) time.Duration {
	if inspect.ContainerJSONBase == nil || inspect.State == nil {
		return wall
	}
	startTime, err := dateparse.ParseAny(inspect.State.StartedAt)
	if err != nil {
		return wall
	}
	finishTime, err := dateparse.ParseAny(inspect.State.FinishedAt)
	if err != nil || finishTime.Before(startTime) {
		return wall
	}
	return finishTime.Sub(startTime)
}

func oomKilled(inspect types.ContainerJSON) bool {
	return inspect.ContainerJSONBase != nil && inspect.State != nil && inspect.State.OOMKilled
}

func classify(status int64, oom bool, stdout, stderr string, elapsed *int64) model.Outcome {
	switch {
	case status == 0:
		return model.Outcome{Output: strings.TrimRight(stdout, " \t\r\n"), ExecutionTimeMs: elapsed}
	case oom:
		return model.ProgramFailure("Memory limit exceeded", elapsed)
	case status == compileErrorStatusCode:
		return model.ProgramFailure("Compilation error: "+strings.TrimSpace(stderr), elapsed)
	case status == timeoutStatusCode || status == busyboxTimeoutCode:
		return model.ProgramFailure("Time limit exceeded", elapsed)
	}

	if msg := strings.TrimSpace(stderr); msg != "" {
		return model.ProgramFailure(msg, elapsed)
	}
	return model.ProgramFailure(fmt.Sprintf("Process exited with code %d", status), elapsed)
}
