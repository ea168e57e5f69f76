package docker_worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func readFile(dir, name string) string {
	data, _ := os.ReadFile(filepath.Join(dir, name))
	return string(data)
}

var pythonSpec = model.LanguageSpec{
	ID:          "python",
	DisplayName: "Python (3.8.1)",
	Sandbox: model.SandboxSpec{
		Image:      "python:3.8-slim",
		SourceFile: "main.py",
		RunCmd:     "python3 main.py",
	},
}

var cppSpec = model.LanguageSpec{
	ID:          "cpp",
	DisplayName: "C++ (GCC 9.2.0)",
	Sandbox: model.SandboxSpec{
		Image:      "gcc:9.2",
		SourceFile: "main.cpp",
		CompileCmd: "g++ -O2 -o main main.cpp",
		RunCmd:     "./main",
	},
}

func TestExecuteWritesSourceAndInput(t *testing.T) {
	fake := newFakeDockerClient(func(call containerCreateCall) fakeRun {
		return fakeRun{stdout: "6\n"}
	})
	executor := newWithClient(fake, Config{TimeLimit: 5 * time.Second, MemoryBytes: 128 << 20}, nil)

	out := executor.Execute(context.Background(), "print(sum(map(int, input().split())))", pythonSpec, "1 2 3")

	require.False(t, out.Failed())
	assert.Equal(t, "6", out.Output)
	require.NotNil(t, out.ExecutionTimeMs)

	require.Len(t, fake.createCalls, 1)
	call := fake.createCalls[0]
	assert.Equal(t, "python:3.8-slim", call.config.Image)
	assert.True(t, call.config.NetworkDisabled)
	assert.Equal(t, []string{"sh", "-c", "timeout 5 python3 main.py < input.txt"}, call.config.Cmd)
	assert.Equal(t, int64(128<<20), call.hostConfig.Memory)
	assert.Equal(t, []string{"ALL"}, call.hostConfig.CapDrop)
	assert.Equal(t, "print(sum(map(int, input().split())))", call.files["main.py"])
	assert.Equal(t, "1 2 3", call.files["input.txt"])

	assert.Equal(t, []string{"container-0"}, fake.removed)
	dir, _, _ := strings.Cut(call.hostConfig.Binds[0], ":")
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "work dir should be removed")
}

func TestExecuteCompiledLanguageScript(t *testing.T) {
	fake := newFakeDockerClient(func(call containerCreateCall) fakeRun {
		return fakeRun{stdout: "hi"}
	})
	executor := newWithClient(fake, Config{TimeLimit: 2 * time.Second}, nil)

	out := executor.Execute(context.Background(), "int main(){}", cppSpec, "")

	require.False(t, out.Failed())
	script := fake.createCalls[0].config.Cmd[2]
	assert.Equal(t, "g++ -O2 -o main main.cpp 1>&2 || exit 100; timeout 2 ./main < input.txt", script)
}

func TestExecuteExitCodes(t *testing.T) {
	tests := []struct {
		name      string
		run       fakeRun
		wantError string
	}{
		{
			name:      "compile error",
			run:       fakeRun{status: 100, stderr: "main.cpp:1: error: expected ';'\n"},
			wantError: "Compilation error: main.cpp:1: error: expected ';'",
		},
		{
			name:      "time limit",
			run:       fakeRun{status: 124},
			wantError: "Time limit exceeded",
		},
		{
			name:      "out of memory",
			run:       fakeRun{status: 137, state: &types.ContainerState{OOMKilled: true}},
			wantError: "Memory limit exceeded",
		},
		{
			name:      "runtime error with stderr",
			run:       fakeRun{status: 1, stderr: "ZeroDivisionError: division by zero\n"},
			wantError: "ZeroDivisionError: division by zero",
		},
		{
			name:      "silent non-zero exit",
			run:       fakeRun{status: 3},
			wantError: "Process exited with code 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeDockerClient(func(call containerCreateCall) fakeRun { return tt.run })
			executor := newWithClient(fake, Config{}, nil)

			out := executor.Execute(context.Background(), "code", cppSpec, "")

			assert.Equal(t, tt.wantError, out.Error)
			assert.Equal(t, model.ProgramError, out.ErrorKind)
			assert.NotNil(t, out.ExecutionTimeMs)
		})
	}
}

func TestExecuteUsesContainerTimestamps(t *testing.T) {
	fake := newFakeDockerClient(func(call containerCreateCall) fakeRun {
		return fakeRun{stdout: "ok", state: &types.ContainerState{
			StartedAt:  "2024-05-01T10:00:00.000000000Z",
			FinishedAt: "2024-05-01T10:00:00.250000000Z",
		}}
	})
	executor := newWithClient(fake, Config{}, nil)

	out := executor.Execute(context.Background(), "print('ok')", pythonSpec, "")

	require.NotNil(t, out.ExecutionTimeMs)
	assert.Equal(t, int64(250), *out.ExecutionTimeMs)
}

func TestExecuteCreateFailureIsBackendError(t *testing.T) {
	fake := newFakeDockerClient(func(call containerCreateCall) fakeRun {
		return fakeRun{createErr: errors.New("no such image")}
	})
	executor := newWithClient(fake, Config{}, nil)

	out := executor.Execute(context.Background(), "print(1)", pythonSpec, "")

	assert.Equal(t, "Failed to create container: no such image", out.Error)
	assert.Equal(t, model.BackendError, out.ErrorKind)
	assert.Nil(t, out.ExecutionTimeMs)
	assert.Empty(t, fake.removed)
}

func TestExecuteWithoutSandbox(t *testing.T) {
	fake := newFakeDockerClient(func(call containerCreateCall) fakeRun { return fakeRun{} })
	executor := newWithClient(fake, Config{}, nil)

	out := executor.Execute(context.Background(), "x", model.LanguageSpec{ID: "cobol", DisplayName: "COBOL"}, "")

	assert.Equal(t, "No sandbox configured for COBOL", out.Error)
	assert.Equal(t, model.BackendError, out.ErrorKind)
	assert.Empty(t, fake.createCalls)
}

func TestPullImagesDeduplicates(t *testing.T) {
	fake := newFakeDockerClient(func(call containerCreateCall) fakeRun { return fakeRun{} })
	executor := newWithClient(fake, Config{}, nil)

	second := pythonSpec
	second.ID = "python2"

	require.NoError(t, executor.PullImages(context.Background(), []model.LanguageSpec{pythonSpec, second, cppSpec}))
	assert.Equal(t, []string{"python:3.8-slim", "gcc:9.2"}, fake.imagePulls)
}

func TestCappedBuffer(t *testing.T) {
	buf := &cappedBuffer{limit: 5}
	n, err := buf.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = buf.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	assert.Equal(t, "abcde\n[output truncated]", buf.String())
}
