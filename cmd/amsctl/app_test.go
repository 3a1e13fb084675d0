package main

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/config"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/storage/file"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/storage/memory"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestOpenBackend(t *testing.T) {
	t.Parallel()

	b, err := openBackend(context.Background(), config.StorageConfig{Driver: config.StorageMemory})
	require.NoError(t, err)
	require.IsType(t, &memory.Storage{}, b)

	path := filepath.Join(t.TempDir(), "s.json")
	b, err = openBackend(context.Background(), config.StorageConfig{Driver: config.StorageFile, FilePath: path})
	require.NoError(t, err)
	fs, ok := b.(*file.Storage)
	require.True(t, ok)
	require.Equal(t, path, fs.Path())
}

func TestReadLine_SharedReader(t *testing.T) {
	t.Parallel()

	in := bufio.NewReader(strings.NewReader("admin\r\nsecret"))
	var out bytes.Buffer

	u, err := prompt(in, &out, "Username: ")
	require.NoError(t, err)
	require.Equal(t, "admin", u)
	require.Equal(t, "Username: ", out.String())

	p, err := readLine(in)
	require.NoError(t, err)
	require.Equal(t, "secret", p)

	_, err = readLine(in)
	require.Error(t, err)
}

func TestVersionCmd_Short(t *testing.T) {
	t.Parallel()

	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, version+"\n", out.String())
}

func TestLoginCmd_EndToEnd(t *testing.T) {
	be := newTestBackend(t)
	path := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("API_BASE_URL", be+"/api")
	t.Setenv("STORAGE_DRIVER", "file")
	t.Setenv("STORAGE_FILE_PATH", path)
	t.Setenv("CONFIG_PATH", "")

	opts := &rootOptions{}

	login := loginCmd(opts)
	var out bytes.Buffer
	login.SetOut(&out)
	login.SetErr(&bytes.Buffer{})
	login.SetIn(strings.NewReader("secret\n"))
	login.SetArgs([]string{"-u", "admin", "--password-stdin"})
	require.NoError(t, login.Execute())
	require.Equal(t, "logged in as admin (ADMIN)\n", out.String())

	// Новый процесс восстанавливает сессию из файла.
	who := whoamiCmd(opts)
	out.Reset()
	who.SetOut(&out)
	who.SetArgs([]string{})
	require.NoError(t, who.Execute())
	require.Contains(t, out.String(), `"authenticated": true`)
	require.Contains(t, out.String(), `"username": "admin"`)

	get := getCmd(opts)
	out.Reset()
	get.SetOut(&out)
	get.SetArgs([]string{"/employees"})
	require.NoError(t, get.Execute())
	require.Contains(t, out.String(), `"name": "Ann"`)

	logout := logoutCmd(opts)
	out.Reset()
	logout.SetOut(&out)
	logout.SetArgs([]string{})
	require.NoError(t, logout.Execute())

	who = whoamiCmd(opts)
	out.Reset()
	who.SetOut(&out)
	who.SetArgs([]string{})
	require.NoError(t, who.Execute())
	require.Contains(t, out.String(), `"authenticated": false`)
}

// newTestGRPC — health-сервер на локальном порту, пускающий только с "Bearer a1".
func newTestGRPC(t *testing.T) string {
	t.Helper()

	authz := func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		if v := md.Get("authorization"); len(v) == 0 || v[0] != "Bearer a1" {
			return nil, status.Error(codes.Unauthenticated, "no session")
		}
		return handler(ctx, req)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer(grpc.UnaryInterceptor(authz))
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

func TestPingCmd_UsesSession(t *testing.T) {
	be := newTestBackend(t)
	t.Setenv("API_BASE_URL", be+"/api")
	t.Setenv("API_GRPC_ADDR", newTestGRPC(t))
	t.Setenv("STORAGE_DRIVER", "file")
	t.Setenv("STORAGE_FILE_PATH", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("CONFIG_PATH", "")

	opts := &rootOptions{}

	// Без сессии апстрим отвечает Unauthenticated, обновлять нечего.
	ping := pingCmd(opts)
	ping.SetOut(&bytes.Buffer{})
	ping.SetErr(&bytes.Buffer{})
	ping.SetArgs([]string{})
	require.Error(t, ping.Execute())

	login := loginCmd(opts)
	login.SetOut(&bytes.Buffer{})
	login.SetErr(&bytes.Buffer{})
	login.SetIn(strings.NewReader("secret\n"))
	login.SetArgs([]string{"-u", "admin", "--password-stdin"})
	require.NoError(t, login.Execute())

	var out bytes.Buffer
	ping = pingCmd(opts)
	ping.SetOut(&out)
	ping.SetArgs([]string{})
	require.NoError(t, ping.Execute())
	require.Contains(t, out.String(), "serving")
}

func TestPingCmd_NotConfigured(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://127.0.0.1:1/api")
	t.Setenv("API_GRPC_ADDR", "")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("CONFIG_PATH", "")

	ping := pingCmd(&rootOptions{})
	ping.SetOut(&bytes.Buffer{})
	ping.SetErr(&bytes.Buffer{})
	ping.SetArgs([]string{})
	require.ErrorIs(t, ping.Execute(), errNoUpstream)
}
