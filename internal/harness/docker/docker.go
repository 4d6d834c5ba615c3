// Package docker implements an execution harness that runs the
// instrumented target as a Docker container instead of a local subprocess,
// for users fuzzing a service that only ships as an image. The coverage
// bitmap is exchanged through a bind-mounted file rather than stdin/stdout,
// since container stdio attachment is considerably higher-latency per run.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	digest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/jihwankim/protofuzz/pkg/harness"
)

// Harness runs one fresh container per message-sequence execution, wired
// to a docker client constructed via client.NewClientWithOpts(client.FromEnv,
// client.WithAPIVersionNegotiation()).
type Harness struct {
	cli *client.Client

	Image         string
	Cmd           []string
	BitmapSize    int
	HostBitmapDir string

	// ImageTarget records the resolved manifest digest of the target
	// image, so a session's debug log can pin exactly which image ran.
	ImageTarget specs.Descriptor

	containerID string
	stdin       io.WriteCloser
	response    bytes.Buffer
	bitmap      []byte
	minBmp      []byte

	seenHashes  map[uint32]bool
	seenMinHash map[uint32]bool
	seenHangMin map[uint32]bool
}

// New creates a docker-backed harness. hostBitmapDir must be a directory
// bind-mountable into the container at /protofuzz/bitmap.
func New(image string, cmd []string, bitmapSize int, hostBitmapDir string) (*Harness, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Harness{
		cli:           cli,
		Image:         image,
		Cmd:           cmd,
		BitmapSize:    bitmapSize,
		HostBitmapDir: hostBitmapDir,
		seenHashes:    map[uint32]bool{},
		seenMinHash:   map[uint32]bool{},
		seenHangMin:   map[uint32]bool{},
	}, nil
}

func (h *Harness) bitmapHostPath() string {
	return h.HostBitmapDir + "/bitmap.bin"
}

func (h *Harness) SetUp() error {
	ctx := context.Background()
	inspect, _, err := h.cli.ImageInspectWithRaw(ctx, h.Image)
	if err == nil {
		h.ImageTarget = specs.Descriptor{
			MediaType: specs.MediaTypeImageManifest,
			Digest:    digest.Digest(inspect.ID),
			Size:      inspect.Size,
		}
	}

	return os.WriteFile(h.bitmapHostPath(), make([]byte, h.BitmapSize), 0o600)
}

func (h *Harness) ExecTimeout() time.Duration { return 0 }

func (h *Harness) Debug() {}

func (h *Harness) Clear() error {
	if h.cli != nil {
		return h.cli.Close()
	}
	return nil
}

func (h *Harness) PreRunTarget(timeout time.Duration) error {
	ctx := context.Background()
	if err := os.WriteFile(h.bitmapHostPath(), make([]byte, h.BitmapSize), 0o600); err != nil {
		return fmt.Errorf("reset bitmap file: %w", err)
	}

	resp, err := h.cli.ContainerCreate(ctx, &container.Config{
		Image:        h.Image,
		Cmd:          h.Cmd,
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	}, &container.HostConfig{
		Binds: []string{h.HostBitmapDir + ":/protofuzz/bitmap"},
	}, nil, nil, "")
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	h.containerID = resp.ID

	if err := h.cli.ContainerStart(ctx, h.containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	h.response.Reset()
	return nil
}

func (h *Harness) RunTarget(msg []byte) error {
	ctx := context.Background()
	attach, err := h.cli.ContainerAttach(ctx, h.containerID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
	})
	if err != nil {
		return fmt.Errorf("attach container: %w", err)
	}
	defer attach.Close()
	_, err = attach.Conn.Write(msg)
	return err
}

func (h *Harness) PostRunTarget(timeout time.Duration) (harness.FaultCode, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	statusCh, errCh := h.cli.ContainerWait(ctx, h.containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			h.finalizeBitmap()
			_ = h.cli.ContainerKill(context.Background(), h.containerID, "SIGKILL")
			return harness.FaultTimeout, nil
		}
		return harness.FaultError, err
	case status := <-statusCh:
		h.finalizeBitmap()
		if status.StatusCode != 0 {
			return harness.FaultCrash, nil
		}
		if h.BitmapSize > 0 && allZero(h.bitmap) {
			return harness.FaultNoInstrumentation, nil
		}
		return harness.FaultNone, nil
	}
}

func (h *Harness) finalizeBitmap() {
	h.bitmap, _ = os.ReadFile(h.bitmapHostPath())
	h.minBmp = minimize(h.bitmap)
	_ = h.cli.ContainerRemove(context.Background(), h.containerID, container.RemoveOptions{Force: true})
}

func (h *Harness) ResponseBuffer() []byte { return h.response.Bytes() }

func (h *Harness) TraceBytesCount() int {
	count := 0
	for _, b := range h.bitmap {
		if b != 0 {
			count++
		}
	}
	return count
}

func (h *Harness) TraceHash32() uint32    { return crc32.ChecksumIEEE(h.bitmap) }
func (h *Harness) TraceMinHash32() uint32 { return crc32.ChecksumIEEE(h.minBmp) }

func (h *Harness) HasNewBit() harness.NewBitFlag {
	hv := h.TraceHash32()
	mh := h.TraceMinHash32()

	newEdge := !h.seenMinHash[mh]
	newByte := !h.seenHashes[hv]
	h.seenHashes[hv] = true
	h.seenMinHash[mh] = true

	switch {
	case newEdge:
		return harness.NewEdge
	case newByte:
		return harness.NewBit
	default:
		return harness.NoNewBit
	}
}

func (h *Harness) TimeoutHasNewBit() bool {
	mh := h.TraceMinHash32()
	if h.seenHangMin[mh] {
		return false
	}
	h.seenHangMin[mh] = true
	return true
}

func (h *Harness) SimplifyTraceBits() {
	h.minBmp = minimize(h.bitmap)
}

func minimize(bitmap []byte) []byte {
	if bitmap == nil {
		return nil
	}
	out := make([]byte, len(bitmap))
	for i, b := range bitmap {
		if b != 0 {
			out[i] = 1
		}
	}
	return out
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
