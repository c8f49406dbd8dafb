// Package worker drives the external face-mesh landmark detector.
//
// The detector is a python process. Frames go to its stdin and results come back on a
// side-channel pipe (FD 3), both framed as [uint32 big-endian length][payload]. The request
// payload is a JPEG; the response is JSON, either a types.LandmarkResult or a
// types.ErrorResult.
package worker

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/andresmejia3/focuswatch/internal/types"
	"github.com/andresmejia3/focuswatch/internal/utils" // Using the SafeCommand wrapper
)

// ErrDetector marks a frame the detector answered with an error payload or unreadable JSON.
// The process is still healthy; only that frame is lost.
var ErrDetector = errors.New("face mesh worker error")

// maxResponse bounds a single response body (478 landmarks as JSON is ~40KB).
const maxResponse = 16 * 1024 * 1024

// Config controls how the detector process is launched.
type Config struct {
	Python        string
	Script        string
	MaxFaces      int
	MinConfidence float64
	ReadTimeout   time.Duration // 0 disables the deadline
}

// DefaultConfig mirrors the detector settings the focus engine was tuned with.
func DefaultConfig() Config {
	return Config{
		Python:        "python3",
		Script:        "python/facemesh.py",
		MaxFaces:      1,
		MinConfidence: 0.7,
		ReadTimeout:   30 * time.Second,
	}
}

type FaceMeshWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	readTimeout time.Duration
}

// deadliner is implemented by *os.File pipes.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

func NewFaceMeshWorker(ctx context.Context, id int, cfg Config) (*FaceMeshWorker, error) {
	py := utils.NewSafeCommand(ctx, cfg.Python, "-u", cfg.Script,
		"--max-faces", strconv.Itoa(cfg.MaxFaces),
		"--min-confidence", strconv.FormatFloat(cfg.MinConfidence, 'f', -1, 64),
		"--refine-landmarks",
	)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &FaceMeshWorker{
		ID:          id,
		Cmd:         py,
		Stdin:       stdin,
		DataPipe:    r,
		readTimeout: cfg.ReadTimeout,
	}, nil
}

// Communicate sends one framed request and reads one framed response.
func (w *FaceMeshWorker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	if d, ok := w.DataPipe.(deadliner); ok && w.readTimeout > 0 {
		d.SetReadDeadline(time.Now().Add(w.readTimeout))
		defer d.SetReadDeadline(time.Time{})
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, fmt.Errorf("worker %d timed out after %s", w.ID, w.readTimeout)
		}
		return nil, err // A crashed interpreter surfaces here as EOF
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxResponse {
		return nil, fmt.Errorf("worker %d response too large: %d bytes", w.ID, respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame runs landmark detection on one JPEG frame.
func (w *FaceMeshWorker) ProcessFrame(frame []byte) (types.LandmarkResult, error) {
	raw, err := w.Communicate(frame)
	if err != nil {
		return types.LandmarkResult{}, err
	}

	var resp struct {
		types.LandmarkResult
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return types.LandmarkResult{}, fmt.Errorf("%w: malformed response: %v", ErrDetector, err)
	}
	if resp.Error != "" {
		return types.LandmarkResult{}, fmt.Errorf("%w: %s", ErrDetector, resp.Error)
	}
	return resp.LandmarkResult, nil
}

func (w *FaceMeshWorker) Close() {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd != nil {
		w.Cmd.Wait()
	}
}
