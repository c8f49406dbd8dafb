package worker

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/andresmejia3/focuswatch/internal/focus"
	"github.com/andresmejia3/focuswatch/internal/types"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

// frame writes a length-prefixed payload the way the detector does.
func frame(buf *bytes.Buffer, payload []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(payload)))
	buf.Write(payload)
}

func newMockWorker() (*FaceMeshWorker, *MockCloser, *MockCloser) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}
	w := &FaceMeshWorker{
		ID:       1,
		Stdin:    stdinMock,
		DataPipe: dataPipeMock,
		// Cmd is nil because we aren't testing process management, just the protocol
	}
	return w, stdinMock, dataPipeMock
}

func TestProcessFrame(t *testing.T) {
	w, stdinMock, dataPipeMock := newMockWorker()

	face := make([]focus.Landmark, focus.MeshSize)
	face[focus.NoseTip] = focus.Landmark{X: 0.5, Y: 0.55, Z: -0.03}
	payload, err := json.Marshal(types.LandmarkResult{Width: 1280, Height: 720, Faces: [][]focus.Landmark{face}})
	if err != nil {
		t.Fatal(err)
	}
	frame(dataPipeMock.Buffer, payload)

	inputFrame := []byte{0xFF, 0xD8, 0xBE, 0xEF, 0xFF, 0xD9}
	res, err := w.ProcessFrame(inputFrame)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	// Verify Go sent the correct data TO the detector
	sent := stdinMock.Bytes()
	if len(sent) != 4+len(inputFrame) {
		t.Errorf("Expected %d bytes sent, got %d", 4+len(inputFrame), len(sent))
	}
	if binary.BigEndian.Uint32(sent[:4]) != uint32(len(inputFrame)) {
		t.Errorf("Length header mismatch: %x", sent[:4])
	}

	// Verify Go read the correct data FROM the detector
	if res.Width != 1280 || res.Height != 720 {
		t.Errorf("Expected 1280x720, got %dx%d", res.Width, res.Height)
	}
	lms := res.Primary()
	if len(lms) != focus.MeshSize {
		t.Fatalf("Expected %d landmarks, got %d", focus.MeshSize, len(lms))
	}
	if math.Abs(lms[focus.NoseTip].Y-0.55) > 1e-9 {
		t.Errorf("Expected nose y approx 0.55, got %f", lms[focus.NoseTip].Y)
	}
}

func TestProcessFrame_NoFace(t *testing.T) {
	w, _, dataPipeMock := newMockWorker()
	frame(dataPipeMock.Buffer, []byte(`{"width":640,"height":480,"faces":[]}`))

	res, err := w.ProcessFrame([]byte("frame"))
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if res.Primary() != nil {
		t.Errorf("Expected no landmarks, got %d", len(res.Primary()))
	}
}

func TestProcessFrame_Error(t *testing.T) {
	w, _, dataPipeMock := newMockWorker()

	errMsg := "ModuleNotFoundError: No module named 'mediapipe'"
	frame(dataPipeMock.Buffer, []byte(`{"error":"`+errMsg+`"}`))

	_, err := w.ProcessFrame([]byte("frame"))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrDetector) {
		t.Errorf("Expected ErrDetector, got %v", err)
	}
	if err.Error() != "face mesh worker error: "+errMsg {
		t.Errorf("Expected error message '%s', got '%v'", "face mesh worker error: "+errMsg, err)
	}
}

func TestProcessFrame_Malformed(t *testing.T) {
	w, _, dataPipeMock := newMockWorker()
	frame(dataPipeMock.Buffer, []byte("not json"))

	_, err := w.ProcessFrame([]byte("frame"))
	if err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Errorf("Expected malformed response error, got %v", err)
	}
}

func TestCommunicate_TruncatedResponse(t *testing.T) {
	w, _, dataPipeMock := newMockWorker()
	// Header promises 10 bytes, only 3 arrive (process died mid-write)
	binary.Write(dataPipeMock, binary.BigEndian, uint32(10))
	dataPipeMock.Write([]byte{1, 2, 3})

	if _, err := w.Communicate([]byte("frame")); err == nil {
		t.Fatal("Expected an error for a truncated response")
	}
}

func TestCommunicate_OversizedResponse(t *testing.T) {
	w, _, dataPipeMock := newMockWorker()
	binary.Write(dataPipeMock, binary.BigEndian, uint32(maxResponse+1))

	if _, err := w.Communicate([]byte("frame")); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected size error, got %v", err)
	}
}
