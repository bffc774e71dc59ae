package server

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ironsheep/scan-workbench/internal/gateway"
	"github.com/ironsheep/scan-workbench/internal/model"
)

// pipeBackend connects a gateway client to a server over in-memory pipes.
type pipeBackend struct {
	client *gateway.Client
	// serverOut is the server's write end; closing it cuts the stream the
	// client reads.
	serverOut *io.PipeWriter
	served    chan error
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newPipeBackend(t *testing.T, gw gateway.Gateway) *pipeBackend {
	t.Helper()

	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	b := &pipeBackend{serverOut: serverOut, served: make(chan error, 1)}
	go func() {
		err := New(gw, "test", nil).Serve(context.Background(), serverIn, serverOut)
		serverOut.Close()
		b.served <- err
	}()

	b.client = gateway.NewClient(clientIn, clientOut, closerFunc(clientOut.Close), nil)
	t.Cleanup(func() { b.client.Close() })
	return b
}

func TestClient_RoundTrip(t *testing.T) {
	gw := &fakeGateway{}
	b := newPipeBackend(t, gw)
	ctx := context.Background()

	if err := b.client.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := b.client.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	record, err := b.client.LoadImage(ctx, "/scans/page1.png")
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if record.ID != "id-page1.png" || record.Name != "page1.png" || record.Width != 640 {
		t.Errorf("record: got %+v", record)
	}

	full, err := b.client.LoadImageFull(ctx, "/scans/page1.png")
	if err != nil || full != "data:image/png;base64,FULL" {
		t.Errorf("LoadImageFull: got %q, %v", full, err)
	}

	settings := model.ProcessingSettings{BlurRadius: 2, Threshold: 0}
	preview, err := b.client.PreprocessImage(ctx, "/scans/page1.png", settings)
	if err != nil || preview != "data:image/png;base64,PREVIEW" {
		t.Errorf("PreprocessImage: got %q, %v", preview, err)
	}
	if gw.lastSettings != settings {
		t.Errorf("settings crossed the wire as %+v, want %+v", gw.lastSettings, settings)
	}

	region := model.Region{ID: "r1", X: 1, Y: 2, Width: 30, Height: 40, Label: "total"}
	req := gateway.NewRegionRequest(record.ID, region, 270).WithSettings(model.ProcessingSettings{Threshold: model.ThresholdOtsu})
	result, err := b.client.ProcessRegion(ctx, req)
	if err != nil {
		t.Fatalf("ProcessRegion failed: %v", err)
	}
	if result.RegionID != "r1" || result.Cells[0][1].Text != "42" {
		t.Errorf("result: got %+v", result)
	}
	if gw.lastRegion != req {
		t.Errorf("request crossed the wire as %+v, want %+v", gw.lastRegion, req)
	}

	path, err := b.client.SaveResults(ctx, []model.OutputCard{{ImageID: "a"}}, model.FormatTXT)
	if err != nil || path != "/exports/ocr-results.txt" {
		t.Errorf("SaveResults: got %q, %v", path, err)
	}
}

func TestClient_ErrorKinds(t *testing.T) {
	ctx := context.Background()

	b := newPipeBackend(t, &fakeGateway{err: gateway.NewInvalidArgumentError(gateway.OpPreprocessImage, model.ErrInvalidSettings)})
	_, err := b.client.PreprocessImage(ctx, "/a.png", model.DefaultSettings())
	if gateway.KindOf(err) != gateway.KindInvalidArgument {
		t.Errorf("kind: got %q, want %q (%v)", gateway.KindOf(err), gateway.KindInvalidArgument, err)
	}
	if !errors.Is(err, gateway.ErrInvalidArgument) {
		t.Errorf("errors.Is(err, ErrInvalidArgument) should hold for %v", err)
	}

	b = newPipeBackend(t, &fakeGateway{err: gateway.NewBackendError(gateway.OpLoadImage, "failed to read image", errors.New("missing"))})
	_, err = b.client.LoadImage(ctx, "/missing.png")
	if !gateway.IsBackend(err) {
		t.Errorf("expected backend error, got %v", err)
	}

	// Rejected before reaching the gateway.
	_, err = b.client.SaveResults(ctx, nil, "xlsx")
	if gateway.KindOf(err) != gateway.KindInvalidArgument {
		t.Errorf("bad format kind: got %q (%v)", gateway.KindOf(err), err)
	}
}

func TestClient_TransportErrorAfterClose(t *testing.T) {
	b := newPipeBackend(t, &fakeGateway{})

	if err := b.client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case err := <-b.served:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after the client closed")
	}

	_, err := b.client.LoadImage(context.Background(), "/a.png")
	if !gateway.IsTransport(err) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestClient_TransportErrorFailsPendingCall(t *testing.T) {
	gw := &fakeGateway{entered: make(chan string, 1), release: make(chan struct{})}
	b := newPipeBackend(t, gw)
	defer close(gw.release)

	errCh := make(chan error, 1)
	go func() {
		_, err := b.client.LoadImage(context.Background(), "/slow.png")
		errCh <- err
	}()

	select {
	case <-gw.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("call never reached the gateway")
	}
	b.serverOut.CloseWithError(errors.New("backend crashed"))

	select {
	case err := <-errCh:
		if !gateway.IsTransport(err) {
			t.Errorf("expected transport error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending call was not released")
	}
}

func TestClient_ContextCancel(t *testing.T) {
	gw := &fakeGateway{entered: make(chan string, 1), release: make(chan struct{})}
	b := newPipeBackend(t, gw)
	defer close(gw.release)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := b.client.LoadImage(ctx, "/slow.png")
		errCh <- err
	}()

	<-gw.entered
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled call did not return")
	}

	// The stream is still usable.
	if err := b.client.Ping(context.Background()); err != nil {
		t.Errorf("Ping after cancel failed: %v", err)
	}
}
