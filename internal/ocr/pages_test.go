package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.tif")
	if err := os.WriteFile(path, []byte("II*\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEngine_ProcessPages(t *testing.T) {
	e, api := newReadyEngine(t)
	api.pages = []string{"first page\n", "second page\n"}
	it, err := e.Iterator()
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	path := writeInput(t)

	out, err := e.ProcessPages(context.Background(), path, RenderText)
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if out != "first page\n\fsecond page\n" {
		t.Errorf("output = %q", out)
	}
	if len(api.processed) != 1 || api.processed[0] != path {
		t.Errorf("native processed %v", api.processed)
	}
	if api.timeouts[0] != 0 {
		t.Errorf("timeout without deadline = %d, want 0", api.timeouts[0])
	}

	// The previous image and its iterators are gone.
	if _, err := it.Text(LevelWord); !errors.Is(err, ErrStaleIterator) {
		t.Errorf("iterator after ProcessPages = %v, want ErrStaleIterator", err)
	}
	if _, err := e.UTF8Text(); !errors.Is(err, ErrNoImage) {
		t.Errorf("UTF8Text after ProcessPages = %v, want ErrNoImage", err)
	}
}

func TestEngine_ProcessPagesDeadline(t *testing.T) {
	e, api := newReadyEngine(t)
	api.pages = []string{"page"}
	path := writeInput(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := e.ProcessPages(ctx, path, RenderHOCR); err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if ms := api.timeouts[0]; ms <= 0 || ms > 60000 {
		t.Errorf("native timeout = %dms", ms)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if _, err := e.ProcessPages(cancelled, path, RenderText); !errors.Is(err, ErrCancelled) {
		t.Errorf("cancelled context = %v, want ErrCancelled", err)
	}
	if len(api.processed) != 1 {
		t.Errorf("native ran %d times, want 1", len(api.processed))
	}
}

func TestEngine_ProcessPagesErrors(t *testing.T) {
	e, _, _ := newFakeEngine(t)
	path := writeInput(t)
	if _, err := e.ProcessPages(context.Background(), path, RenderText); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("before Init = %v", err)
	}

	e, api := newReadyEngine(t)
	if _, err := e.ProcessPages(context.Background(), filepath.Join(t.TempDir(), "none.tif"), RenderText); err == nil {
		t.Error("missing input accepted")
	}
	if _, err := e.ProcessPages(context.Background(), path, RenderFormat(9)); err == nil {
		t.Error("invalid format accepted")
	}

	var re *RecognitionError
	if _, err := e.ProcessPages(context.Background(), path, RenderTSV); !errors.As(err, &re) {
		t.Errorf("native failure = %v, want *RecognitionError", err)
	}
	if len(api.processed) != 1 {
		t.Errorf("native ran %d times, want 1", len(api.processed))
	}
}

func TestEngine_InitForAnalysePage(t *testing.T) {
	e, api := newReadyEngine(t)
	queued := Setting{Name: string(VarLoadSystemDawg), Value: "0"}
	e.SetVariable(VarLoadSystemDawg, queued.Value)

	if err := e.InitForAnalysePage(); err != nil {
		t.Fatalf("InitForAnalysePage: %v", err)
	}
	if api.layoutInit != 1 || api.ends != 1 {
		t.Errorf("layoutInit=%d ends=%d, want 1 and 1", api.layoutInit, api.ends)
	}
	if !e.Initialized() {
		t.Error("Initialized() = false after InitForAnalysePage")
	}

	if err := e.SetImage(grayBuffer(200, 50)); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	it, err := e.AnalyseLayout()
	if err != nil {
		t.Fatalf("AnalyseLayout: %v", err)
	}
	it.Close()

	if _, err := e.UTF8Text(); !errors.Is(err, ErrLayoutOnly) {
		t.Errorf("UTF8Text = %v, want ErrLayoutOnly", err)
	}
	if err := e.Recognize(context.Background(), nil); !errors.Is(err, ErrLayoutOnly) {
		t.Errorf("Recognize = %v, want ErrLayoutOnly", err)
	}
	if _, err := e.ProcessPages(context.Background(), writeInput(t), RenderText); !errors.Is(err, ErrLayoutOnly) {
		t.Errorf("ProcessPages = %v, want ErrLayoutOnly", err)
	}

	// A full Init restores recognition and applies what was queued.
	if err := e.Init(DefaultInitOptions()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	vars := api.inits[len(api.inits)-1].vars
	if len(vars) != 1 || vars[0] != queued {
		t.Errorf("init vars = %v, want [%v]", vars, queued)
	}
	if err := e.SetImage(grayBuffer(200, 50)); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if _, err := e.UTF8Text(); err != nil {
		t.Errorf("UTF8Text after Init: %v", err)
	}
}

func TestEngine_ThresholdScaleFactor(t *testing.T) {
	e, _, _ := newFakeEngine(t)
	if _, err := e.ThresholdScaleFactor(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("before Init = %v", err)
	}

	e, api := newReadyEngine(t)
	api.scale = 2
	if f, err := e.ThresholdScaleFactor(); err != nil || f != 2 {
		t.Errorf("ThresholdScaleFactor = %d, %v", f, err)
	}
}
