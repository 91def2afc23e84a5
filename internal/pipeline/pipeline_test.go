package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/denoise"
	"github.com/cwbudde/docdenoise/internal/raster"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writePages writes n small gray pages named 1.png..n.png into dir
func writePages(t *testing.T, dir string, n int, value uint8) []string {
	t.Helper()
	var paths []string
	for k := 1; k <= n; k++ {
		g := raster.NewGray(4, 6)
		for i := range g.Pix {
			g.Pix[i] = value
		}
		g.Pix[0] = 0
		path := filepath.Join(dir, fmt.Sprintf("%d.png", k))
		require.NoError(t, raster.Save(path, g))
		paths = append(paths, path)
	}
	return paths
}

func TestDenoiseWritesOutputsInOrder(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "denoised")
	inputs := writePages(t, in, 5, 180)

	var mu sync.Mutex
	var names []string
	p := New(Options{Workers: 3, Progress: func(done, total int, name string) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 5, total)
		names = append(names, name)
		assert.Len(t, names, done)
	}})

	outputs, err := p.Denoise(context.Background(), denoise.AllWhite{}, inputs, out)
	require.NoError(t, err)
	require.Len(t, outputs, 5)
	assert.Len(t, names, 5)

	for i, path := range outputs {
		assert.Equal(t, filepath.Join(out, fmt.Sprintf("%d.png", i+1)), path)
		g, err := raster.Load(path)
		require.NoError(t, err)
		for _, v := range g.Pix {
			require.Equal(t, uint8(255), v)
		}
	}
}

func TestDenoiseMissingInput(t *testing.T) {
	p := New(Options{Workers: 2})
	_, err := p.Denoise(context.Background(), denoise.Copy{}, []string{filepath.Join(t.TempDir(), "nope.png")}, t.TempDir())
	assert.Error(t, err)
}

func TestDenoiseCancelled(t *testing.T) {
	inputs := writePages(t, t.TempDir(), 3, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).Denoise(ctx, denoise.Copy{}, inputs, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMeasurePooledRMSE(t *testing.T) {
	predDir := t.TempDir()
	truthDir := t.TempDir()

	// Page 1 is exact, page 2 differs by 51 (0.2) on every pixel
	exact := raster.NewGray(2, 2)
	off := raster.NewGray(2, 2)
	for i := range off.Pix {
		off.Pix[i] = 51
	}
	require.NoError(t, raster.Save(filepath.Join(predDir, "1.png"), exact))
	require.NoError(t, raster.Save(filepath.Join(truthDir, "1.png"), exact))
	require.NoError(t, raster.Save(filepath.Join(predDir, "2.png"), off))
	require.NoError(t, raster.Save(filepath.Join(truthDir, "2.png"), exact))

	pred, err := dataset.Glob(predDir, "*.png")
	require.NoError(t, err)
	truth, err := dataset.Glob(truthDir, "*.png")
	require.NoError(t, err)
	pairs, err := dataset.Pair(pred, truth)
	require.NoError(t, err)

	report, err := New(Options{Workers: 2}).Measure(context.Background(), pairs)
	require.NoError(t, err)

	require.Len(t, report.Images, 2)
	assert.Equal(t, "1", report.Images[0].Name)
	assert.Equal(t, 0.0, report.Images[0].RMSE())
	assert.InDelta(t, 0.2, report.Images[1].RMSE(), 1e-12)
	// sqrt((0 + 4*0.04) / 8)
	assert.InDelta(t, 0.1414213562, report.RMSE, 1e-9)
}

func TestMeasureShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	require.NoError(t, raster.Save(a, raster.NewGray(2, 2)))
	require.NoError(t, raster.Save(b, raster.NewGray(3, 2)))

	_, err := New(Options{}).Measure(context.Background(), []dataset.FilePair{{A: a, B: b}})
	var shapeErr *raster.ShapeError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestSubmitWritesPartsAndMerge(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	g := raster.NewGray(1, 2)
	g.Pix[0], g.Pix[1] = 255, 0
	for _, name := range []string{"1.png", "3.png"} {
		require.NoError(t, raster.Save(filepath.Join(in, name), g))
	}
	inputs, err := dataset.Glob(in, "*.png")
	require.NoError(t, err)

	merged := filepath.Join(out, "submission.csv")
	parts, err := New(Options{}).Submit(context.Background(), inputs, out, merged)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, "1.csv"), filepath.Join(out, "3.csv")}, parts)

	data, err := os.ReadFile(merged)
	require.NoError(t, err)
	assert.Equal(t, "id,value\n1_1_1,1\n1_1_2,0\n3_1_1,1\n3_1_2,0\n", string(data))
}

func TestSubmitWithoutMerge(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	inputs := writePages(t, in, 2, 10)

	_, err := New(Options{}).Submit(context.Background(), inputs, out, "")
	require.NoError(t, err)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, strings.HasSuffix(e.Name(), ".csv"))
	}
}

func TestWatchDenoisesNewPages(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()

	processed := make(chan string, 4)
	p := New(Options{Debounce: 50 * time.Millisecond, Progress: func(done, total int, name string) {
		processed <- name
	}})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- p.Watch(ctx, denoise.AllWhite{}, dir, "*.png", out)
	}()

	// Give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	writePages(t, dir, 1, 90)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	select {
	case name := <-processed:
		assert.Equal(t, "1.png", name)
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for watched page")
	}

	cancel()
	require.NoError(t, <-errc)

	g, err := raster.Load(filepath.Join(out, "1.png"))
	require.NoError(t, err)
	assert.Equal(t, uint8(255), g.Pix[0])
	_, err = os.Stat(filepath.Join(out, "notes.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestWatchRejectsOutputInsideWatchedDir(t *testing.T) {
	dir := t.TempDir()
	err := New(Options{}).Watch(context.Background(), denoise.Copy{}, dir, "*.png", dir)
	assert.Error(t, err)
}
