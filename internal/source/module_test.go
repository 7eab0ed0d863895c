package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flagTrigger struct{ fired bool }

func (f *flagTrigger) Fire() { f.fired = true }

func TestReadGuardReturnsText(t *testing.T) {
	m := New("let x = 1")
	g1, err := m.AcquireRead(context.Background(), 1, &flagTrigger{})
	require.NoError(t, err)
	require.Equal(t, "let x = 1", g1.Text())
	g1.Release()
}

func TestWriteRevokesLowerPriorityReaders(t *testing.T) {
	m := New("let x = 1")
	lowTrig := &flagTrigger{}
	reader, err := m.AcquireRead(context.Background(), 1, lowTrig)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		writer, err := m.AcquireWrite(context.Background(), 5, &flagTrigger{})
		require.NoError(t, err)
		writer.Edit(4, 5, "y")
		writer.Release()
		close(done)
	}()

	// Give the writer goroutine time to observe the reader and fire its trigger.
	time.Sleep(20 * time.Millisecond)
	require.True(t, lowTrig.fired)
	reader.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer never acquired after reader released")
	}
	require.Equal(t, "let y = 1", m.AcquireTextForTest())
}

// AcquireTextForTest is a test-only convenience avoiding a throwaway guard
// dance in every assertion above.
func (m *Module) AcquireTextForTest() string {
	g, err := m.AcquireRead(context.Background(), 0, &flagTrigger{})
	if err != nil {
		return ""
	}
	defer g.Release()
	return g.Text()
}

func TestVersionIncrementsOnEdit(t *testing.T) {
	m := New("abc")
	require.Equal(t, int64(0), m.Version())
	g, err := m.AcquireWrite(context.Background(), 0, &flagTrigger{})
	require.NoError(t, err)
	g.Edit(0, 1, "x")
	g.Release()
	require.Equal(t, int64(1), m.Version())
}

func TestLineColumn(t *testing.T) {
	m := New("ab\ncd\nef")
	line, col := m.LineColumn(3)
	require.Equal(t, 2, line)
	require.Equal(t, 1, col)
}
