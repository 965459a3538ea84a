package progress

import (
	"bytes"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestConsole(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Step(1, 3, "Retrieving file listing...")
	bar := c.Start(3)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bar.Increment()
		}()
	}
	wg.Wait()
	bar.Finish()
	c.Message("Restored patch %s!", "v1")

	out := buf.String()
	assert.Contains(t, out, "[1/3] Retrieving file listing...\n")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "Restored patch v1!\n")
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Step(2, 2, "Linking new files...")
	r.Start(5).Increment()
	r.Message("Already on %s.", "v1")

	assert.Equal(t, []string{"[2/2] Linking new files..."}, r.Steps)
	assert.Equal(t, []int{5}, r.Totals)
	assert.Equal(t, []string{"Already on v1."}, r.Messages)
}
