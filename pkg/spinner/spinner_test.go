package spinner

import (
	"bytes"
	"testing"
	"time"
)

func TestSpinner(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	s := New(buf, "Waiting for benchmark_train...")
	s.Restart()
	time.Sleep(time.Second)
	s.Stop()
	if buf.Len() == 0 {
		t.Fatal("expected spinner output")
	}
}
