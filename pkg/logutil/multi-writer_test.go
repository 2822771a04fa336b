package logutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/paddlepaddle/tipc-bench/pkg/fileutil"
)

func TestMultiWriter(t *testing.T) {
	tmpPath := fileutil.GetTempFilePath() + ".log"
	defer os.RemoveAll(tmpPath)

	lg, wr, logFile, err := NewWithStderrWriter("info", []string{tmpPath})
	if err != nil {
		t.Fatal(err)
	}
	defer logFile.Close()

	lg.Info("hi")
	fmt.Fprintf(wr, "hello %q\n", "test")
	fmt.Fprintf(wr, "hello %q\n", "test")

	b, err := os.ReadFile(tmpPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "hello") {
		t.Fatalf("expected multi-writer output in log file, got %q", string(b))
	}
}
