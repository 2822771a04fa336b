package csvutil

import (
	"os"
	"strings"
	"testing"
)

func TestSave(t *testing.T) {
	f, err := os.CreateTemp(os.TempDir(), "csvutil")
	if err != nil {
		t.Fatal(err)
	}
	output := f.Name()
	f.Close()
	defer os.RemoveAll(output)

	header := []string{"model_name", "batch_size", "ips"}
	rows := [][]string{
		{"cylinder2d_unsteady_bs10_fp32_DP", "10", "19.33"},
		{"darcy2d_bs8_fp16_DP", "8", "102.5"},
	}
	if err = Save(header, rows, output); err != nil {
		t.Fatal(err)
	}

	d, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(d)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "model_name,batch_size,ips" {
		t.Fatalf("unexpected header %q", lines[0])
	}
}
