package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/config.txt", func(rw http.ResponseWriter, req *http.Request) {
		rw.Write([]byte("===========================train_benchmark_params==========================\n"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	buf := bytes.NewBuffer(nil)
	d, err := Download(zap.NewExample(), buf, ts.URL+"/config.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(d, []byte("train_benchmark_params")) {
		t.Fatalf("unexpected download contents %q", string(d))
	}
}

func TestIsURL(t *testing.T) {
	if !IsURL("https://example.com/configs/cylinder2d.txt") {
		t.Fatal("expected URL")
	}
	if IsURL("/var/lib/tipc/cylinder2d.txt") {
		t.Fatal("expected not URL")
	}
}
