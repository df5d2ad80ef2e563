package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

// healthprobe is a tiny fasthttp client suited to container healthchecks:
// exit 0 when the server reports healthy, 1 otherwise.
func main() {
	url := flag.String("url", "http://127.0.0.1:8080/api/v1/health", "health endpoint to probe")
	key := flag.String("key", "", "optional API key sent as X-API-Key")
	timeout := flag.Duration("timeout", 3*time.Second, "request timeout")
	flag.Parse()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(*url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if *key != "" {
		req.Header.Set("X-API-Key", *key)
	}

	c := &fasthttp.Client{ReadTimeout: *timeout, WriteTimeout: *timeout}
	if err := c.DoTimeout(req, resp, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d %s\n", resp.StatusCode(), resp.Body())
	if resp.StatusCode() != fasthttp.StatusOK {
		os.Exit(1)
	}
}
