package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const requestTimeout = 10 * time.Minute

func endpoint(path string) string {
	return strings.TrimRight(serverAddr, "/") + path
}

// do sends the request and returns the body, turning transport errors and
// non-2xx answers into a Go error.
func do(a *fiber.Agent) ([]byte, error) {
	a.Timeout(requestTimeout)
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if code < 200 || code > 299 {
		var e struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("%s (%d %s)", e.Error, code, e.Code)
		}
		return nil, fmt.Errorf("unexpected status %d", code)
	}
	return body, nil
}

func submitScript(code []byte, blocking bool) ([]byte, error) {
	a := fiber.Post(endpoint("/scripts/execute"))
	a.ContentType("text/plain")
	a.Body(code)
	if blocking {
		a.QueryString("blocking=true")
	}
	return do(a)
}

func listScripts(status, order string) ([]byte, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if order != "" {
		q.Set("order", order)
	}
	a := fiber.Get(endpoint("/scripts"))
	if len(q) > 0 {
		a.QueryString(q.Encode())
	}
	return do(a)
}

func getScript(id string) ([]byte, error) {
	return do(fiber.Get(endpoint("/scripts/" + url.PathEscape(id))))
}

func stopScript(id string) ([]byte, error) {
	return do(fiber.Post(endpoint("/scripts/" + url.PathEscape(id) + "/stop")))
}

func removeScript(id string) ([]byte, error) {
	return do(fiber.Delete(endpoint("/scripts/" + url.PathEscape(id))))
}

// printJSON pretty-prints a JSON body to stdout.
func printJSON(body []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		os.Stdout.Write(body)
		fmt.Println()
		return
	}
	out.WriteByte('\n')
	os.Stdout.Write(out.Bytes())
}
