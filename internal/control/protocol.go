package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/marlinhq/indexd/internal/ferr"
)

// StatusDTO is the JSON shape returned for a "status" request (spec §6).
type StatusDTO struct {
	State           string   `json:"state"`
	EventsProcessed uint64   `json:"events_processed"`
	QueueSize       int      `json:"queue_size"`
	UptimeSecs      float64  `json:"uptime_secs"`
	WatchedPaths    []string `json:"watched_paths,omitempty"`
}

const dialTimeout = 2 * time.Second

// Serve accepts connections on ln, replying to each with one request/reply
// exchange: "status" gets the JSON encoding of statusFn(), "stop" gets the
// literal "ok" and its connection closed before stopFn is called, after
// which Serve returns. Any other
// request gets "ok" with no side effect. Serve always closes the
// connection after replying, per spec §4.I's one-request-per-connection
// protocol.
func Serve(ln net.Listener, statusFn func() StatusDTO, stopFn func() error) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return ferr.Wrap(ferr.Watch, err, "accept control connection")
		}

		req, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			req = ""
		}
		req = strings.TrimSpace(req)

		switch req {
		case "status":
			body, _ := json.Marshal(statusFn())
			_, _ = conn.Write(body)
			conn.Close()
		case "stop":
			_, _ = conn.Write([]byte("ok"))
			conn.Close()
			if stopFn != nil {
				if err := stopFn(); err != nil {
					return err
				}
			}
			return nil
		default:
			_, _ = conn.Write([]byte("ok"))
			conn.Close()
		}
	}
}

// Request dials 127.0.0.1:port and sends req, returning the single reply.
func Request(port int, req string) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return "", ferr.Wrap(ferr.Watch, err, "dial control port %d", port)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(req + "\n")); err != nil {
		return "", ferr.Wrap(ferr.Watch, err, "send %q to control port %d", req, port)
	}

	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		return "", ferr.Wrap(ferr.Watch, err, "read reply from control port %d", port)
	}
	return string(buf[:n]), nil
}

// RequestStatus sends "status" and decodes the reply.
func RequestStatus(port int) (StatusDTO, error) {
	reply, err := Request(port, "status")
	if err != nil {
		return StatusDTO{}, err
	}
	var dto StatusDTO
	if err := json.Unmarshal([]byte(reply), &dto); err != nil {
		return StatusDTO{}, ferr.Wrap(ferr.Other, err, "parse status reply %q", reply)
	}
	return dto, nil
}
