// Package linkrpc implements Hisser's Link RPC: a small in-process-style
// protocol letting another Hisser instance (or a Graphite-finder) ask a
// running server to fetch(names, start, stop) directly against its live
// buffer plus disk blocks, without going through Carbon ingest. Ported
// from original_source/hisser/http.py's mdumps/mloads msgpack framing.
//
// The original frames a request/response with a TCP half-close
// (SHUT_WR); Go has no portable half-close primitive, so this port uses a
// 4-byte big-endian length prefix instead (see SPEC_FULL.md Open
// Question 4). The payload shape otherwise matches: a "fetch" request
// carries keys/start/stop, and the response carries start/resolution/size
// alongside the result matrix, or an error string.
package linkrpc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/vmihailenco/msgpack/v5"
)

// Request is the wire shape of a Link RPC call.
type Request struct {
	Method string   `msgpack:"method"`
	Keys   []string `msgpack:"keys"`
	Start  int64    `msgpack:"start"`
	Stop   int64    `msgpack:"stop"`
}

// Response is the wire shape of a Link RPC reply.
type Response struct {
	Start      int64       `msgpack:"start"`
	Resolution int64       `msgpack:"resolution"`
	Size       int         `msgpack:"size"`
	Result     [][]float64 `msgpack:"result"`
	Error      string      `msgpack:"error,omitempty"`
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// FetchFunc answers one fetch call; implemented by pkg/reader.Reader in
// production, and stubbed directly in tests.
type FetchFunc func(keys []string, start, stop int64) (alignedStart, resolution int64, result [][]float64, err error)

// Server accepts Link RPC connections and dispatches fetch calls to Fetch.
type Server struct {
	Fetch FetchFunc
}

// Serve accepts connections from ln until it returns an error (e.g. the
// listener is closed), handling each connection in its own goroutine.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	br := bufio.NewReader(conn)
	for {
		payload, err := readFrame(br)
		if err != nil {
			return
		}
		var req Request
		if err := msgpack.Unmarshal(payload, &req); err != nil {
			writeResponse(conn, Response{Error: fmt.Sprintf("bad request: %v", err)})
			continue
		}
		writeResponse(conn, s.dispatch(req))
	}
}

func (s *Server) dispatch(req Request) Response {
	if req.Method != "fetch" {
		return Response{Error: fmt.Sprintf("unknown method %q", req.Method)}
	}
	start, resolution, result, err := s.Fetch(req.Keys, req.Start, req.Stop)
	if err != nil {
		return Response{Error: err.Error()}
	}
	size := 0
	if len(result) > 0 {
		size = len(result[0])
	}
	return Response{Start: start, Resolution: resolution, Size: size, Result: result}
}

func writeResponse(w io.Writer, resp Response) error {
	payload, err := msgpack.Marshal(resp)
	if err != nil {
		return err
	}
	return writeFrame(w, payload)
}

// Client calls a remote Hisser instance's Link RPC server.
type Client struct {
	conn net.Conn
	br   *bufio.Reader
}

// Dial connects to a Link RPC server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, br: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Fetch issues one fetch request and waits for its response.
func (c *Client) Fetch(keys []string, start, stop int64) (Response, error) {
	req := Request{Method: "fetch", Keys: keys, Start: start, Stop: stop}
	payload, err := msgpack.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	if err := writeFrame(c.conn, payload); err != nil {
		return Response{}, err
	}
	respPayload, err := readFrame(c.br)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := msgpack.Unmarshal(respPayload, &resp); err != nil {
		return Response{}, err
	}
	if resp.Error != "" {
		return Response{}, fmt.Errorf("linkrpc: %s", resp.Error)
	}
	return resp, nil
}
