// Package main provides a CI-friendly WebSocket smoke test for webapp session login.
//
// It validates:
//   - handshake + subprotocol selection
//   - a placeholder token is rejected with a generic Err
//   - an undecodable frame is answered with Err, not a dropped connection
//   - a real token logs in and yields Ok(session)
//   - after renewal the presented token can no longer be replayed
//   - the renewed token logs in again
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "webapp/shared/contracts/protocol/v1"

	"github.com/coder/websocket"
)

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		token   = flag.String("token", os.Getenv("WEBAPP_SMOKE_TOKEN"), "Session token to log in with (webapp-cli token issue)")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	if strings.TrimSpace(*token) == "" {
		fatalf("missing -token (or WEBAPP_SMOKE_TOKEN)")
	}

	root := context.Background()

	conn := mustConnect(root, *wsURL, *origin, *timeout)
	defer closeWS(conn)

	resp := mustLogin(root, conn, "wrong", *timeout)
	mustFail(resp, v1.MsgLoginFailed, "placeholder token")

	mustWrite(root, conn, []byte{0xf6}, *timeout)
	mustFail(mustRead(root, conn, *timeout), v1.MsgInvalidRequest, "undecodable frame")

	resp = mustLogin(root, conn, *token, *timeout)
	s, ok := resp.Session()
	if !ok {
		fatalf("login with -token failed: %q", resp.Message())
	}
	if *verbose {
		fmt.Printf("login ok, renewed=%v\n", s.Token != *token)
	}

	if s.Token != *token {
		mustFail(mustLogin(root, conn, *token, *timeout), v1.MsgLoginFailed, "replayed pre-renewal token")

		again := mustLogin(root, conn, s.Token, *timeout)
		if !again.OK() {
			fatalf("login with renewed token failed: %q", again.Message())
		}
		s, _ = again.Session()
	}

	fmt.Printf("OK: session_token=%s\n", s.Token)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}
	if conn.Subprotocol() != v1.Subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", conn.Subprotocol(), v1.Subprotocol)
	}

	conn.SetReadLimit(v1.MaxMessageBytes)
	return conn
}

func mustLogin(parent context.Context, conn *websocket.Conn, tok string, stepTimeout time.Duration) v1.Response {
	frame, err := v1.EncodeRequest(v1.LoginSession{Session: v1.NewSession(tok)})
	if err != nil {
		fatalf("encode login: %v", err)
	}
	mustWrite(parent, conn, frame, stepTimeout)
	return mustRead(parent, conn, stepTimeout)
}

func mustFail(resp v1.Response, wantMsg, step string) {
	if resp.OK() {
		fatalf("%s: expected Err, got Ok", step)
	}
	if resp.Message() != wantMsg {
		fatalf("%s: message=%q want=%q", step, resp.Message(), wantMsg)
	}
}

func mustWrite(parent context.Context, conn *websocket.Conn, frame []byte, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustRead(parent context.Context, conn *websocket.Conn, stepTimeout time.Duration) v1.Response {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	mt, data, err := conn.Read(ctx)
	if err != nil {
		fatalf("read failed: %v", err)
	}
	if mt != websocket.MessageBinary {
		fatalf("unexpected frame type: %v", mt)
	}

	resp, err := v1.DecodeResponse(data)
	if err != nil {
		fatalf("decode response (%s): %v", v1.DecodeErrorKind(err), err)
	}
	return resp
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
