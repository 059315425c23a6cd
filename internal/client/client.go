// Package client provides a more convenient wrapper around the redigo client
// for talking to a pairgen server.
package client

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/gomodule/redigo/redis"
)

// ErrExhausted is returned by Next once the server has issued every
// identifier it will issue before the next reset.
var ErrExhausted = errors.New("identifiers exhausted")

// Client is a type-safe, lower-boilerplate wrapper around the redigo client.
//
// Clients are not safe for concurrent use.
type Client struct {
	conn    redis.Conn
	connErr error
}

// New creates a new Client.
func New(addr net.Addr) (*Client, error) {
	conn, err := redis.Dial("tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// do sends one command. Once the connection reports a fatal error, every
// later call fails without touching the network.
func (c *Client) do(cmd string, args ...any) (any, error) {
	if c.connErr != nil {
		return nil, fmt.Errorf("conn unusable: %w", c.connErr)
	}
	res, err := c.conn.Do(cmd, args...)
	if cerr := c.conn.Err(); cerr != nil {
		c.connErr = cerr
		_ = c.conn.Close()
		return nil, fmt.Errorf("conn unusable: %w", cerr)
	}
	return res, err
}

func (c *Client) ok(cmd string, want string) error {
	res, err := c.do(cmd)
	if err != nil {
		return err
	}
	r, ok := res.(string)
	if !ok {
		return fmt.Errorf("unexpected %s response type: %T", strings.ToLower(cmd), res)
	}
	if r != want {
		return fmt.Errorf("unexpected %s response: %s", strings.ToLower(cmd), r)
	}
	return nil
}

// Ping the server.
func (c *Client) Ping() error {
	return c.ok("PING", "PONG")
}

// Next fetches one identifier.
func (c *Client) Next() (string, error) {
	res, err := c.do("NEXT")
	if err != nil {
		return "", err
	}
	switch r := res.(type) {
	case nil:
		return "", ErrExhausted
	case []byte:
		return string(r), nil
	default:
		return "", fmt.Errorf("unexpected next response type: %T", res)
	}
}

// NextN fetches up to n identifiers. It returns fewer, possibly none, when
// the server runs out.
func (c *Client) NextN(n int) ([]string, error) {
	res, err := c.do("NEXT", n)
	if err != nil {
		return nil, err
	}
	names, err := redis.Strings(res, nil)
	if err != nil {
		return nil, fmt.Errorf("unexpected next response: %w", err)
	}
	return names, nil
}

// Remaining reports how many identifiers are left before the server is
// exhausted.
func (c *Client) Remaining() (uint64, error) {
	res, err := c.do("REMAINING")
	if err != nil {
		return 0, err
	}
	r, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected remaining response type: %T", res)
	}
	return uint64(r), nil
}

// Reset rewinds the server's enumeration to the beginning.
func (c *Client) Reset() error {
	return c.ok("RESET", "OK")
}

// Info returns the server's enumeration parameters as key/value pairs.
func (c *Client) Info() (map[string]string, error) {
	res, err := c.do("INFO")
	if err != nil {
		return nil, err
	}
	raw, err := redis.String(res, nil)
	if err != nil {
		return nil, fmt.Errorf("unexpected info response: %w", err)
	}
	info := make(map[string]string)
	for _, line := range strings.Split(raw, "\r\n") {
		k, v, ok := strings.Cut(line, ":")
		if ok {
			info[k] = v
		}
	}
	return info, nil
}

// Close the underlying connection.
func (c *Client) Close() error {
	if c.connErr != nil {
		return fmt.Errorf("conn unusable: %w", c.connErr)
	}
	if err := c.conn.Close(); err != nil {
		c.connErr = err
		return err
	}
	return nil
}
