// pagectl is a line-mode test client for a running director: each stdin
// line is parsed as a JSON action frame, stamped with the shared secret,
// and sent; director frames are printed as they arrive.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/pagepilot/pagectl/internal/config"
	"github.com/pagepilot/pagectl/internal/protocol"
	"github.com/pagepilot/pagectl/internal/protocol/frame"
)

func main() {
	addr := flag.String("addr", "localhost:7860", "director address")
	key := flag.String("key", "", "shared api key (or "+config.EnvAPIKey+")")
	flag.Parse()

	apiKey := strings.TrimSpace(*key)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv(config.EnvAPIKey))
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "pagectl: missing api key")
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pagectl: dial: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Fprintf(os.Stderr, "connected to %s; one JSON object per line, ctrl-d to quit\n", *addr)

	go printInbound(conn)

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(line), &fields); err != nil {
			fmt.Fprintf(os.Stderr, "not a JSON object: %v\n", err)
			continue
		}
		fields[protocol.FieldAPIKey] = apiKey
		encoded, err := frame.Encode(fields)
		if err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			continue
		}
		if _, err := conn.Write(encoded); err != nil {
			fmt.Fprintf(os.Stderr, "pagectl: write: %v\n", err)
			os.Exit(1)
		}
	}
}

func printInbound(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "pagectl: connection closed")
			os.Exit(0)
		}
		fmt.Print(line)
	}
}
