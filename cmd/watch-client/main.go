package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"
)

// event is the decoded union of everything the render stream carries.
type event struct {
	Type       string   `json:"type"`
	Key        string   `json:"key"`
	Title      string   `json:"title"`
	State      string   `json:"state"`
	Chapter    string   `json:"chapter"`
	Visible    *bool    `json:"visible"`
	MinChapter *float64 `json:"min_chapter"`
}

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP render stream address")
	raw := flag.Bool("raw", false, "print raw JSON lines instead of badges")
	flag.Parse()

	for {
		if err := run(*addr, *raw); err != nil {
			log.Printf("[watch-client] disconnected: %v", err)
		}
		time.Sleep(1 * time.Second) // auto reconnect
	}
}

func run(addr string, raw bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[watch-client] connected to %s", addr)

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Bytes()

		if raw {
			fmt.Println(string(line))
			continue
		}

		var ev event
		if err := json.Unmarshal(line, &ev); err != nil {
			// not JSON? print as-is
			fmt.Println(string(line))
			continue
		}
		fmt.Println(render(ev))
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

// render formats one event as a single badge-style line.
func render(ev event) string {
	switch ev.Type {
	case "welcome":
		if ev.MinChapter != nil {
			return fmt.Sprintf("-- connected, min chapter filter: %g", *ev.MinChapter)
		}
		return "-- connected"
	case "filter.update":
		if ev.MinChapter != nil {
			return fmt.Sprintf("-- min chapter filter now %g", *ev.MinChapter)
		}
		return "-- min chapter filter changed"
	case "item.discovered", "item.update":
		badge := "…"
		switch ev.State {
		case "resolved":
			badge = "ch " + ev.Chapter
		case "unknown":
			badge = "?"
		}
		hidden := ""
		if ev.Visible != nil && !*ev.Visible {
			hidden = " (hidden)"
		}
		name := ev.Title
		if name == "" {
			name = ev.Key
		}
		return fmt.Sprintf("%-40s %s%s", name, badge, hidden)
	default:
		return fmt.Sprintf("-- %s", ev.Type)
	}
}
