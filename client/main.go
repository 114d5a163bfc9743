package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Manual test client for the pong server. Connects the duplex channel and
// turns stdin lines into protocol frames:
//
//	up / down      hold the paddle intent for one frame
//	party <text>   party chat
//	pm <to> <text> private chat
//	<text>         party chat shorthand
func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	token := flag.String("token", "", "identity token (empty for a guest alias)")
	game := flag.Uint("game", 0, "party id for input frames")
	team := flag.Int("team", 1, "team number for input frames")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(*token)}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV: %s", string(message))
		}
	}()

	sendJSON := func(v interface{}) {
		data, _ := json.Marshal(v)
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Println("Write error:", err)
		}
	}

	log.Println("Client started. Commands: up, down, party <text>, pm <to> <text>.")

	lines := make(chan string)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			text, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- strings.TrimSpace(text)
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text, ok := <-lines:
			if !ok {
				return
			}
			switch {
			case text == "":
			case text == "up" || text == "down":
				sendJSON(map[string]interface{}{
					"type": "input",
					"game": *game,
					"team": *team,
					"up":   text == "up",
					"down": text == "down",
				})
			case strings.HasPrefix(text, "pm "):
				parts := strings.SplitN(text, " ", 3)
				if len(parts) < 3 {
					log.Println("Usage: pm <to> <text>")
					continue
				}
				sendJSON(map[string]string{"type": "private", "to": parts[1], "message": parts[2]})
			case strings.HasPrefix(text, "party "):
				sendJSON(map[string]string{"type": "party", "message": strings.TrimPrefix(text, "party ")})
			default:
				sendJSON(map[string]string{"type": "party", "message": text})
			}
		}
	}
}
