// SignalHop CLI - command line client for the SignalHop signaling relay
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/signalhop/signalhop/clients/go/signalhop"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("SIGNALHOP_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := signalhop.NewClient(baseURL, os.Getenv("SIGNALHOP_TOKEN"))
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "register":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: signalhop register <name>")
			os.Exit(1)
		}
		resp, err := client.Register(os.Args[2])
		exitOnError(err)
		fmt.Printf("Registered as: %s\n", resp.ID)
		fmt.Printf("Token (save this, shown once): %s\n", resp.Token)

	case "rooms":
		resp, err := client.ListRooms()
		exitOnError(err)
		for _, room := range resp.Rooms {
			fmt.Printf("  %s  %d participant(s), last seen %s\n", room.Room, room.Participants, room.LastSeen)
		}

	case "join":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: signalhop join <room>")
			os.Exit(1)
		}
		resp, err := client.Join(os.Args[2])
		exitOnError(err)
		if len(resp.Participants) == 0 {
			fmt.Println("Joined; no one else here yet")
		} else {
			fmt.Printf("Joined; peers: %v\n", resp.Participants)
		}

	case "leave":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: signalhop leave <room>")
			os.Exit(1)
		}
		exitOnError(client.Leave(os.Args[2]))
		fmt.Println("Left room")

	case "send":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: signalhop send <room> <kind> <payload> [target_id]")
			os.Exit(1)
		}
		var target *string
		if len(os.Args) > 5 {
			target = &os.Args[5]
		}
		resp, err := client.Send(os.Args[2], target, os.Args[3], os.Args[4])
		exitOnError(err)
		fmt.Printf("Sent signal id=%d\n", resp.ID)

	case "watch":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: signalhop watch <room>")
			os.Exit(1)
		}
		room := os.Args[2]
		if _, err := client.Join(room); err != nil {
			exitOnError(err)
		}
		var since int64
		for {
			resp, err := client.Poll(room, since)
			exitOnError(err)
			for _, sig := range resp.Signals {
				target := "*"
				if sig.TargetID != nil {
					target = *sig.TargetID
				}
				fmt.Printf("[%d] %s -> %s %s: %s\n", sig.ID, sig.SenderID, target, sig.Kind, sig.Payload)
			}
			since = resp.Latest
			time.Sleep(2 * time.Second)
		}

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`SignalHop CLI - polling signaling relay client

Usage: signalhop <command> [options]

Commands:
  register <name>                        Register a caller and print its token
  join <room>                            Join a room, print current peers
  leave <room>                           Leave a room
  send <room> <kind> <payload> [target]  Relay a signal (kind: offer|answer|candidate|hello|bye)
  watch <room>                           Join and poll a room, printing signals
  rooms                                  List active rooms
  health                                 Check server health

Environment:
  SIGNALHOP_URL     Server URL (default: http://localhost:8080)
  SIGNALHOP_TOKEN   Bearer token from register`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
