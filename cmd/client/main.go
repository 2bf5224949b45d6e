// Interactive terminal client for the relay. It drives both surfaces: the
// stateless routes for registration and the online list, and one persistent
// connection for everything live.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	ServerURL string `env:"SERVER_URL,default=http://localhost:3000"`
}

type frame struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data,omitempty"`
}

type messagePayload struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to,omitempty"`
	Body   string `json:"body"`
	SentAt int64  `json:"sent_at"`
}

func main() {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	wsURL := strings.Replace(config.ServerURL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("Connection to %s failed: %v", wsURL, err)
	}
	defer conn.Close()

	c := &client{conn: conn, serverURL: config.ServerURL}
	go c.listen()

	color.New(color.BgBlack, color.FgGreen).Println(" chat-relay client ")
	fmt.Println("Commands: /register <handle> <secret> | /login <handle> <secret> | /msg <to> <body>")
	fmt.Println("          /all <body> | /history <other> | /global-history | /online | /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if !c.execute(scanner.Text()) {
			return
		}
	}
}

type client struct {
	conn      *websocket.Conn
	serverURL string
	handle    string
	nextID    int
}

func (c *client) execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "/register":
		if len(fields) != 3 {
			color.Warn.Println("usage: /register <handle> <secret>")
			return true
		}
		c.register(fields[1], fields[2])
	case "/login":
		if len(fields) != 3 {
			color.Warn.Println("usage: /login <handle> <secret>")
			return true
		}
		c.handle = fields[1]
		c.send("login", map[string]string{"handle": fields[1], "secret": fields[2]})
	case "/msg":
		if len(fields) < 3 {
			color.Warn.Println("usage: /msg <to> <body>")
			return true
		}
		c.send("private_message", map[string]string{
			"from": c.handle, "to": fields[1],
			"body": strings.Join(fields[2:], " "),
		})
	case "/all":
		if len(fields) < 2 {
			color.Warn.Println("usage: /all <body>")
			return true
		}
		c.send("global_message", map[string]string{
			"from": c.handle, "body": strings.Join(fields[1:], " "),
		})
	case "/history":
		if len(fields) != 2 {
			color.Warn.Println("usage: /history <other>")
			return true
		}
		c.send("get_chat_history", map[string]string{
			"handle_a": c.handle, "handle_b": fields[1],
		})
	case "/global-history":
		c.send("get_global_history", nil)
	case "/online":
		c.online()
	case "/quit":
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return false
	default:
		color.Warn.Println("unknown command:", fields[0])
	}
	return true
}

func (c *client) send(frameType string, data any) {
	c.nextID++
	err := c.conn.WriteJSON(outFrame{Type: frameType, ID: strconv.Itoa(c.nextID), Data: data})
	if err != nil {
		color.Error.Println("send failed:", err)
	}
}

// register goes through the stateless route: no connection state needed.
func (c *client) register(handle, secret string) {
	body, _ := json.Marshal(map[string]string{"handle": handle, "secret": secret})
	resp, err := http.Post(c.serverURL+"/api/register", "application/json", bytes.NewReader(body))
	if err != nil {
		color.Error.Println("register failed:", err)
		return
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		color.Error.Println("register refused:", strings.TrimSpace(string(payload)))
		return
	}
	color.Success.Println("registered", handle)
}

func (c *client) online() {
	resp, err := http.Get(c.serverURL + "/online-users")
	if err != nil {
		color.Error.Println("online lookup failed:", err)
		return
	}
	defer resp.Body.Close()
	var result struct {
		Online []string `json:"online"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		color.Error.Println("online lookup failed:", err)
		return
	}
	color.Info.Println("online:", strings.Join(result.Online, ", "))
}

// listen prints everything pushed on the connection: acks for our own
// frames, plus live deliveries and presence transitions.
func (c *client) listen() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			color.Warn.Println("connection closed:", err)
			os.Exit(0)
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}

		switch f.Type {
		case "ack":
			c.printAck(f.Data)
		case "new_message":
			var m messagePayload
			_ = json.Unmarshal(f.Data, &m)
			color.New(color.FgCyan).Printf("[%s -> %s] %s\n", m.From, m.To, m.Body)
		case "global_message":
			var m messagePayload
			_ = json.Unmarshal(f.Data, &m)
			color.New(color.FgMagenta).Printf("[%s -> all] %s\n", m.From, m.Body)
		case "user_status":
			var s struct {
				Handle string `json:"handle"`
				Online bool   `json:"online"`
			}
			_ = json.Unmarshal(f.Data, &s)
			state := "offline"
			if s.Online {
				state = "online"
			}
			color.New(color.FgYellow).Printf("* %s is now %s\n", s.Handle, state)
		}
	}
}

func (c *client) printAck(data json.RawMessage) {
	var ack struct {
		Success bool             `json:"success"`
		Error   string           `json:"error"`
		Handle  string           `json:"handle"`
		Online  []string         `json:"online"`
		Chat    []messagePayload `json:"chat"`
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		return
	}
	if !ack.Success {
		color.Error.Println("refused:", ack.Error)
		return
	}
	if ack.Handle != "" {
		color.Success.Println("logged in as", ack.Handle)
		color.Info.Println("online:", strings.Join(ack.Online, ", "))
		return
	}
	if ack.Chat != nil {
		printHistory(ack.Chat)
		return
	}
	color.Success.Println("ok")
}

func printHistory(messages []messagePayload) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"From", "To", "Body", "Sent At"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, m := range messages {
		to := m.To
		if to == "" {
			to = "all"
		}
		table.Append([]string{m.From, to, m.Body, strconv.FormatInt(m.SentAt, 10)})
	}
	table.Render()
}
