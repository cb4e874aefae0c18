package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printAuthResult(v)
	case QueueData:
		o.printQueueData(v)
	case Game:
		o.printGame(v)
	case Move:
		o.printMove(v)
	case ChatEntry:
		o.printChatEntry(v)
	case ChatHistory:
		o.printChatHistory(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Elo      int    `json:"elo"`
	Country  string `json:"country,omitempty"`
	IsOnline bool   `json:"isOnline"`
}

// AuthResult combines player and token
type AuthResult struct {
	User      Player    `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// QueueData response type
type QueueData struct {
	InQueue     int  `json:"inQueue"`
	TimeElapsed *int `json:"timeElapsed"`
}

// Participant is one side of a game
type Participant struct {
	Username string `json:"username"`
	Elo      int    `json:"elo"`
}

// Game response type
type Game struct {
	ID            string      `json:"id"`
	Black         Participant `json:"black"`
	White         Participant `json:"white"`
	Status        string      `json:"status"`
	Size          int         `json:"size"`
	Board         [][]string  `json:"board"`
	Turn          string      `json:"turn"`
	MoveCount     int         `json:"moveCount"`
	Winner        string      `json:"winner,omitempty"`
	ViewersCount  int         `json:"viewersCount"`
	WaitingEndsAt time.Time   `json:"waitingEndsAt"`
}

// Point is a board intersection
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Move response type
type Move struct {
	GameID   string  `json:"gameId"`
	Kind     string  `json:"kind"`
	Color    string  `json:"color"`
	Point    *Point  `json:"point,omitempty"`
	Captured []Point `json:"captured,omitempty"`
	Number   int     `json:"number"`
}

// ChatEntry response type
type ChatEntry struct {
	ID         string    `json:"id"`
	AuthorName string    `json:"authorName,omitempty"`
	System     bool      `json:"system"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ChatHistory response type
type ChatHistory struct {
	GameID  string      `json:"gameId"`
	Entries []ChatEntry `json:"entries"`
}

// HealthResult response type
type HealthResult struct {
	Status   string `json:"status"`
	Realtime string `json:"realtime,omitempty"`
}

func (o *Output) printPlayer(p Player) {
	onlineStr := "no"
	if p.IsOnline {
		onlineStr = "yes"
	}
	fmt.Printf("Player: %s (%s)\n", p.Username, p.ID)
	fmt.Printf("Elo: %d\n", p.Elo)
	fmt.Printf("Online: %s\n", onlineStr)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.User)
	fmt.Printf("Token: %s\n", a.Token)
}

func (o *Output) printQueueData(q QueueData) {
	fmt.Printf("In queue: %d\n", q.InQueue)
	if q.TimeElapsed != nil {
		fmt.Printf("Waiting for: %ds\n", *q.TimeElapsed)
	}
}

func (o *Output) printGame(g Game) {
	fmt.Printf("Game: %s\n", g.ID)
	fmt.Printf("Status: %s\n", g.Status)
	fmt.Printf("Black: %s (%d)\n", g.Black.Username, g.Black.Elo)
	fmt.Printf("White: %s (%d)\n", g.White.Username, g.White.Elo)
	fmt.Printf("Board Size: %d\n", g.Size)
	fmt.Printf("Moves: %d\n", g.MoveCount)
	fmt.Printf("Viewers: %d\n", g.ViewersCount)

	switch g.Status {
	case "waiting":
		fmt.Printf("Black must play by: %s\n", g.WaitingEndsAt.Local().Format("15:04:05"))
	case "started":
		fmt.Printf("Turn: %s\n", g.Turn)
	case "finished":
		if g.Winner != "" {
			fmt.Printf("Winner: %s\n", g.Winner)
		}
	}

	if len(g.Board) > 0 {
		fmt.Println()
		o.printBoard(g.Board)
	}
}

func (o *Output) printBoard(cells [][]string) {
	size := len(cells)

	// Print column headers
	fmt.Print("    ")
	for col := 0; col < size; col++ {
		fmt.Printf("%2d ", col)
	}
	fmt.Println()

	// Print rows
	for row := 0; row < size; row++ {
		fmt.Printf("%2d  ", row)
		for col := 0; col < size; col++ {
			switch cells[row][col] {
			case "black":
				fmt.Print(" X ")
			case "white":
				fmt.Print(" O ")
			default:
				fmt.Print(" . ")
			}
		}
		fmt.Println()
	}
}

func (o *Output) printMove(m Move) {
	switch m.Kind {
	case "place":
		if m.Point != nil {
			fmt.Printf("Move %d: %s played (%d, %d)\n", m.Number, m.Color, m.Point.X, m.Point.Y)
		}
		if len(m.Captured) > 0 {
			fmt.Printf("Captured: %d\n", len(m.Captured))
		}
	case "pass":
		fmt.Printf("Move %d: %s passed\n", m.Number, m.Color)
	case "resign":
		fmt.Printf("%s resigned\n", m.Color)
	default:
		o.printJSON(m)
	}
}

func (o *Output) printChatEntry(e ChatEntry) {
	author := e.AuthorName
	if e.System {
		author = "*"
	}
	fmt.Printf("[%s] %s: %s\n", e.CreatedAt.Local().Format("15:04:05"), author, e.Message)
}

func (o *Output) printChatHistory(h ChatHistory) {
	if len(h.Entries) == 0 {
		fmt.Println("No messages")
		return
	}
	for _, e := range h.Entries {
		o.printChatEntry(e)
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
	if h.Realtime != "" {
		fmt.Printf("Realtime: %s\n", h.Realtime)
	}
}
