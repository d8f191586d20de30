package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/burntcarrot/treecrdt/brbtree"
	"github.com/burntcarrot/treecrdt/commons"
	"github.com/burntcarrot/treecrdt/crdt"
	"github.com/burntcarrot/treecrdt/tui"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type ConnReader interface {
	ReadJSON(v interface{}) error
}

type ConnWriter interface {
	WriteJSON(v interface{}) error
}

type Scanner interface {
	Scan() bool
	Text() string
}

var (
	flags  Flags
	logger = logrus.New()
)

var errNoSiteID = errors.New("server did not send a site ID")

func main() {
	flags = parseFlags()

	s := bufio.NewScanner(os.Stdin)

	name := os.Getenv("USER")
	if flags.Login || name == "" {
		// Read username.
		fmt.Printf("%s", color.YellowString("Enter your Name: "))
		s.Scan()
		name = s.Text()
	}

	logFile, debugLogFile, err := setupLogger(logger)
	if err != nil {
		fmt.Printf("Failed to set up logger: %s\n", err)
		os.Exit(1)
	}
	defer closeLogFiles(logFile, debugLogFile)

	// Get WebSocket connection.
	conn, _, err := createConn(flags)
	if err != nil {
		color.Red("Connection error, exiting: %s", err)
		return
	}
	defer conn.Close()

	// The first message assigns this client its actor.
	actor, err := readSiteID(conn)
	if err != nil {
		color.Red("Handshake error, exiting: %s", err)
		return
	}
	logger.Infof("SITE ID %v", actor)

	t, err := loadTree(actor, flags.File)
	if err != nil {
		color.Red("Failed to load %s: %s", flags.File, err)
		return
	}

	engine := NewEngine(t, conn, name, flags.File, logger)

	// Send joining message.
	_ = conn.WriteJSON(commons.Message{Username: name, Text: "has joined the session.", Type: commons.JoinMessage})

	done := make(chan struct{})
	go func() {
		readMessages(conn, engine)
		close(done)
	}()

	// Display welcome message.
	color.Green("\nWelcome %s!\n", name)
	color.Green("Connected to server @ %s as %s\n", flags.Server, actor)

	if flags.TUI {
		if err := tui.Run(engine); err != nil {
			logger.Errorf("TUI error: %v", err)
		}
		return
	}

	color.Yellow("Type a command, help for the list, or !q to exit.\n")
	writeCommands(engine, s, done)
}

func readSiteID(conn ConnReader) (string, error) {
	var msg commons.Message
	if err := conn.ReadJSON(&msg); err != nil {
		return "", err
	}
	if msg.Type != commons.SiteIDMessage || msg.Text == "" {
		return "", errNoSiteID
	}
	return msg.Text, nil
}

// loadTree returns a fresh tree for actor, or the snapshot stored in file if one exists.
func loadTree(actor, file string) (*tree, error) {
	if file == "" {
		return brbtree.New[string, string, string](actor), nil
	}
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		return brbtree.New[string, string, string](actor), nil
	}

	r, err := crdt.Load[string, string, string](file, actor)
	if err != nil {
		return nil, err
	}
	return brbtree.FromReplica(r), nil
}

// readMessages merges every message received on the WebSocket connection.
func readMessages(conn ConnReader, engine *Engine) {
	for {
		var msg commons.Message

		// Read message.
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("websocket error: %v", err)
			}
			return
		}

		logger.Infof("message received: %+v\n", msg)

		if err := engine.HandleMsg(msg); err != nil {
			continue
		}
		printTree(logger, flags.Debug, engine)
	}
}

// writeCommands scans stdin and executes each scanned line.
func writeCommands(engine *Engine, s Scanner, done <-chan struct{}) {
	for {
		select {
		case <-done:
			color.Red("Server closed. Exiting...")
			return
		default:
		}

		fmt.Print("> ")
		if !s.Scan() {
			return
		}

		line := strings.TrimSpace(s.Text())

		// Handle quit event.
		if line == "!q" {
			fmt.Println("Goodbye!")
			return
		}

		out, err := engine.Exec(line)
		if err != nil {
			color.Red("%s\n", err)
			continue
		}
		if out != "" {
			color.Cyan("%s\n", out)
		}
	}
}
