package main

import (
	"flag"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/burntcarrot/treecrdt/commons"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Upgrader instance to upgrade all HTTP connections to a WebSocket.
var upgrader = websocket.Upgrader{}

const (
	// Time allowed to write a message to a client.
	writeWait = 10 * time.Second

	// Messages queued per client on top of the replayed history.
	sendBuffer = 256
)

// client is a connected peer. Messages for it are queued on send and
// written by its own goroutine.
type client struct {
	conn *websocket.Conn
	id   uuid.UUID
	send chan commons.Message
}

// relay rebroadcasts tree transactions between clients. It attests the
// source of every transaction and keeps every transaction it relayed, so
// that clients joining later still receive all of them.
type relay struct {
	// mu guards clients and history. It is never held across a network write.
	mu      sync.Mutex
	clients map[*client]struct{}
	history []commons.Message

	// Channel for client messages.
	messageChan chan commons.Message
}

func newRelay() *relay {
	return &relay{
		clients:     make(map[*client]struct{}),
		messageChan: make(chan commons.Message),
	}
}

func main() {
	// Parse flags.
	addr := flag.String("addr", ":8080", "Server's network address")
	flag.Parse()

	r := newRelay()

	mux := http.NewServeMux()
	mux.HandleFunc("/", r.handleConn)

	// Handle incoming messages.
	go r.handleMsg()

	// Start the server.
	log.Printf("Starting server on %s", *addr)
	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	err := server.ListenAndServe()
	if err != nil {
		log.Fatal("Error starting server, exiting.", err)
	}
}

// handleConn upgrades the connection, assigns the client its actor, queues
// the history and then reads messages from the connection.
func (r *relay) handleConn(w http.ResponseWriter, req *http.Request) {
	// Upgrade incoming HTTP connections to WebSocket connections
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("Error upgrading connection to websocket: %v", err)
		return
	}
	defer conn.Close()

	// Generate a UUID for the client. Its string form is the client's actor.
	c := r.register(conn, uuid.New())
	go r.writePump(c)

	for {
		var msg commons.Message

		// Read message from the connection.
		err := conn.ReadJSON(&msg)
		if err != nil {
			log.Printf("Closing connection with ID: %v", c.id)
			r.unregister(c)
			break
		}

		// The client cannot choose who the message is from.
		msg.ID = c.id
		if msg.Type == commons.OperationMessage {
			msg.Source = c.id.String()
		}

		// Send message to messageChan.
		r.messageChan <- msg
	}
}

// register queues the client's site ID followed by every relayed
// transaction, then adds it to the set of active clients.
func (r *relay) register(conn *websocket.Conn, id uuid.UUID) *client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &client{
		conn: conn,
		id:   id,
		send: make(chan commons.Message, len(r.history)+sendBuffer),
	}
	c.send <- commons.Message{Type: commons.SiteIDMessage, Text: id.String(), ID: id}
	for _, msg := range r.history {
		c.send <- msg
	}
	c.send <- commons.Message{Type: commons.SyncedMessage, ID: id}

	r.clients[c] = struct{}{}
	return c
}

// unregister removes the client and closes its queue. It is safe to call
// more than once.
func (r *relay) unregister(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(c)
}

// remove must be called with mu held.
func (r *relay) remove(c *client) {
	if _, ok := r.clients[c]; ok {
		delete(r.clients, c)
		close(c.send)
	}
}

// writePump writes queued messages to the client's connection. Once the
// queue is closed it closes the connection, which also ends the read loop.
func (r *relay) writePump(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("Error sending message to client %v: %v", c.id, err)
			r.unregister(c)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// handleMsg listens to the messageChan channel and broadcasts messages to other clients.
func (r *relay) handleMsg() {
	for msg := range r.messageChan {
		// Log each message to stdout.
		t := time.Now().Format(time.ANSIC)
		switch msg.Type {
		case commons.OperationMessage:
			color.Green("%s >> %s (%s): %d move(s)\n", t, msg.Username, msg.Source, len(msg.Transaction))
		default:
			color.Green("%s >> %s %s\n", t, msg.Username, msg.Text)
		}

		r.broadcast(msg)
	}
}

// broadcast queues msg for every client except its origin. A client whose
// queue is full is dropped instead of stalling the others.
func (r *relay) broadcast(msg commons.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.Type == commons.OperationMessage {
		r.history = append(r.history, msg)
	}

	for c := range r.clients {
		// Check the UUID to prevent sending messages to their origin.
		if msg.ID == c.id {
			continue
		}

		select {
		case c.send <- msg:
		default:
			log.Printf("Dropping client %v: send queue is full", c.id)
			r.remove(c)
		}
	}
}
