package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/burntcarrot/treecrdt/brb"
	"github.com/burntcarrot/treecrdt/brbtree"
	"github.com/burntcarrot/treecrdt/commons"
	"github.com/burntcarrot/treecrdt/crdt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("wrong number of arguments")
	ErrNotFound       = errors.New("no such node")
	ErrRoot           = errors.New("the root cannot be moved")
	ErrCycle          = errors.New("cannot move a node under itself")
)

const usage = `commands:
  add <parent> <name>          create a node
  mv <path> <parent> [name]    move (and optionally rename) a node
  rm <path>                    move a node to the trash
  tree                         show the tree
  log                          show the operation log
  save [file]                  save a snapshot
  !q                           quit`

type tree = brbtree.Tree[string, string, string]

// Engine owns the client's replica. Local commands and relayed
// transactions are applied one at a time.
type Engine struct {
	mu sync.Mutex

	tree     *tree
	conn     ConnWriter
	username string
	file     string
	logger   *logrus.Logger

	// updates is signalled whenever a relayed transaction changed the state.
	updates chan struct{}

	newID func() string
}

func NewEngine(t *tree, conn ConnWriter, username, file string, logger *logrus.Logger) *Engine {
	return &Engine{
		tree:     t,
		conn:     conn,
		username: username,
		file:     file,
		logger:   logger,
		updates:  make(chan struct{}, 1),
		newID:    uuid.NewString,
	}
}

// Updates is signalled after a relayed transaction was applied.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// Exec runs a single command line and returns its output.
func (e *Engine) Exec(line string) (string, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch args[0] {
	case "add":
		if len(args) != 3 {
			return "", fmt.Errorf("%w: add <parent> <name>", ErrUsage)
		}
		return e.add(args[1], args[2])

	case "mv":
		if len(args) != 3 && len(args) != 4 {
			return "", fmt.Errorf("%w: mv <path> <parent> [name]", ErrUsage)
		}
		name := ""
		if len(args) == 4 {
			name = args[3]
		}
		return e.move(args[1], args[2], name)

	case "rm":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: rm <path>", ErrUsage)
		}
		return e.remove(args[1])

	case "tree":
		return e.render(), nil

	case "log":
		return e.renderLog(), nil

	case "save":
		file := e.file
		if len(args) > 1 {
			file = args[1]
		}
		if file == "" {
			file = "treecrdt-snapshot.json"
		}
		if err := crdt.Save(file, e.tree.TreeReplica()); err != nil {
			e.logger.Errorf("failed to save to %s: %v", file, err)
			return "", err
		}
		return "Saved snapshot to " + file, nil

	case "help":
		return usage, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
}

func (e *Engine) add(parentPath, name string) (string, error) {
	parent, err := e.resolve(parentPath)
	if err != nil {
		return "", err
	}

	id := e.newID()
	if err := e.commit(e.tree.OpMoveTx(parent, name, id)); err != nil {
		return "", err
	}
	return fmt.Sprintf("added %s (%s)", name, id), nil
}

func (e *Engine) move(path, parentPath, name string) (string, error) {
	child, err := e.resolve(path)
	if err != nil {
		return "", err
	}
	if child == commons.RootID {
		return "", ErrRoot
	}
	parent, err := e.resolve(parentPath)
	if err != nil {
		return "", err
	}

	nodes := e.tree.TreeState().Tree()
	if parent == child || nodes.IsAncestor(parent, child) {
		return "", ErrCycle
	}
	if name == "" {
		n, _ := nodes.Find(child)
		name = n.Meta
	}

	if err := e.commit(e.tree.OpMoveTx(parent, name, child)); err != nil {
		return "", err
	}
	return fmt.Sprintf("moved %s", name), nil
}

func (e *Engine) remove(path string) (string, error) {
	child, err := e.resolve(path)
	if err != nil {
		return "", err
	}
	if child == commons.RootID {
		return "", ErrRoot
	}

	n, _ := e.tree.TreeState().Tree().Find(child)
	if err := e.commit(e.tree.OpMoveTx(commons.TrashID, n.Meta, child)); err != nil {
		return "", err
	}
	return fmt.Sprintf("removed %s", n.Meta), nil
}

// commit sends a locally minted transaction to the relay and then applies
// it. A transaction that could not be sent is never applied, so the local
// replica only holds operations its peers will also receive.
func (e *Engine) commit(tx commons.Transaction) error {
	if err := e.tree.Validate(e.tree.Actor(), tx); err != nil {
		return err
	}

	msg := commons.Message{Type: commons.OperationMessage, Username: e.username, Transaction: tx}
	if err := e.conn.WriteJSON(msg); err != nil {
		e.logger.Errorf("failed to send transaction: %v", err)
		return err
	}

	if err := e.tree.Apply(tx); err != nil {
		e.logger.Errorf("failed to apply local transaction: %v", err)
		return err
	}
	e.logger.Infof("LOCAL TX: %+v", tx)
	return nil
}

// HandleMsg merges a message received from the relay.
func (e *Engine) HandleMsg(msg commons.Message) error {
	switch msg.Type {
	case commons.OperationMessage:
		e.mu.Lock()
		err := brb.Deliver[string, commons.Transaction](e.tree, msg.Source, msg.Transaction)
		e.mu.Unlock()
		if err != nil {
			e.logger.Warnf("rejected transaction from %s: %v", msg.Source, err)
			return err
		}
		e.logger.Infof("REMOTE TX from %s: %+v", msg.Source, msg.Transaction)

		select {
		case e.updates <- struct{}{}:
		default:
		}

	case commons.JoinMessage:
		e.logger.Infof("%s %s", msg.Username, msg.Text)

	case commons.SyncedMessage:
		e.logger.Infof("SYNCED, log length %d", e.LogLen())
	}
	return nil
}

func (e *Engine) LogLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.TreeState().LogLen()
}

// Render returns the current tree.
func (e *Engine) Render() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.render()
}

// resolve maps a slash separated path of node names to a node ID. Paths
// are relative to the root; "/" is the root itself and a leading
// "trash" component starts at the trash. Among siblings with the same
// name the one with the smallest ID wins.
func (e *Engine) resolve(path string) (string, error) {
	nodes := e.tree.TreeState().Tree()

	id := commons.RootID
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(parts) > 0 && parts[0] == commons.TrashID {
		id, parts = commons.TrashID, parts[1:]
	}

	for _, name := range parts {
		next := ""
		for _, child := range sortedChildren(nodes, id) {
			if n, _ := nodes.Find(child); n.Meta == name {
				next = child
				break
			}
		}
		if next == "" {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		id = next
	}
	return id, nil
}

// sortedChildren returns the children of parent ordered by name, then ID.
func sortedChildren(nodes *crdt.Tree[string, string], parent string) []string {
	children := nodes.Children(parent)
	sort.Slice(children, func(i, j int) bool {
		a, _ := nodes.Find(children[i])
		b, _ := nodes.Find(children[j])
		if a.Meta != b.Meta {
			return a.Meta < b.Meta
		}
		return children[i] < children[j]
	})
	return children
}

func (e *Engine) render() string {
	nodes := e.tree.TreeState().Tree()

	var b strings.Builder
	b.WriteString("/\n")
	renderChildren(&b, nodes, commons.RootID, "")
	if len(nodes.Children(commons.TrashID)) > 0 {
		b.WriteString("trash\n")
		renderChildren(&b, nodes, commons.TrashID, "")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderChildren(b *strings.Builder, nodes *crdt.Tree[string, string], parent, prefix string) {
	children := sortedChildren(nodes, parent)
	for i, child := range children {
		n, _ := nodes.Find(child)
		branch, indent := "├── ", "│   "
		if i == len(children)-1 {
			branch, indent = "└── ", "    "
		}
		b.WriteString(prefix + branch + n.Meta + "\n")
		renderChildren(b, nodes, child, prefix+indent)
	}
}

func (e *Engine) renderLog() string {
	var b strings.Builder
	for _, entry := range e.tree.TreeState().Log() {
		op := entry.Op
		fmt.Fprintf(&b, "%d@%s  %s -> %s as %q\n", op.Timestamp.Counter, op.Timestamp.Actor, op.Child, op.Parent, op.Meta)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
