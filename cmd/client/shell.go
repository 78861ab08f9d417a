package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ZentaChain/zentalk-chat/pkg/history"
	"github.com/ZentaChain/zentalk-chat/pkg/network"
	"github.com/ZentaChain/zentalk-chat/pkg/protocol"
)

// chatClient is the part of *network.Client the shell drives
type chatClient interface {
	Register(login, password string) error
	Login(login, password string) error
	RequestList() error
	SendText(contactID uint64, text string) (protocol.ChatMessage, error)
	AddContact(login string) error
	State() network.State
	Timeline() *protocol.Timeline
	Owner() string
}

const helpText = `Commands:
  /register <login> <password>   create an account and log in
  /login <login> <password>      log in
  /add <login>                   look up a user and add them to contacts
  /list                          fetch contacts and messages from the server
  /contacts                      show known contacts
  /msg <contact id> <text>       send a message
  /show [contact id]             show messages, optionally for one contact
  /history                       show the locally cached history
  /status                        show the connection state
  /quit                          exit`

// shell reads commands from the user and prints server events. Observer
// callbacks arrive on the client's dispatcher goroutine.
type shell struct {
	client chatClient
	hist   *history.Store
	out    io.Writer

	mu       sync.Mutex
	contacts map[uint64]string
	adding   []string
}

func newShell(client chatClient, hist *history.Store, out io.Writer) *shell {
	return &shell{
		client:   client,
		hist:     hist,
		out:      out,
		contacts: make(map[uint64]string),
	}
}

func (sh *shell) printf(format string, args ...interface{}) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.out, format+"\n", args...)
}

func (sh *shell) run(in io.Reader) error {
	sh.printf("Type /help for commands")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sh.exec(line) {
			return nil
		}
	}
	return scanner.Err()
}

// exec runs one command line and reports whether the shell should continue
func (sh *shell) exec(line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "/quit", "/exit":
		return false

	case "/help":
		sh.printf("%s", helpText)

	case "/register", "/login":
		if len(args) != 2 {
			sh.printf("Usage: %s <login> <password>", cmd)
			return true
		}
		if cmd == "/register" {
			err = sh.client.Register(args[0], args[1])
		} else {
			err = sh.client.Login(args[0], args[1])
		}

	case "/add":
		if len(args) != 1 {
			sh.printf("Usage: /add <login>")
			return true
		}
		sh.mu.Lock()
		sh.adding = append(sh.adding, protocol.NormalizeLogin(args[0]))
		sh.mu.Unlock()
		err = sh.client.AddContact(args[0])

	case "/list":
		err = sh.client.RequestList()

	case "/contacts":
		sh.printContacts()

	case "/msg":
		if len(args) < 2 {
			sh.printf("Usage: /msg <contact id> <text>")
			return true
		}
		id, perr := strconv.ParseUint(args[0], 10, 64)
		if perr != nil {
			sh.printf("Invalid contact id %q", args[0])
			return true
		}
		_, err = sh.client.SendText(id, strings.Join(args[1:], " "))

	case "/show":
		sh.show(args)

	case "/history":
		sh.showHistory()

	case "/status":
		sh.printf("Connection: %s", sh.client.State())

	default:
		sh.printf("Unknown command %q, type /help", cmd)
	}

	if err != nil {
		sh.printf("Error: %v", err)
	}
	return true
}

func (sh *shell) contactName(id uint64) string {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if name, ok := sh.contacts[id]; ok {
		return name
	}
	return protocol.UnnamedContact
}

func (sh *shell) printContacts() {
	sh.mu.Lock()
	ids := make([]uint64, 0, len(sh.contacts))
	for id := range sh.contacts {
		ids = append(ids, id)
	}
	sh.mu.Unlock()

	if len(ids) == 0 {
		sh.printf("No contacts")
		return
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		sh.printf("  %d  %s", id, sh.contactName(id))
	}
}

func (sh *shell) show(args []string) {
	var msgs []protocol.ChatMessage
	if len(args) > 0 {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			sh.printf("Invalid contact id %q", args[0])
			return
		}
		msgs = sh.client.Timeline().ForContact(id)
	} else {
		msgs = sh.client.Timeline().Messages()
	}

	if len(msgs) == 0 {
		sh.printf("No messages")
		return
	}
	for _, m := range msgs {
		sh.printMessage(m)
	}
}

func (sh *shell) printMessage(m protocol.ChatMessage) {
	dir := "<-"
	if m.SentByMe {
		dir = "->"
	}
	status := ""
	if m.ID == 0 {
		status = " (sending)"
	}
	sh.printf("  %s %s: %s%s", dir, sh.contactName(m.ContactID), m.Text, status)
}

func (sh *shell) showHistory() {
	if sh.hist == nil {
		sh.printf("No history database configured")
		return
	}

	owner := sh.client.Owner()
	if owner == "" {
		sh.printf("Log in first")
		return
	}

	snap, err := sh.hist.Load(owner)
	if err != nil {
		sh.printf("Error: %v", err)
		return
	}
	sh.printf("Cached: %d contacts, %d messages", len(snap.Contacts), len(snap.Messages))
	for _, m := range snap.Messages {
		sh.printMessage(m)
	}
}

// ===== OBSERVER =====

func (sh *shell) OnMessage(op protocol.Opcode, reply protocol.Reply, raw []byte) {
	switch r := reply.(type) {
	case protocol.StatusReply:
		sh.onStatus(r.Op)

	case protocol.ContactFoundReply:
		sh.mu.Lock()
		name := protocol.UnnamedContact
		if len(sh.adding) > 0 {
			name, sh.adding = sh.adding[0], sh.adding[1:]
		}
		sh.contacts[r.ID] = name
		sh.mu.Unlock()
		owner := sh.client.Owner()

		sh.printf("Added %s as contact %d", name, r.ID)
		if sh.hist != nil && owner != "" {
			if err := sh.hist.AddContact(owner, protocol.Contact{ID: r.ID, Name: name}); err != nil {
				sh.printf("Error: %v", err)
			}
		}

	case protocol.ContactListReply:
		sh.mu.Lock()
		for _, c := range r.Contacts {
			sh.contacts[c.ID] = c.Name
		}
		sh.mu.Unlock()
		sh.printf("%d contacts, %d messages", len(r.Contacts), len(r.Messages))
	}
}

func (sh *shell) onStatus(op protocol.Opcode) {
	switch op {
	case protocol.OpRegisterOK, protocol.OpLoginOK:
		if op == protocol.OpRegisterOK {
			sh.printf("Registered")
		} else {
			sh.printf("Logged in")
		}
		if err := sh.client.RequestList(); err != nil {
			sh.printf("Error: %v", err)
		}
	case protocol.OpLoginTaken:
		sh.printf("That login is taken")
	case protocol.OpBadLoginLength:
		sh.printf("Logins must be %d to %d characters", protocol.MinLoginLength, protocol.MaxLoginLength)
	case protocol.OpBadCredentials:
		sh.printf("Wrong login or password")
	case protocol.OpContactNotFound:
		sh.mu.Lock()
		name := ""
		if len(sh.adding) > 0 {
			name, sh.adding = sh.adding[0], sh.adding[1:]
		}
		sh.mu.Unlock()
		sh.printf("No user named %q", name)
	case protocol.OpUnknownError:
		sh.printf("The server could not complete the request")
	}
}

func (sh *shell) OnDisconnect() {
	sh.printf("Connection lost, reconnecting ...")
}

func (sh *shell) OnReconnect() {
	sh.printf("Reconnected. Log in again to continue.")
}

func (sh *shell) OnWarning(title, description string) {
	sh.printf("[%s] %s", title, description)
}
