package core

import (
	"context"
	"fmt"
	"html"
	"log"
	"regexp"
	"strconv"
	"strings"

	"gchat/model"
	"gchat/queue"
)

// Command is an owner command typed in any chat.
type Command struct {
	Name      string
	Args      []string
	Rest      string
	ChatID    int64
	MessageID int32
	Reply     *Replied
}

// Replied identifies the message a command was sent in reply to.
type Replied struct {
	ChatID    int64
	MessageID int32
	Media     MediaInfo
}

// ParseCommand splits "<prefix>name args..." into a Command. The name is
// lowercased; Rest keeps the original spacing of everything after it.
func ParseCommand(prefix, text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}
	body := text[len(prefix):]
	fields := strings.Fields(body)
	if len(fields) == 0 || !strings.HasPrefix(body, fields[0]) {
		return Command{}, false
	}
	return Command{
		Name: strings.ToLower(fields[0]),
		Args: fields[1:],
		Rest: strings.TrimSpace(body[len(fields[0]):]),
	}, true
}

type commandFunc func(ctx context.Context, cmd Command)

// Commands routes owner commands to their handlers.
type Commands struct {
	a        *Assistant
	dm       *DM
	prefix   string
	handlers map[string]commandFunc
}

var (
	slotRe = regexp.MustCompile(`^s\d+$`)
	ttlRe  = regexp.MustCompile(`^v\d*$`)
)

func NewCommands(a *Assistant, dm *DM, prefix string) *Commands {
	c := &Commands{a: a, dm: dm, prefix: prefix}
	c.handlers = map[string]commandFunc{
		"gchat":    c.gchat,
		"gc":       c.gchat,
		"role":     c.role,
		"gswitch":  c.gswitch,
		"setgchat": c.setgchat,
		"setgc":    c.setgchat,
		"test":     c.test,
		"help":     c.help,

		"getai":      c.getai,
		"aicook":     c.aicook,
		"aiseller":   c.aiseller,
		"transcribe": c.transcribe,
		"ts":         c.transcribe,
		"process":    c.process,
		"pr":         c.process,

		"dm":    dm.command,
		"delme": dm.deleteOwn,
	}
	return c
}

func (c *Commands) Parse(text string) (Command, bool) {
	return ParseCommand(c.prefix, text)
}

// Dispatch runs cmd and reports whether it was recognised.
func (c *Commands) Dispatch(ctx context.Context, cmd Command) bool {
	if h, ok := c.handlers[cmd.Name]; ok {
		h(ctx, cmd)
		return true
	}
	if slotRe.MatchString(cmd.Name) && (len(cmd.Args) == 0 || (len(cmd.Args) == 1 && ttlRe.MatchString(strings.ToLower(cmd.Args[0])))) {
		c.dm.slot(ctx, cmd)
		return true
	}
	return false
}

func (c *Commands) edit(cmd Command, text string) {
	c.a.Out.Enqueue(queue.EditText{ChatID: cmd.ChatID, MessageID: cmd.MessageID, Text: text, Mode: queue.ModeHTML})
}

func (c *Commands) remove(cmd Command) {
	c.a.Out.Enqueue(queue.DeleteMessages{ChatID: cmd.ChatID, IDs: []int32{cmd.MessageID}})
}

func spoiler(s string) string {
	return "<tg-spoiler>" + s + "</tg-spoiler>"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// historyLimit parses a history window size; values that overflow int
// are rejected.
func historyLimit(s string) (int, bool) {
	if !isDigits(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// gchat manages who the auto-responder answers.
func (c *Commands) gchat(_ context.Context, cmd Command) {
	const usage = "Usage: gchat [on|off|del|all|r] [user_id]"
	if len(cmd.Args) == 0 {
		c.edit(cmd, usage)
		return
	}
	userID := cmd.ChatID
	if len(cmd.Args) > 1 && isDigits(cmd.Args[1]) {
		id, err := strconv.ParseInt(cmd.Args[1], 10, 64)
		if err != nil {
			c.edit(cmd, usage)
			return
		}
		userID = id
	}

	st := c.a.Settings
	switch strings.ToLower(cmd.Args[0]) {
	case "on":
		st.Enable(userID)
		c.edit(cmd, spoiler(fmt.Sprintf("ON: %d", userID)))
	case "off":
		st.Disable(userID)
		c.edit(cmd, spoiler(fmt.Sprintf("OFF: %d", userID)))
	case "del":
		c.a.History.Clear(userID)
		c.edit(cmd, spoiler(fmt.Sprintf("Deleted: %d", userID)))
	case "all":
		state := "disabled"
		if st.ToggleAll() {
			state = "enabled"
		}
		c.edit(cmd, "All: "+state)
	case "r":
		if st.Forget(userID) {
			c.edit(cmd, spoiler(fmt.Sprintf("Removed: %d", userID)))
		} else {
			c.edit(cmd, spoiler(fmt.Sprintf("Not found: %d", userID)))
		}
	default:
		c.edit(cmd, usage)
	}
	c.remove(cmd)
}

// role sets or resets a per-user role. Either change clears the user's
// history so the new persona starts fresh.
func (c *Commands) role(ctx context.Context, cmd Command) {
	roles := c.a.Roles.Fetch(ctx)
	if roles["default"] == "" {
		c.a.notify("Err: 'default' role missing.")
		return
	}

	userID := cmd.ChatID
	custom := ""
	if len(cmd.Args) > 0 && isDigits(cmd.Args[0]) {
		id, err := strconv.ParseInt(cmd.Args[0], 10, 64)
		if err != nil {
			c.edit(cmd, "Invalid user id: "+html.EscapeString(cmd.Args[0]))
			return
		}
		userID = id
		custom = strings.Join(cmd.Args[1:], " ")
	} else {
		custom = strings.Join(cmd.Args, " ")
	}

	c.a.History.Clear(userID)
	if custom == "" {
		c.a.Settings.ResetCustomRole(userID)
		c.edit(cmd, spoiler(fmt.Sprintf("Role reset: %d", userID)))
	} else {
		c.a.Settings.SetCustomRole(userID, custom)
		c.edit(cmd, spoiler(fmt.Sprintf("Role set: %d", userID))+"\n"+html.EscapeString(custom))
	}
	c.remove(cmd)
}

// gswitch lists roles or assigns a catalogue role to the current chat.
func (c *Commands) gswitch(ctx context.Context, cmd Command) {
	roles := c.a.Roles.Fetch(ctx)
	if len(roles) == 0 {
		c.a.notify("Role fetch error.")
		c.edit(cmd, "Failed to fetch roles.")
		return
	}
	if len(cmd.Args) == 0 {
		c.edit(cmd, "Roles:\n"+html.EscapeString(roles.list()))
		return
	}
	name := strings.ToLower(cmd.Args[0])
	text, ok := roles[name]
	if !ok {
		c.edit(cmd, "Not found: "+html.EscapeString(name))
		c.remove(cmd)
		return
	}
	c.a.Settings.SetCustomRole(cmd.ChatID, text)
	c.edit(cmd, "Switched: "+html.EscapeString(name))
	c.remove(cmd)
}

// setgchat manages keys, model, voice, default role and history window.
func (c *Commands) setgchat(ctx context.Context, cmd Command) {
	sub, arg := "", ""
	if len(cmd.Args) > 0 {
		sub = strings.ToLower(cmd.Args[0])
	}
	if len(cmd.Args) > 1 {
		arg = cmd.Args[1]
	}
	st := c.a.Settings
	ring := c.a.Rotator.Ring()

	switch {
	case sub == "model":
		if arg != "" {
			name := model.ResolveModel(arg)
			st.SetModel(name)
			c.edit(cmd, "Gemini model set to: "+html.EscapeString(name))
		} else {
			c.edit(cmd, "Current Gemini model: "+html.EscapeString(st.Model()))
		}
		return
	case sub == "voice":
		on := !st.VoiceEnabled()
		st.SetVoiceEnabled(on)
		c.edit(cmd, "Voice: "+onOff(on))
		return
	case sub == "add" && arg != "":
		if err := ring.Add(arg); err != nil {
			c.a.notify("setgchat error:\n\n" + err.Error())
			return
		}
		c.edit(cmd, "Gemini key added!")
		return
	case sub == "set" && arg != "":
		idx, err := strconv.Atoi(arg)
		if err != nil || ring.Select(idx-1) != nil {
			c.edit(cmd, "Invalid key index: "+html.EscapeString(arg))
			return
		}
		c.edit(cmd, "Current key set to: "+arg)
		return
	case sub == "del" && arg != "":
		idx, err := strconv.Atoi(arg)
		if err != nil || ring.Delete(idx-1) != nil {
			c.edit(cmd, "Invalid key index: "+html.EscapeString(arg))
			return
		}
		c.edit(cmd, fmt.Sprintf("Key %s deleted!", arg))
		return
	case sub == "role":
		roles := c.a.Roles.Fetch(ctx)
		if arg == "" {
			c.edit(cmd, "Available roles:\n"+html.EscapeString(roles.list()))
			return
		}
		name := strings.ToLower(arg)
		if _, ok := roles[name]; !ok {
			c.edit(cmd, "Not found: "+html.EscapeString(name))
			return
		}
		st.SetDefaultRole(name)
		c.edit(cmd, "Default: "+html.EscapeString(name))
		return
	case sub == "history":
		if n, ok := historyLimit(arg); ok && len(cmd.Args) == 2 {
			st.SetHistoryLimits(n, n)
			c.edit(cmd, fmt.Sprintf("History head/tail set to: %d", n))
			return
		}
		if len(cmd.Args) > 2 {
			head, okHead := historyLimit(cmd.Args[1])
			tail, okTail := historyLimit(cmd.Args[2])
			if okHead && okTail {
				st.SetHistoryLimits(head, tail)
				c.edit(cmd, fmt.Sprintf("History head: %d, tail: %d", head, tail))
				return
			}
		}
	}
	c.edit(cmd, c.status())
}

func (c *Commands) status() string {
	st := c.a.Settings
	ring := c.a.Rotator.Ring()
	keys := ring.Stored()

	var sb strings.Builder
	sb.WriteString("Keys:\n")
	for i, k := range keys {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, maskKey(k))
	}
	current := "None"
	if len(keys) > 0 {
		current = maskKey(keys[ring.Index()])
	}
	head, tail := st.HistoryLimits()
	fmt.Fprintf(&sb, "Current: %s\nModel: %s\nVoice: %s\nRole: %s\nHistory head: %d, tail: %d",
		current, html.EscapeString(st.Model()), onOff(st.VoiceEnabled()), html.EscapeString(st.DefaultRole()), head, tail)
	return sb.String()
}

// test pings every configured key with the current model.
func (c *Commands) test(ctx context.Context, cmd Command) {
	keys := c.a.Rotator.Ring().Keys()
	if len(keys) == 0 {
		c.edit(cmd, "No Gemini keys configured.")
		return
	}
	c.edit(cmd, "Testing...")

	lines := make([]string, 0, len(keys))
	for i, key := range keys {
		status := "OK"
		if err := c.a.Gemini.Ping(ctx, key, c.a.Settings.Model()); err != nil {
			msg := []rune(err.Error())
			if len(msg) > 60 {
				msg = msg[:60]
			}
			status = "Error: " + string(msg)
			log.Printf("[GEMINI] test key #%d: %v", i+1, err)
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, maskKey(key), html.EscapeString(status)))
	}
	c.edit(cmd, "Gemini API Key Test Results:\n"+strings.Join(lines, "\n"))
}

func maskKey(k string) string {
	if len(k) <= 8 {
		return k + "..."
	}
	return k[:8] + "..."
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
