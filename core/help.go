package core

import (
	"context"
	"fmt"
	"html"
	"strings"
)

type helpEntry struct {
	usage string
	desc  string
}

type helpModule struct {
	name    string
	entries []helpEntry
}

var helpModules = []helpModule{
	{"gchat", []helpEntry{
		{"gchat on/off/del/all/r [user_id]", "Manage gchat for users."},
		{"role [user_id] <role>", "Set or reset user role."},
		{"gswitch [role]", "Show or set the role for this chat."},
		{"setgchat add/set/del <key|index>", "Manage Gemini API keys."},
		{"setgchat", "Show Gemini config & status."},
		{"setgchat model <name>", "Set/show Gemini model."},
		{"setgchat voice", "Toggle voice reply."},
		{"setgchat role <role>", "Set/show global role."},
		{"setgchat history <n> [tail]", "Set chat history head/tail."},
		{"gpic [n] [caption]", "Send n pics with caption."},
		{"test", "Test Gemini keys."},
	}},
	{"generative", []helpEntry{
		{"getai [custom prompt] [reply to image]*", "Analyze an image using AI."},
		{"aicook [reply to image]*", "Identify food and generate cooking instructions."},
		{"aiseller [target audience] [reply to image]*", "Generate marketing descriptions for products."},
		{"transcribe [custom prompt] [reply to audio/video]*", "Transcribe or summarize an audio or video file."},
		{"process [prompt] [reply to any file]*", "Process any file (image, audio, video, video note, PDF, document)."},
	}},
	{"dm", []helpEntry{
		{"dm on", "Enable storing outgoing media."},
		{"dm off", "Disable storing outgoing media."},
		{"dm", "Delete all stored media (skips excluded chats)."},
		{"dm exclude [chat_id]", "Show excluded chats or toggle a chat's exclusion."},
		{"delme", "Delete all your own messages in this chat."},
		{"s1, s2, ...", "Save or resend media. Use s1 v10 for self-destruct (10s)."},
	}},
}

func helpText(prefix, module string) string {
	if module == "" {
		names := make([]string, 0, len(helpModules))
		for _, m := range helpModules {
			names = append(names, "- <code>"+m.name+"</code>")
		}
		return fmt.Sprintf("<b>Modules:</b>\n%s\n\nUse <code>%shelp [module]</code> for details.",
			strings.Join(names, "\n"), html.EscapeString(prefix))
	}
	for _, m := range helpModules {
		if m.name != module {
			continue
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "<b>%s</b>\n", m.name)
		for _, e := range m.entries {
			fmt.Fprintf(&sb, "<code>%s%s</code>: %s\n",
				html.EscapeString(prefix), html.EscapeString(e.usage), html.EscapeString(e.desc))
		}
		return strings.TrimRight(sb.String(), "\n")
	}
	return "Module not found: " + html.EscapeString(module)
}

func (c *Commands) help(_ context.Context, cmd Command) {
	module := ""
	if len(cmd.Args) > 0 {
		module = strings.ToLower(cmd.Args[0])
	}
	c.edit(cmd, helpText(c.prefix, module))
}
