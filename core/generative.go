package core

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"

	"gchat/model"
	"gchat/queue"
	"gchat/util"
)

const maxAnswerLen = 4000

// expectKind restricts which replied-to attachments a command accepts.
type expectKind int

const (
	expectAny expectKind = iota
	expectImage
	expectAudio
)

func (e expectKind) String() string {
	switch e {
	case expectImage:
		return "image"
	case expectAudio:
		return "audio"
	}
	return "supported"
}

func (e expectKind) accepts(m MediaInfo) bool {
	switch e {
	case expectImage:
		return m.Kind == MediaPhoto
	case expectAudio:
		return m.isAudioVideo()
	}
	switch m.Kind {
	case MediaPhoto, MediaAudio, MediaVoice, MediaVideo, MediaVideoNote, MediaDocument:
		return true
	}
	return false
}

type analysis struct {
	prompt     string
	showPrompt bool
	cook       bool
	expect     expectKind
	status     string
}

func (c *Commands) getai(ctx context.Context, cmd Command) {
	an := analysis{
		prompt: "Get details of the image, be accurate as much possible, write short response.",
		expect: expectImage,
		status: "Scanning...",
	}
	if cmd.Rest != "" {
		an.prompt, an.showPrompt = cmd.Rest, true
	}
	c.analyze(ctx, cmd, an)
}

func (c *Commands) aicook(ctx context.Context, cmd Command) {
	c.analyze(ctx, cmd, analysis{
		prompt: "Identify the baked good in the image and provide an accurate recipe.",
		cook:   true,
		expect: expectImage,
		status: "Cooking...",
	})
}

func (c *Commands) aiseller(ctx context.Context, cmd Command) {
	if cmd.Rest == "" {
		c.edit(cmd, fmt.Sprintf("<b>Usage:</b> <code>%saiseller [target audience]</code> [Reply to a product image]", c.prefix))
		return
	}
	c.analyze(ctx, cmd, analysis{
		prompt: "Generate a marketing description for the product.\nTarget Audience: " + cmd.Rest,
		expect: expectImage,
		status: "Generating description...",
	})
}

func (c *Commands) transcribe(ctx context.Context, cmd Command) {
	an := analysis{
		prompt: "Transcribe it. write only transcription text.",
		expect: expectAudio,
		status: "Transcribing...",
	}
	if cmd.Rest != "" {
		an.prompt, an.showPrompt = cmd.Rest, true
	}
	c.analyze(ctx, cmd, an)
}

func (c *Commands) process(ctx context.Context, cmd Command) {
	an := analysis{
		prompt: "Shortly summarize the content of file details of the file.",
		status: "Processing...",
	}
	if cmd.Rest != "" {
		an.prompt, an.showPrompt = cmd.Rest, true
	}
	c.analyze(ctx, cmd, an)
}

// analyze runs a one-shot Gemini request over the replied-to attachment and
// writes the answer in place of the command message.
func (c *Commands) analyze(ctx context.Context, cmd Command, an analysis) {
	if cmd.Reply == nil {
		if an.expect == expectAny {
			c.edit(cmd, fmt.Sprintf("<b>Usage:</b> <code>%s%s [prompt]</code> [Reply to a file]", c.prefix, cmd.Name))
		} else {
			c.edit(cmd, fmt.Sprintf("<b>Usage:</b> <code>%s%s [custom prompt]</code> [Reply to a %s]", c.prefix, cmd.Name, an.expect))
		}
		return
	}
	if !an.expect.accepts(cmd.Reply.Media) {
		c.edit(cmd, fmt.Sprintf("<code>Invalid %s file. Please try again.</code>", an.expect))
		return
	}
	c.edit(cmd, "<code>"+an.status+"</code>")

	path, err := c.a.Chat.Download(ctx, cmd.Reply.ChatID, cmd.Reply.MessageID)
	if err != nil {
		log.Printf("[TG] download %d/%d: %v", cmd.Reply.ChatID, cmd.Reply.MessageID, err)
		c.edit(cmd, "<code>Failed to process the file. Try again.</code>")
		return
	}
	defer util.RemoveFile(path)

	var cfg *model.GenerationConfig
	if an.cook {
		cfg = model.CookConfig
	}
	answer, err := model.Call(ctx, c.a.Rotator, model.CommandPolicy, func(ctx context.Context, key string) (string, error) {
		parts, err := buildParts(ctx, c.a.Gemini, key, cmd.Reply.Media, path, an.prompt)
		if err != nil {
			return "", err
		}
		return c.a.Gemini.Generate(ctx, key, model.Request{Model: c.a.Settings.Model(), Parts: parts, Config: cfg})
	})
	if err != nil {
		c.edit(cmd, analysisError(err, an.expect))
		return
	}

	if answer == "" {
		answer = "<code>No content generated.</code>"
	}
	text := "**Answer:** " + answer
	if an.showPrompt {
		text = "**Prompt:** " + an.prompt + "\n" + text
	}
	if len([]rune(text)) <= maxAnswerLen {
		c.a.Out.Enqueue(queue.EditText{ChatID: cmd.ChatID, MessageID: cmd.MessageID, Text: text, Mode: queue.ModeMarkdown})
		return
	}
	for _, chunk := range chunkRunes(text, maxAnswerLen) {
		c.a.Out.Enqueue(queue.SendText{ChatID: cmd.ChatID, Text: chunk, Mode: queue.ModeMarkdown})
	}
	c.remove(cmd)
}

func analysisError(err error, expect expectKind) string {
	if errors.Is(err, errUnsupportedFile) {
		return "<code>" + err.Error() + "</code>"
	}
	if model.Classify(err) == model.KindInvalidInput {
		if expect == expectAny {
			return "<code>Invalid file type. Please try again.</code>"
		}
		return "<code>" + html.EscapeString(err.Error()) + "</code>"
	}
	return "<code>Error:</code> " + html.EscapeString(err.Error())
}
