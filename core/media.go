package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gchat/model"
)

type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaPhoto
	MediaVideo
	MediaVideoNote
	MediaAudio
	MediaVoice
	MediaDocument
	MediaSticker
	MediaAnimation
)

func (k MediaKind) String() string {
	switch k {
	case MediaPhoto:
		return "photo"
	case MediaVideo:
		return "video"
	case MediaVideoNote:
		return "video note"
	case MediaAudio:
		return "audio"
	case MediaVoice:
		return "voice"
	case MediaDocument:
		return "document"
	case MediaSticker:
		return "sticker"
	case MediaAnimation:
		return "animation"
	}
	return "none"
}

// MediaInfo is what handlers need to know about a message attachment.
type MediaInfo struct {
	Kind     MediaKind
	FileName string
	MIMEType string
}

func (m MediaInfo) IsPDF() bool {
	return m.Kind == MediaDocument &&
		(strings.HasSuffix(strings.ToLower(m.FileName), ".pdf") || m.MIMEType == "application/pdf")
}

func (m MediaInfo) isAudioVideo() bool {
	switch m.Kind {
	case MediaAudio, MediaVoice, MediaVideo, MediaVideoNote:
		return true
	}
	return false
}

// chatFileLabel names a non-photo attachment for the auto-responder prompt.
// An empty label means the attachment is not answered.
func chatFileLabel(m MediaInfo) string {
	switch m.Kind {
	case MediaVideo, MediaVideoNote:
		return "video"
	case MediaAudio, MediaVoice:
		return "audio"
	case MediaDocument:
		if m.IsPDF() {
			return "pdf"
		}
		return "document"
	}
	return ""
}

var errUnsupportedFile = errors.New("Unsupported file type")

// fileInput describes how an attachment goes into a Gemini request.
type fileInput struct {
	inline    bool
	label     string
	fileFirst bool
}

func inputFor(m MediaInfo) (fileInput, error) {
	switch m.Kind {
	case MediaPhoto:
		return fileInput{inline: true, label: "image"}, nil
	case MediaVideo, MediaVideoNote:
		return fileInput{label: "video"}, nil
	case MediaAudio, MediaVoice:
		return fileInput{label: "audio", fileFirst: true}, nil
	case MediaDocument:
		if m.IsPDF() {
			return fileInput{label: "PDF"}, nil
		}
		return fileInput{label: "document", fileFirst: true}, nil
	}
	return fileInput{}, errUnsupportedFile
}

// buildParts turns a downloaded file and prompt into request parts. Uploads
// run against key because uploaded files are only visible to that key.
func buildParts(ctx context.Context, up Uploader, key string, m MediaInfo, path, prompt string) ([]model.Part, error) {
	in, err := inputFor(m)
	if err != nil {
		return nil, err
	}
	var file model.Part
	if in.inline {
		file, err = readImage(path)
	} else {
		file, err = up.Upload(ctx, key, path, detectMIME(path, m.MIMEType), in.label)
	}
	if err != nil {
		return nil, err
	}
	if in.fileFirst {
		return []model.Part{file, model.TextPart(prompt)}, nil
	}
	return []model.Part{model.TextPart(prompt), file}, nil
}

// readImage loads and validates an image for inline submission.
func readImage(path string) (model.Part, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Part{}, err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.Part{}, model.NewError(model.KindInvalidInput, "image: %w", err)
	}
	return model.Part{Data: data, MIMEType: "image/" + format}, nil
}

func detectMIME(path, declared string) string {
	if declared != "" {
		return declared
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := f.Read(head)
	return http.DetectContentType(head[:n])
}

// chunkRunes splits s into pieces of at most n runes.
func chunkRunes(s string, n int) []string {
	r := []rune(s)
	var out []string
	for len(r) > n {
		out = append(out, string(r[:n]))
		r = r[n:]
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}
